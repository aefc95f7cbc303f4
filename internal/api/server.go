package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/covenant/internal/analyzer"
	"github.com/opensource-finance/covenant/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, provider *analyzer.Provider, opts Options) *Server {
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = cfg.MaxBodyBytes
	}
	handler := NewHandler(repo, cache, bus, provider, opts)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.AllowedOrigins)) // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(MetricsMiddleware)      // Prometheus request metrics
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Operational endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// API routes (tenant required)
	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)
		if cfg.RateLimitRPS > 0 {
			r.Use(NewTenantRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
		}

		// Document assessment
		r.Post("/assess", handler.Assess)
		r.Post("/documents", handler.Ingest)
		r.Get("/documents/{id}", handler.GetDocument)
		r.Get("/documents/{id}/assessments", handler.ListDocumentAssessments)
		r.Get("/assessments/{id}", handler.GetAssessment)

		// Partial analysis
		r.Post("/metadata", handler.ExtractMetadata)
		r.Post("/clauses/analyze", handler.AnalyzeClauses)

		// Pattern management
		r.Get("/patterns", handler.ListPatterns)
		r.Get("/patterns/{id}", handler.GetPattern)
		r.Post("/patterns", handler.CreatePattern)
		r.Delete("/patterns/{id}", handler.DeletePattern)
		r.Post("/patterns/reload", handler.ReloadPatterns)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
