package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/covenant/internal/analyzer"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/cache"
	"github.com/opensource-finance/covenant/internal/catalog"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/metrics"
	"github.com/opensource-finance/covenant/internal/repository"
)

// GlobalTenantID is used for patterns that apply to all tenants.
const GlobalTenantID = "*"

// Options configures a Handler.
type Options struct {
	Version string

	// PatternsDir holds YAML pattern files merged into every reload.
	PatternsDir string

	// CacheTTL controls how long assessments stay cached. Zero uses one hour.
	CacheTTL time.Duration

	// MaxBodyBytes limits request bodies. Zero uses 5 MiB.
	MaxBodyBytes int64
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	provider *analyzer.Provider
	opts     Options
}

// NewHandler creates a new API handler. repo, c and eventBus may be nil.
func NewHandler(repo domain.Repository, c domain.Cache, eventBus domain.EventBus, provider *analyzer.Provider, opts Options) *Handler {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	return &Handler{
		repo:     repo,
		cache:    c,
		bus:      eventBus,
		provider: provider,
		opts:     opts,
	}
}

// decode reads a JSON body into v, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// Assess handles POST /assess requests.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.DocumentRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc := req.ToDocument(tenantID)
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	a := h.provider.Analyzer()
	key := cache.AssessmentKey(doc, a.Catalog().Version())

	assessment := h.cached(ctx, tenantID, key)
	if assessment != nil {
		assessment.Reuse(uuid.New().String(), doc.ID, traceID, time.Since(start).Milliseconds())
	} else {
		report, err := a.Analyze(ctx, analyzer.Input{
			Text:         doc.Text,
			Clauses:      doc.Clauses,
			DocumentType: doc.DocumentType,
			Jurisdiction: doc.Jurisdiction,
		})
		if err != nil {
			slog.Warn("analysis aborted", "document_id", doc.ID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "analysis aborted")
			return
		}
		assessment = report.Assessment(tenantID, doc.ID, traceID, start)

		if h.cache != nil {
			if err := h.cache.SetAssessment(ctx, tenantID, key, assessment, h.opts.CacheTTL); err != nil {
				slog.Warn("failed to cache assessment", "document_id", doc.ID, "error", err)
			}
		}
	}
	metrics.RecordAssessment(metrics.SourceAPI, assessment, time.Since(start))

	// Archive failures do not fail the request.
	if h.repo != nil {
		doc.ContentHash = repository.ContentHash(doc.Text)
		if err := h.repo.SaveDocument(ctx, tenantID, doc); err != nil {
			slog.Error("failed to save document", "document_id", doc.ID, "error", err)
		}
		if err := h.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
			slog.Error("failed to save assessment", "assessment_id", assessment.ID, "error", err)
		}
	}

	if h.bus != nil && assessment.IsHighRisk() {
		if err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicHighRisk, assessment.ToResponse()); err != nil {
			slog.Error("failed to publish high risk alert", "document_id", doc.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment.ToResponse())
}

func (h *Handler) cached(ctx context.Context, tenantID, key string) *domain.Assessment {
	if h.cache == nil {
		return nil
	}
	a, err := h.cache.GetAssessment(ctx, tenantID, key)
	metrics.RecordCacheLookup(a != nil, err)
	if err != nil {
		slog.Warn("assessment cache lookup failed", "error", err)
		return nil
	}
	return a
}

// IngestResponse is the response for POST /documents.
type IngestResponse struct {
	DocumentID string `json:"documentId"`
	TraceID    string `json:"traceId"`
	Status     string `json:"status"`
}

// Ingest handles POST /documents by queueing the document for the worker.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	var req domain.DocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	doc := req.ToDocument(tenantID)
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	msg := domain.DocumentMessage{Document: doc, TraceID: traceID}
	if err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicDocumentIngested, msg); err != nil {
		slog.Error("failed to publish document", "document_id", doc.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to queue document")
		return
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		DocumentID: doc.ID,
		TraceID:    traceID,
		Status:     "queued",
	})
}

// GetAssessment retrieves an archived assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	a, err := h.repo.GetAssessment(ctx, tenantID, id)
	if err != nil {
		h.notFoundOr500(w, err, "assessment", id)
		return
	}

	writeJSON(w, http.StatusOK, a.ToResponse())
}

// GetDocument retrieves an archived document by ID.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	doc, err := h.repo.GetDocument(ctx, tenantID, id)
	if err != nil {
		h.notFoundOr500(w, err, "document", id)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// ListDocumentAssessments returns the archived assessments of a document, newest first.
func (h *Handler) ListDocumentAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	list, err := h.repo.ListAssessments(ctx, tenantID, id)
	if err != nil {
		slog.Error("failed to list assessments", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}

	out := make([]*domain.AssessmentResponse, len(list))
	for i, a := range list {
		out[i] = a.ToResponse()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": out,
		"count":       len(out),
	})
}

// MetadataRequest is the request body for POST /metadata.
type MetadataRequest struct {
	Text string `json:"text"`
}

// ExtractMetadata handles POST /metadata.
func (h *Handler) ExtractMetadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Analyzer().ExtractLegalMetadata(req.Text))
}

// ClauseRequest is the request body for POST /clauses/analyze.
type ClauseRequest struct {
	Clauses      []domain.Clause `json:"clauses"`
	DocumentType string          `json:"documentType,omitempty"`
}

// AnalyzeClauses handles POST /clauses/analyze. Findings are not deduplicated.
func (h *Handler) AnalyzeClauses(w http.ResponseWriter, r *http.Request) {
	var req ClauseRequest
	if !h.decode(w, r, &req) {
		return
	}

	risks := h.provider.Analyzer().AnalyzeClauseRisks(r.Context(), req.Clauses, req.DocumentType)
	writeJSON(w, http.StatusOK, map[string]any{
		"risks": risks,
		"count": len(risks),
	})
}

// ListPatterns returns the patterns of the catalog in effect.
func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	cat := h.provider.Registry().Current()
	patterns := cat.Patterns()

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": patterns,
		"count":    len(patterns),
		"version":  cat.Version(),
	})
}

// GetPattern retrieves a pattern from the catalog in effect.
func (h *Handler) GetPattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok := h.provider.Registry().Current().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, p.Config)
}

// CreatePatternRequest is the request body for POST /patterns.
// Enabled defaults to true when omitted.
type CreatePatternRequest struct {
	domain.RiskPattern
	Enabled *bool `json:"enabled,omitempty"`
}

// CreatePattern validates a custom pattern and saves it to the database.
// Patterns are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /patterns/reload to apply changes.
func (h *Handler) CreatePattern(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	var req CreatePatternRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := req.RiskPattern
	p.Enabled = req.Enabled == nil || *req.Enabled
	if p.Version == "" {
		p.Version = "1.0.0"
	}

	if err := catalog.Validate(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.SavePattern(ctx, GlobalTenantID, &p); err != nil {
		slog.Error("failed to save pattern", "id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save pattern")
		return
	}

	slog.Info("pattern created", "id", p.ID, "name", p.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"pattern": p,
		"message": "Pattern created. Call POST /patterns/reload to apply changes.",
	})
}

// DeletePattern removes a custom pattern and reloads the catalog.
func (h *Handler) DeletePattern(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	if err := h.repo.DeletePattern(ctx, GlobalTenantID, id); err != nil {
		h.notFoundOr500(w, err, "pattern", id)
		return
	}

	cat, err := h.ReloadCatalog(ctx)
	if err != nil {
		slog.Error("failed to reload catalog after delete", "error", err)
		writeError(w, http.StatusInternalServerError, "pattern deleted but reload failed: "+err.Error())
		return
	}

	slog.Info("pattern deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Pattern deleted and catalog reloaded.",
		"version": cat.Version(),
	})
}

// ReloadPatterns rebuilds the catalog from stored and directory patterns.
func (h *Handler) ReloadPatterns(w http.ResponseWriter, r *http.Request) {
	cat, err := h.ReloadCatalog(r.Context())
	if err != nil {
		slog.Error("failed to reload catalog", "error", err)
		writeError(w, http.StatusBadRequest, "failed to reload patterns: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "patterns reloaded successfully",
		"count":   cat.Len(),
		"version": cat.Version(),
	})
}

// ReloadCatalog merges stored patterns, then directory patterns, over the
// built-in catalog. On error the previous catalog stays in effect.
func (h *Handler) ReloadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	var custom []domain.RiskPattern

	if h.repo != nil {
		stored, err := h.repo.ListPatterns(ctx, GlobalTenantID)
		if err != nil {
			metrics.RecordCatalogReload(0, err)
			return nil, fmt.Errorf("listing stored patterns: %w", err)
		}
		for _, p := range stored {
			custom = append(custom, *p)
		}
	}

	if h.opts.PatternsDir != "" {
		files, err := catalog.LoadDir(h.opts.PatternsDir)
		if err != nil {
			metrics.RecordCatalogReload(0, err)
			return nil, err
		}
		custom = append(custom, files...)
	}

	cat, err := h.provider.Registry().Reload(custom)
	if err != nil {
		metrics.RecordCatalogReload(0, err)
		return nil, err
	}
	metrics.RecordCatalogReload(cat.Len(), nil)

	slog.Info("pattern catalog reloaded",
		"version", cat.Version(),
		"patterns", cat.Len(),
		"custom", len(custom),
	)
	return cat, nil
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.opts.Version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready":          "true",
		"catalogVersion": h.provider.Registry().Current().Version(),
	})
}

func (h *Handler) notFoundOr500(w http.ResponseWriter, err error, kind, id string) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, kind+" not found")
		return
	}
	slog.Error("failed to get "+kind, "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to get "+kind)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
