// Covenant - Legal document risk analysis you can self-host.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/covenant/internal/analyzer"
	"github.com/opensource-finance/covenant/internal/api"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/cache"
	"github.com/opensource-finance/covenant/internal/catalog"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/repository"
	"github.com/opensource-finance/covenant/internal/telemetry"
	"github.com/opensource-finance/covenant/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := loadConfig()

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting covenant",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"patterns_dir", cfg.Patterns.Dir,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, Version)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize the pattern catalog and analyzer
	registry, err := catalog.NewRegistry(catalog.Builtin())
	if err != nil {
		slog.Error("failed to compile built-in patterns", "error", err)
		os.Exit(1)
	}
	provider := analyzer.NewProvider(registry, analyzer.WithConfig(cfg.Engine))

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, provider, api.Options{
		Version:     Version,
		PatternsDir: cfg.Patterns.Dir,
	})

	// Stored and directory patterns: a broken custom pattern keeps the built-in catalog.
	if cat, err := srv.Handler().ReloadCatalog(ctx); err != nil {
		slog.Warn("custom patterns not loaded", "error", err)
	} else {
		slog.Info("pattern catalog ready", "version", cat.Version(), "patterns", cat.Len())
	}

	if cfg.Patterns.Watch && cfg.Patterns.Dir != "" {
		watcher, err := catalog.NewWatcher(cfg.Patterns.Dir, func() {
			if _, err := srv.Handler().ReloadCatalog(ctx); err != nil {
				slog.Error("pattern reload failed", "error", err)
			}
		}, logger)
		if err != nil {
			slog.Warn("pattern watcher disabled", "error", err)
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
			slog.Info("watching pattern directory", "dir", cfg.Patterns.Dir)
		}
	}

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, provider)

		if err := asyncWorker.Start(worker.Config{TenantIDs: cfg.Worker.Tenants}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(cfg.Worker.Tenants))
		}
	}

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("covenant is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("covenant shutdown complete")
}

// loadConfig builds the tier defaults and applies COVENANT_* overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("COVENANT_TIER") == "pro" {
		cfg = domain.ProConfig()
	}

	if v := os.Getenv("COVENANT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring invalid COVENANT_PORT", "value", v)
		} else {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COVENANT_DB_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("COVENANT_POSTGRES_DSN"); v != "" {
		cfg.Repository.Driver = "postgres"
		cfg.Repository.PostgresDSN = v
	}
	if v := os.Getenv("COVENANT_PATTERNS_DIR"); v != "" {
		cfg.Patterns.Dir = v
		cfg.Patterns.Watch = os.Getenv("COVENANT_PATTERNS_WATCH") != "false"
	}
	if v := os.Getenv("COVENANT_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("COVENANT_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("COVENANT_NATS_QUEUE_GROUP"); v != "" {
		cfg.EventBus.NATSQueueGroup = v
	}
	if v := os.Getenv("COVENANT_CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("COVENANT_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("ignoring invalid COVENANT_RATE_LIMIT", "value", v)
		} else {
			cfg.Server.RateLimitRPS = rps
		}
	}
	if v := os.Getenv("COVENANT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COVENANT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if os.Getenv("COVENANT_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
	if v := os.Getenv("COVENANT_TRACING"); v != "" {
		cfg.Tracing.Enabled = v == "true"
	}
	if os.Getenv("COVENANT_ASYNC_WORKER") == "true" {
		cfg.Worker.Enabled = true
	}
	if v := os.Getenv("COVENANT_TENANTS"); v != "" {
		cfg.Worker.Tenants = splitList(v)
	}
	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                COVENANT                   |")
	fmt.Println("  |      Legal Document Risk Analysis         |")
	fmt.Println("  |       Read the fine print first.          |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /assess                     - Assess a document")
	fmt.Println("    POST   /documents                  - Queue a document for the worker")
	fmt.Println("    GET    /documents/{id}             - Get archived document")
	fmt.Println("    GET    /documents/{id}/assessments - List a document's assessments")
	fmt.Println("    GET    /assessments/{id}           - Get assessment by ID")
	fmt.Println("    POST   /metadata                   - Extract legal metadata")
	fmt.Println("    POST   /clauses/analyze            - Analyze clauses")
	fmt.Println("    GET    /patterns                   - List risk patterns")
	fmt.Println("    POST   /patterns                   - Create a custom pattern")
	fmt.Println("    DELETE /patterns/{id}              - Delete a custom pattern")
	fmt.Println("    POST   /patterns/reload            - Hot-reload patterns")
	fmt.Println("    GET    /health                     - Health check")
	fmt.Println("    GET    /metrics                    - Prometheus metrics")
	fmt.Println()
}
