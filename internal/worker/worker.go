// Package worker provides async document assessment for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/covenant/internal/analyzer"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/cache"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/metrics"
	"github.com/opensource-finance/covenant/internal/repository"
)

var tracer = otel.Tracer("covenant-worker")

// ErrInvalidMessage is returned for payloads that carry no document text.
var ErrInvalidMessage = errors.New("invalid document message")

// Worker assesses documents published on TopicDocumentIngested.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	provider *analyzer.Provider
	cacheTTL time.Duration

	mu            sync.Mutex
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Uint64
	failed    atomic.Uint64
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all tenants)
	TenantIDs []string

	// CacheTTL controls how long assessments stay cached. Zero uses one hour.
	CacheTTL time.Duration
}

// NewWorker creates a new async worker. repo and c may be nil.
func NewWorker(eventBus domain.EventBus, repo domain.Repository, c domain.Cache, provider *analyzer.Provider) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		repo:     repo,
		cache:    c,
		provider: provider,
		cacheTTL: time.Hour,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.CacheTTL > 0 {
		w.cacheTTL = cfg.CacheTTL
	}

	if len(cfg.TenantIDs) == 0 {
		return w.subscribe(domain.AllTenants)
	}

	started := 0
	for _, tenantID := range cfg.TenantIDs {
		if err := w.subscribe(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		started++
	}
	if started == 0 {
		return fmt.Errorf("no tenant subscriptions started")
	}

	slog.Info("workers started",
		"tenant_count", started,
	)
	return nil
}

func (w *Worker) subscribe(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicDocumentIngested, w.handleMessage)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("worker subscribed",
		"tenant_id", tenantID,
		"topic", domain.TopicDocumentIngested,
	)
	return nil
}

// handleMessage tracks the message so Stop can drain in-flight work.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	if w.ctx.Err() != nil {
		return w.ctx.Err()
	}
	w.wg.Add(1)
	defer w.wg.Done()

	err := w.processDocument(ctx, msg)
	switch {
	case err == nil:
		w.processed.Add(1)
		metrics.RecordWorkerMessage(metrics.StatusOK)
	case errors.Is(err, ErrInvalidMessage):
		w.failed.Add(1)
		metrics.RecordWorkerMessage(metrics.StatusInvalid)
	default:
		w.failed.Add(1)
		metrics.RecordWorkerMessage(metrics.StatusFailed)
	}
	return err
}

// processDocument runs one ingested document through the analyzer.
func (w *Worker) processDocument(ctx context.Context, msg *domain.Message) error {
	start := time.Now()
	tenantID := msg.TenantID

	var docMsg domain.DocumentMessage
	if err := json.Unmarshal(msg.Payload, &docMsg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	doc := docMsg.Document
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return fmt.Errorf("%w: missing document text", ErrInvalidMessage)
	}

	// The bus tenant is authoritative.
	doc.TenantID = tenantID
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	traceID := docMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	ctx, span := tracer.Start(ctx, "worker.processDocument")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("document.id", doc.ID),
	)

	a := w.provider.Analyzer()
	key := cache.AssessmentKey(doc, a.Catalog().Version())

	assessment := w.cached(ctx, tenantID, key)
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
			return fmt.Errorf("analysis of document %s aborted: %w", doc.ID, err)
		}
		assessment = report.Assessment(tenantID, doc.ID, traceID, start)

		if w.cache != nil {
			if err := w.cache.SetAssessment(ctx, tenantID, key, assessment, w.cacheTTL); err != nil {
				slog.Warn("failed to cache assessment",
					"document_id", doc.ID,
					"error", err,
				)
			}
		}
	}
	metrics.RecordAssessment(metrics.SourceWorker, assessment, time.Since(start))

	if w.repo != nil {
		doc.ContentHash = repository.ContentHash(doc.Text)
		if err := w.repo.SaveDocument(ctx, tenantID, doc); err != nil {
			slog.Error("failed to save document",
				"document_id", doc.ID,
				"error", err,
			)
		}
		if err := w.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
			slog.Error("failed to save assessment",
				"document_id", doc.ID,
				"assessment_id", assessment.ID,
				"error", err,
			)
		}
	}

	resp := assessment.ToResponse()
	if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicAssessmentCompleted, resp); err != nil {
		slog.Error("failed to publish assessment",
			"document_id", doc.ID,
			"error", err,
		)
	}

	if assessment.IsHighRisk() {
		if err := bus.PublishJSON(ctx, w.bus, tenantID, domain.TopicHighRisk, resp); err != nil {
			slog.Error("failed to publish high risk alert",
				"document_id", doc.ID,
				"error", err,
			)
		}
	}

	span.SetAttributes(
		attribute.String("risk.overall", string(assessment.Result.OverallRiskScore)),
		attribute.Int("risk.count", len(assessment.Result.Risks)),
	)

	slog.Info("document assessed",
		"document_id", doc.ID,
		"tenant_id", tenantID,
		"overall_risk", assessment.Result.OverallRiskScore,
		"risks", len(assessment.Result.Risks),
		"cached", assessment.Processing.Cached,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (w *Worker) cached(ctx context.Context, tenantID, key string) *domain.Assessment {
	if w.cache == nil {
		return nil
	}
	a, err := w.cache.GetAssessment(ctx, tenantID, key)
	metrics.RecordCacheLookup(a != nil, err)
	if err != nil {
		slog.Warn("assessment cache lookup failed", "error", err)
		return nil
	}
	return a
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.wg.Wait()

	slog.Info("workers stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         uint64   `json:"processed"`
	Failed            uint64   `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}
