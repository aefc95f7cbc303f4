package analyzer

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/covenant/internal/catalog"
	"github.com/opensource-finance/covenant/internal/domain"
)

// Provider hands out an Analyzer bound to the registry's current catalog,
// rebuilding it only after a reload.
type Provider struct {
	registry *catalog.Registry
	opts     []Option
	current  atomic.Pointer[Analyzer]
}

// NewProvider creates a provider over reg.
func NewProvider(reg *catalog.Registry, opts ...Option) *Provider {
	return &Provider{registry: reg, opts: opts}
}

// Analyzer returns the analyzer for the catalog in effect.
func (p *Provider) Analyzer() *Analyzer {
	cat := p.registry.Current()
	if a := p.current.Load(); a != nil && a.catalog == cat {
		return a
	}
	a := New(cat, p.opts...)
	p.current.Store(a)
	return a
}

// Registry returns the underlying catalog registry.
func (p *Provider) Registry() *catalog.Registry {
	return p.registry
}

// Assessment packages the report as an archivable assessment.
// totalStart is when the request or message was received.
func (r *Report) Assessment(tenantID, documentID, traceID string, totalStart time.Time) *domain.Assessment {
	result := domain.RiskAssessmentResult{}
	if r.Result != nil {
		result = *r.Result
	}

	return &domain.Assessment{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		DocumentID: documentID,
		Timestamp:  time.Now().UTC(),
		Metadata:   r.Metadata,
		Result:     result,
		Processing: domain.ProcessingMetadata{
			TraceID:           traceID,
			AnalysisMs:        r.Duration.Milliseconds(),
			TotalMs:           time.Since(totalStart).Milliseconds(),
			PatternsEvaluated: r.PatternsEvaluated,
			ClausesAnalyzed:   r.ClausesAnalyzed,
			CatalogVersion:    r.CatalogVersion,
			EngineVersion:     EngineVersion,
		},
	}
}
