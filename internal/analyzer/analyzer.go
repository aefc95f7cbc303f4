// Package analyzer runs the risk catalog over documents and clauses.
package analyzer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/covenant/internal/aggregate"
	"github.com/opensource-finance/covenant/internal/catalog"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/extract"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// EngineVersion is reported with every assessment.
const EngineVersion = "covenant-1.0"

var tracer = otel.Tracer("covenant-analyzer")

// Analyzer assesses documents against an immutable pattern catalog.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	catalog    *catalog.Catalog
	extractor  *extract.Extractor
	processor  *aggregate.Processor
	cfg        domain.EngineConfig
	connectors []connector
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConfig overrides the engine thresholds.
func WithConfig(cfg domain.EngineConfig) Option {
	return func(a *Analyzer) {
		a.cfg = cfg
	}
}

// New creates an analyzer over cat.
func New(cat *catalog.Catalog, opts ...Option) *Analyzer {
	a := &Analyzer{
		catalog:    cat,
		extractor:  extract.New(),
		cfg:        domain.DefaultEngineConfig(),
		connectors: defaultConnectors,
	}
	for _, opt := range opts {
		opt(a)
	}

	def := domain.DefaultEngineConfig()
	if a.cfg.ComplexityMinLength <= 0 {
		a.cfg.ComplexityMinLength = def.ComplexityMinLength
	}
	if a.cfg.ComplexityMinConnectors <= 0 {
		a.cfg.ComplexityMinConnectors = def.ComplexityMinConnectors
	}
	if a.cfg.MaxWorkers <= 0 {
		a.cfg.MaxWorkers = def.MaxWorkers
	}
	a.processor = aggregate.NewProcessorFromConfig(a.cfg)
	return a
}

// Catalog returns the catalog the analyzer evaluates.
func (a *Analyzer) Catalog() *catalog.Catalog {
	return a.catalog
}

// ExtractLegalMetadata extracts structural metadata from text.
func (a *Analyzer) ExtractLegalMetadata(text string) domain.ExtractedLegalMetadata {
	return a.extractor.Extract(text)
}

// AssessDocumentRisks runs document-level patterns, the clause analyzer and
// the document-type supplementary checks, then aggregates the findings.
// An empty documentType is classified from the text; an empty jurisdiction
// is detected from it.
func (a *Analyzer) AssessDocumentRisks(ctx context.Context, text string, clauses []domain.Clause, documentType, jurisdiction string) *domain.RiskAssessmentResult {
	ctx, span := tracer.Start(ctx, "analyzer.AssessDocumentRisks")
	defer span.End()

	dt := resolveType(text, documentType)
	juris := resolveJurisdiction(text, jurisdiction)
	env := catalog.Env{DocumentType: dt, Jurisdiction: juris, Scope: catalog.ScopeDocument}

	risks := a.matchPatterns(text, a.catalog.Lookup(dt), env, domain.SourceDocument, nil)

	if len(clauses) == 0 && strings.TrimSpace(text) != "" {
		clauses = extract.SegmentClauses(text)
	}
	risks = append(risks, a.analyzeClauses(ctx, clauses, dt, juris)...)

	risks = append(risks, a.matchPatterns(text, a.catalog.Supplementary(dt), env, domain.SourceSupplementary, nil)...)

	result := a.processor.Process(ctx, &aggregate.Input{DocumentType: dt, Risks: risks})

	span.SetAttributes(
		attribute.String("covenant.document_type", string(dt)),
		attribute.String("covenant.jurisdiction", juris),
		attribute.Int("covenant.clauses", len(clauses)),
		attribute.Int("covenant.findings", len(risks)),
		attribute.Int("covenant.risks", len(result.Risks)),
		attribute.String("covenant.overall_risk", string(result.OverallRiskScore)),
	)
	return result
}

// AnalyzeClauseRisks evaluates each clause independently and returns the
// raw findings in clause order.
func (a *Analyzer) AnalyzeClauseRisks(ctx context.Context, clauses []domain.Clause, documentType string) []domain.Risk {
	ctx, span := tracer.Start(ctx, "analyzer.AnalyzeClauseRisks")
	defer span.End()

	dt := domain.ParseDocumentType(documentType)
	risks := a.analyzeClauses(ctx, clauses, dt, domain.JurisdictionUnknown)
	if risks == nil {
		risks = []domain.Risk{}
	}

	span.SetAttributes(attribute.Int("covenant.clauses", len(clauses)), attribute.Int("covenant.findings", len(risks)))
	return risks
}

// Input is a document submitted for full analysis.
type Input struct {
	Text         string
	Clauses      []domain.Clause
	DocumentType string
	Jurisdiction string
}

// Report combines metadata and the risk assessment of one document.
type Report struct {
	Metadata          domain.ExtractedLegalMetadata `json:"metadata"`
	Result            *domain.RiskAssessmentResult  `json:"result"`
	DocumentType      domain.DocumentType           `json:"documentType"`
	PatternsEvaluated int                           `json:"patternsEvaluated"`
	ClausesAnalyzed   int                           `json:"clausesAnalyzed"`
	CatalogVersion    string                        `json:"catalogVersion"`
	Duration          time.Duration                 `json:"durationNs"`
}

// Analyze extracts metadata and assesses risks concurrently. Metadata
// reports the document type and jurisdiction the assessment ran with, so a
// caller hint replaces what extraction found. It returns ctx's error if ctx
// ends before both halves finish.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*Report, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "analyzer.Analyze")
	defer span.End()

	dt := resolveType(in.Text, in.DocumentType)
	report := &Report{
		DocumentType:   dt,
		CatalogVersion: a.catalog.Version(),
	}
	report.PatternsEvaluated = len(a.catalog.Lookup(dt)) + len(a.catalog.Supplementary(dt))
	report.ClausesAnalyzed = len(in.Clauses)
	if report.ClausesAnalyzed == 0 {
		report.ClausesAnalyzed = len(extract.SegmentClauses(in.Text))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		report.Metadata = a.extractor.Extract(in.Text)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		report.Result = a.AssessDocumentRisks(gctx, in.Text, in.Clauses, string(dt), in.Jurisdiction)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	report.Metadata.DocumentType = dt
	if h := strings.TrimSpace(in.Jurisdiction); h != "" {
		report.Metadata.Jurisdiction = h
	}

	report.Duration = time.Since(start)
	return report, nil
}

// matchPatterns evaluates patterns against text using a bounded worker pool.
// Findings keep catalog order.
func (a *Analyzer) matchPatterns(text string, patterns []*catalog.Pattern, env catalog.Env, source domain.RiskSource, clause *domain.Clause) []domain.Risk {
	if len(patterns) == 0 || text == "" {
		return nil
	}

	found := make([]*domain.Risk, len(patterns))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, a.cfg.MaxWorkers)

	for i, p := range patterns {
		wg.Add(1)
		go func(idx int, p *catalog.Pattern) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			if m, ok := p.Match(text, env); ok {
				r := newRisk(p, m, source, clause)
				found[idx] = &r
			}
		}(i, p)
	}

	wg.Wait()

	var risks []domain.Risk
	for _, r := range found {
		if r != nil {
			risks = append(risks, *r)
		}
	}
	return risks
}

func newRisk(p *catalog.Pattern, m catalog.Match, source domain.RiskSource, clause *domain.Clause) domain.Risk {
	r := domain.Risk{
		Category:       p.Config.Category,
		Severity:       p.Config.Severity,
		Description:    p.Describe(m),
		Recommendation: p.Config.Recommendation,
		PatternID:      p.ID(),
		Source:         source,
	}

	switch {
	case clause == nil:
		r.Location = &domain.Location{Start: m.Start, End: m.End}
	case clause.Location != nil:
		r.AffectedClause = clause.ID
		r.Location = &domain.Location{Start: clause.Location.Start + m.Start, End: clause.Location.Start + m.End}
	default:
		r.AffectedClause = clause.ID
	}
	return r
}

func resolveType(text, hint string) domain.DocumentType {
	if strings.TrimSpace(hint) == "" {
		return extract.Classify(text).Type
	}
	return domain.ParseDocumentType(hint)
}

func resolveJurisdiction(text, hint string) string {
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	return extract.Jurisdiction(text)
}
