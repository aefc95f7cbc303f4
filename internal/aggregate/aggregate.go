// Package aggregate merges raw risk findings into a final assessment.
// It deduplicates findings, scores the document and writes the
// summary and recommendations.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("covenant-aggregate")

// Processor aggregates risk findings and produces the assessment result.
type Processor struct {
	// Number of medium risks that escalates the overall score to high
	MediumEscalationCount int

	// An all-low finding set scores low only below this count
	LowRiskMaxCount int

	// Near-duplicate detection
	SimilarityThreshold float64
	MinSharedTokens     int
}

// NewProcessor creates a processor with default thresholds.
func NewProcessor() *Processor {
	return NewProcessorFromConfig(domain.DefaultEngineConfig())
}

// NewProcessorFromConfig creates a processor from engine settings.
// Zero values fall back to the defaults.
func NewProcessorFromConfig(cfg domain.EngineConfig) *Processor {
	def := domain.DefaultEngineConfig()
	p := &Processor{
		MediumEscalationCount: cfg.MediumEscalationCount,
		LowRiskMaxCount:       cfg.LowRiskMaxCount,
		SimilarityThreshold:   cfg.SimilarityThreshold,
		MinSharedTokens:       2,
	}
	if p.MediumEscalationCount <= 0 {
		p.MediumEscalationCount = def.MediumEscalationCount
	}
	if p.LowRiskMaxCount <= 0 {
		p.LowRiskMaxCount = def.LowRiskMaxCount
	}
	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		p.SimilarityThreshold = def.SimilarityThreshold
	}
	return p
}

// Input contains the raw findings for one document.
type Input struct {
	DocumentType domain.DocumentType
	Risks        []domain.Risk
}

// Process deduplicates, orders and scores the findings.
func (p *Processor) Process(ctx context.Context, input *Input) *domain.RiskAssessmentResult {
	_, span := tracer.Start(ctx, "aggregate.Process")
	defer span.End()

	risks := Deduplicate(input.Risks, p.Similarity())
	SortBySeverity(risks)

	score := p.Score(risks)
	span.SetAttributes(
		attribute.Int("covenant.findings", len(input.Risks)),
		attribute.Int("covenant.duplicates", len(input.Risks)-len(risks)),
		attribute.String("covenant.overall_risk", string(score)),
	)
	return &domain.RiskAssessmentResult{
		Risks:            risks,
		OverallRiskScore: score,
		RiskSummary:      Summarize(input.DocumentType, score, risks),
		Recommendations:  Recommend(input.DocumentType, score, risks),
	}
}

// Similarity returns the processor's duplicate detection settings.
func (p *Processor) Similarity() Similarity {
	return Similarity{Threshold: p.SimilarityThreshold, MinShared: p.MinSharedTokens}
}

// Score derives the overall score from the severity counts alone,
// so it does not depend on finding order.
func (p *Processor) Score(risks []domain.Risk) domain.Severity {
	if len(risks) == 0 {
		return domain.SeverityLow
	}

	var high, medium, low int
	for _, r := range risks {
		switch r.Severity {
		case domain.SeverityHigh:
			high++
		case domain.SeverityMedium:
			medium++
		default: // low, and anything unrecognized
			low++
		}
	}

	switch {
	case high > 0 || medium >= p.MediumEscalationCount:
		return domain.SeverityHigh
	case medium == 0 && low < p.LowRiskMaxCount:
		return domain.SeverityLow
	default:
		return domain.SeverityMedium
	}
}

// SortBySeverity orders risks high to low, keeping discovery order within a level.
func SortBySeverity(risks []domain.Risk) {
	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].Severity.Rank() > risks[j].Severity.Rank()
	})
}

// Summarize writes the one-line risk summary.
func Summarize(dt domain.DocumentType, score domain.Severity, risks []domain.Risk) string {
	noun := dt.Noun()
	if len(risks) == 0 {
		return fmt.Sprintf("No significant risks were identified in this %s.", noun)
	}

	counts := make(map[domain.Severity]int, 3)
	for _, r := range risks {
		counts[r.Severity]++
	}

	label := "risks"
	if len(risks) == 1 {
		label = "risk"
	}

	summary := fmt.Sprintf("Overall risk is %s: %d %s identified in this %s (%d high, %d medium, %d low).",
		score, len(risks), label, noun,
		counts[domain.SeverityHigh], counts[domain.SeverityMedium], counts[domain.SeverityLow])

	if h := headline(risks[0].Description); h != "" {
		summary += " Most significant: " + strings.ToLower(h) + "."
	}
	return summary
}

// headline returns the description text before its first colon.
func headline(description string) string {
	i := strings.IndexByte(description, ':')
	if i <= 0 || i > 60 {
		return ""
	}
	return strings.TrimSpace(description[:i])
}
