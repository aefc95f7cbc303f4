package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/opensource-finance/covenant/internal/catalog"
	"github.com/opensource-finance/covenant/internal/domain"
)

// ComplexityPatternID identifies findings raised for structurally complex clauses.
const ComplexityPatternID = "structural-complexity"

type connector struct {
	word string
	re   *regexp.Regexp
}

var defaultConnectors = newConnectors("provided that", "notwithstanding", "except", "furthermore", "unless")

func newConnectors(words ...string) []connector {
	out := make([]connector, 0, len(words))
	for _, w := range words {
		expr := strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
		out = append(out, connector{word: w, re: regexp.MustCompile(`(?i)\b` + expr + `\b`)})
	}
	return out
}

// Keyword sets used to place caller-assessed clauses in a category.
var clauseCategoryHints = []struct {
	category domain.Category
	re       *regexp.Regexp
}{
	{domain.CategoryPrivacy, regexp.MustCompile(`(?i)\b(personal data|privacy|personal information|cookies?|tracking|data)\b`)},
	{domain.CategoryFinancial, regexp.MustCompile(`(?i)(\$|\b(payment|fees?|rent|interest|price|penalt(y|ies)|deposit|refund|charges?)\b)`)},
	{domain.CategoryOperational, regexp.MustCompile(`(?i)\b(service|maintenance|repairs?|delivery|support|availability|uptime)\b`)},
}

func (a *Analyzer) analyzeClauses(ctx context.Context, clauses []domain.Clause, dt domain.DocumentType, jurisdiction string) []domain.Risk {
	if len(clauses) == 0 {
		return nil
	}

	_, span := tracer.Start(ctx, "analyzer.clauses")
	defer span.End()

	patterns := a.catalog.Lookup(dt)
	env := catalog.Env{DocumentType: dt, Jurisdiction: jurisdiction, Scope: catalog.ScopeClause}

	var risks []domain.Risk
	for i := range clauses {
		c := &clauses[i]
		found := a.matchPatterns(c.Content, patterns, env, domain.SourceClause, c)

		if r, ok := a.complexity(c, found); ok {
			found = append(found, r)
		}

		if len(found) == 0 && a.cfg.TrustClauseRiskLevels {
			if r, ok := preassessed(c); ok {
				found = append(found, r)
			}
		}
		risks = append(risks, found...)
	}
	return risks
}

// complexity flags long clauses that chain several qualifying connectors.
// The finding is at least medium and never below the strongest pattern hit
// in the same clause.
func (a *Analyzer) complexity(c *domain.Clause, fired []domain.Risk) (domain.Risk, bool) {
	if len(c.Content) <= a.cfg.ComplexityMinLength {
		return domain.Risk{}, false
	}

	var used []string
	for _, conn := range a.connectors {
		if conn.re.MatchString(c.Content) {
			used = append(used, fmt.Sprintf("%q", conn.word))
		}
	}
	if len(used) < a.cfg.ComplexityMinConnectors {
		return domain.Risk{}, false
	}

	severity := domain.SeverityMedium
	for _, r := range fired {
		severity = domain.MaxSeverity(severity, r.Severity)
	}

	r := domain.Risk{
		Category: domain.CategoryLegal,
		Severity: severity,
		Description: fmt.Sprintf("Complex clause: %s is structurally complex (%d characters, qualified by %s), which makes its obligations hard to pin down.",
			clauseLabel(c), len(c.Content), strings.Join(used, ", ")),
		AffectedClause: c.ID,
		Location:       c.Location,
		Recommendation: "Ask for the clause to be split into plain, separately numbered obligations.",
		PatternID:      ComplexityPatternID,
		Source:         domain.SourceComplexity,
	}
	return r, true
}

// preassessed turns a caller-supplied clause risk level into a finding.
func preassessed(c *domain.Clause) (domain.Risk, bool) {
	explanation := strings.TrimSpace(c.Explanation)
	if explanation == "" {
		return domain.Risk{}, false
	}
	if c.RiskLevel != domain.SeverityMedium && c.RiskLevel != domain.SeverityHigh {
		return domain.Risk{}, false
	}

	category := domain.CategoryLegal
	for _, h := range clauseCategoryHints {
		if h.re.MatchString(c.Title + " " + explanation) {
			category = h.category
			break
		}
	}

	return domain.Risk{
		Category:       category,
		Severity:       c.RiskLevel,
		Description:    fmt.Sprintf("%s was assessed as %s risk: %s", clauseLabel(c), c.RiskLevel, explanation),
		AffectedClause: c.ID,
		Location:       c.Location,
		Source:         domain.SourceClauseAssessment,
	}, true
}

func clauseLabel(c *domain.Clause) string {
	switch {
	case strings.TrimSpace(c.Title) != "":
		return fmt.Sprintf("clause %q", strings.TrimSpace(c.Title))
	case c.ID != "":
		return "clause " + c.ID
	default:
		return "this clause"
	}
}
