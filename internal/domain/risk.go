package domain

import "strings"

// Category classifies what kind of exposure a risk represents.
type Category string

const (
	CategoryLegal       Category = "legal"
	CategoryFinancial   Category = "financial"
	CategoryPrivacy     Category = "privacy"
	CategoryOperational Category = "operational"
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryLegal, CategoryFinancial, CategoryPrivacy, CategoryOperational}

// ParseCategory returns the category named by s.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryLegal, CategoryFinancial, CategoryPrivacy, CategoryOperational:
		return c, true
	}
	return "", false
}

// Severity is an ordinal risk level: low < medium < high.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity returns the severity named by s.
func ParseSeverity(s string) (Severity, bool) {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return v, true
	}
	return "", false
}

// Rank orders severities. Unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// DocumentType is the classified kind of legal document.
type DocumentType string

const (
	DocContract       DocumentType = "contract"
	DocLease          DocumentType = "lease"
	DocTermsOfService DocumentType = "terms_of_service"
	DocPrivacyPolicy  DocumentType = "privacy_policy"
	DocLoanAgreement  DocumentType = "loan_agreement"
	DocOther          DocumentType = "other"

	// DocAny marks a pattern as applicable to every document type.
	DocAny DocumentType = "any"
)

// DocumentTypes lists the concrete document types.
var DocumentTypes = []DocumentType{DocContract, DocLease, DocTermsOfService, DocPrivacyPolicy, DocLoanAgreement, DocOther}

// ParseDocumentType normalizes a caller-supplied hint. Unrecognized values map to DocOther.
func ParseDocumentType(s string) DocumentType {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	switch n {
	case "contract", "agreement":
		return DocContract
	case "lease", "rental_agreement", "lease_agreement":
		return DocLease
	case "terms_of_service", "tos", "terms", "terms_of_use", "terms_and_conditions":
		return DocTermsOfService
	case "privacy_policy", "privacy", "privacy_notice":
		return DocPrivacyPolicy
	case "loan_agreement", "loan", "promissory_note":
		return DocLoanAgreement
	default:
		return DocOther
	}
}

// Noun is the plain-English name used in summaries and recommendations.
func (d DocumentType) Noun() string {
	switch d {
	case DocContract:
		return "contract"
	case DocLease:
		return "lease"
	case DocTermsOfService:
		return "terms of service"
	case DocPrivacyPolicy:
		return "privacy policy"
	case DocLoanAgreement:
		return "loan agreement"
	default:
		return "document"
	}
}

// Location is a character range within the analyzed text.
type Location struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Clause is a pre-segmented portion of a document. Clauses are read-only input.
type Clause struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	Location    *Location `json:"location,omitempty"`
	RiskLevel   Severity  `json:"riskLevel,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
}

// RiskSource records which analysis stage produced a risk.
type RiskSource string

const (
	SourceDocument         RiskSource = "document"
	SourceClause           RiskSource = "clause"
	SourceSupplementary    RiskSource = "supplementary"
	SourceComplexity       RiskSource = "complexity"
	SourceClauseAssessment RiskSource = "clause_assessment"
)

// Risk is a single finding.
type Risk struct {
	Category       Category   `json:"category"`
	Severity       Severity   `json:"severity"`
	Description    string     `json:"description"`
	AffectedClause string     `json:"affectedClause,omitempty"`
	Location       *Location  `json:"location,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
	PatternID      string     `json:"patternId,omitempty"`
	Source         RiskSource `json:"source,omitempty"`
}

// RiskAssessmentResult is the aggregate output of a document assessment.
type RiskAssessmentResult struct {
	Risks            []Risk   `json:"risks"`
	OverallRiskScore Severity `json:"overallRiskScore"`
	RiskSummary      string   `json:"riskSummary"`
	Recommendations  []string `json:"recommendations"`
}

// CountBySeverity returns the number of risks at each severity.
func (r *RiskAssessmentResult) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, risk := range r.Risks {
		counts[risk.Severity]++
	}
	return counts
}

// JurisdictionUnknown is reported when no governing-law phrase was found.
const JurisdictionUnknown = "unknown"

// ExtractedLegalMetadata is the structural metadata found in a document.
type ExtractedLegalMetadata struct {
	DocumentType DocumentType `json:"documentType"`
	Parties      []string     `json:"parties"`
	Dates        []string     `json:"dates"`
	Amounts      []string     `json:"amounts"`
	Jurisdiction string       `json:"jurisdiction"`
}
