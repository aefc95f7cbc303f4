package domain

import (
	"time"
)

// Document is an ingested document and its caller-supplied hints.
type Document struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	Text         string    `json:"text"`
	Clauses      []Clause  `json:"clauses,omitempty"`
	DocumentType string    `json:"documentType,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	ContentHash  string    `json:"contentHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DocumentRequest is the API request payload for a document assessment.
type DocumentRequest struct {
	DocumentID   string   `json:"documentId,omitempty"`
	Text         string   `json:"text"`
	Clauses      []Clause `json:"clauses,omitempty"`
	DocumentType string   `json:"documentType,omitempty"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
}

// ToDocument converts a request to a Document.
func (r *DocumentRequest) ToDocument(tenantID string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:           r.DocumentID,
		TenantID:     tenantID,
		Text:         r.Text,
		Clauses:      r.Clauses,
		DocumentType: r.DocumentType,
		Jurisdiction: r.Jurisdiction,
		CreatedAt:    now,
	}
}

// Assessment is the archived result of analyzing one document.
type Assessment struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	DocumentID string    `json:"documentId"`
	Timestamp  time.Time `json:"timestamp"`

	Metadata ExtractedLegalMetadata `json:"metadata"`
	Result   RiskAssessmentResult   `json:"result"`

	Processing ProcessingMetadata `json:"processing"`
}

// ProcessingMetadata contains processing information.
type ProcessingMetadata struct {
	TraceID           string `json:"traceId,omitempty"`
	AnalysisMs        int64  `json:"analysisMs"`
	TotalMs           int64  `json:"totalMs"`
	PatternsEvaluated int    `json:"patternsEvaluated"`
	ClausesAnalyzed   int    `json:"clausesAnalyzed"`
	CatalogVersion    string `json:"catalogVersion"`
	EngineVersion     string `json:"engineVersion"`
	Cached            bool   `json:"cached,omitempty"`
}

// AssessmentResponse is the API response for a document assessment.
type AssessmentResponse struct {
	AssessmentID     string                 `json:"assessmentId"`
	DocumentID       string                 `json:"documentId"`
	TenantID         string                 `json:"tenantId"`
	OverallRiskScore Severity               `json:"overallRiskScore"`
	RiskSummary      string                 `json:"riskSummary"`
	Risks            []Risk                 `json:"risks"`
	Recommendations  []string               `json:"recommendations"`
	Metadata         ExtractedLegalMetadata `json:"metadata"`
	Processing       ProcessingMetadata     `json:"processing"`
}

// ToResponse converts an Assessment to an API response.
func (a *Assessment) ToResponse() *AssessmentResponse {
	risks := a.Result.Risks
	if risks == nil {
		risks = []Risk{}
	}
	return &AssessmentResponse{
		AssessmentID:     a.ID,
		DocumentID:       a.DocumentID,
		TenantID:         a.TenantID,
		OverallRiskScore: a.Result.OverallRiskScore,
		RiskSummary:      a.Result.RiskSummary,
		Risks:            risks,
		Recommendations:  a.Result.Recommendations,
		Metadata:         a.Metadata,
		Processing:       a.Processing,
	}
}

// IsHighRisk reports whether the assessment should raise a high-risk event.
func (a *Assessment) IsHighRisk() bool {
	return a.Result.OverallRiskScore == SeverityHigh
}

// Reuse stamps a cached assessment for a new request.
func (a *Assessment) Reuse(id, documentID, traceID string, totalMs int64) {
	a.ID = id
	a.DocumentID = documentID
	a.Timestamp = time.Now().UTC()
	a.Processing.TraceID = traceID
	a.Processing.TotalMs = totalMs
	a.Processing.Cached = true
}
