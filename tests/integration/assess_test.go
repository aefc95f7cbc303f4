//go:build integration
// +build integration

// Package integration provides end-to-end tests against a running Covenant server.
//
// These tests exercise the full assessment pipeline:
//
//	Document -> Metadata + Patterns -> Findings -> Dedup -> Overall Score
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server only needs the built-in catalog. Custom patterns created here
// are deleted when each test finishes.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("COVENANT_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Covenant's API contract)
// ============================================================================

// AssessRequest is the document sent to POST /assess
type AssessRequest struct {
	Text         string `json:"text"`
	DocumentType string `json:"documentType,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// AssessResponse is what POST /assess returns
type AssessResponse struct {
	AssessmentID     string     `json:"assessmentId"`
	DocumentID       string     `json:"documentId"`
	OverallRiskScore string     `json:"overallRiskScore"`
	RiskSummary      string     `json:"riskSummary"`
	Risks            []Risk     `json:"risks"`
	Recommendations  []string   `json:"recommendations"`
	Metadata         Metadata   `json:"metadata"`
	Processing       Processing `json:"processing"`
}

type Risk struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	PatternID   string `json:"patternId"`
}

type Metadata struct {
	DocumentType string   `json:"documentType"`
	Parties      []string `json:"parties"`
	Amounts      []string `json:"amounts"`
	Jurisdiction string   `json:"jurisdiction"`
}

type Processing struct {
	TraceID        string `json:"traceId"`
	TotalMs        int64  `json:"totalMs"`
	CatalogVersion string `json:"catalogVersion"`
	EngineVersion  string `json:"engineVersion"`
	Cached         bool   `json:"cached"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func call(t *testing.T, config TestConfig, method, path string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if config.TenantID != "" {
		httpReq.Header.Set("X-Tenant-ID", config.TenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, respBody
}

func assess(t *testing.T, config TestConfig, req AssessRequest) AssessResponse {
	t.Helper()

	status, body := call(t, config, http.MethodPost, "/assess", req)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, string(body))
	}

	var result AssessResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}
	return result
}

func hasPattern(risks []Risk, id string) bool {
	for _, r := range risks {
		if r.PatternID == id {
			return true
		}
	}
	return false
}

// ============================================================================
// SCENARIO 1: Plain document, no risky language
// ============================================================================

func TestPlainDocument_LowRisk(t *testing.T) {
	config := getTestConfig()

	result := assess(t, config, AssessRequest{
		Text: "The parties met on Tuesday to discuss the schedule for the spring newsletter.",
	})

	if result.OverallRiskScore != "low" {
		t.Errorf("Expected low overall risk, got %s (%v)", result.OverallRiskScore, result.Risks)
	}
	if len(result.Recommendations) == 0 {
		t.Error("Expected general recommendations even without risks")
	}

	t.Logf("✓ Plain document: risk=%s, risks=%d", result.OverallRiskScore, len(result.Risks))
}

// ============================================================================
// SCENARIO 2: Three high-severity clauses escalate to high
// ============================================================================

func TestOneSidedContract_HighRisk(t *testing.T) {
	config := getTestConfig()

	result := assess(t, config, AssessRequest{
		Text: "The Customer shall have unlimited liability for all damages. " +
			"Customer agrees to indemnify and hold harmless the Provider. " +
			"All disputes shall be resolved by binding arbitration.",
		DocumentType: "contract",
	})

	if result.OverallRiskScore != "high" {
		t.Errorf("Expected high overall risk, got %s", result.OverallRiskScore)
	}

	highs := 0
	for _, r := range result.Risks {
		if r.Severity == "high" {
			highs++
		}
	}
	if highs < 3 {
		t.Errorf("Expected at least 3 high risks, got %d: %v", highs, result.Risks)
	}

	t.Logf("✓ One-sided contract: risk=%s, high=%d", result.OverallRiskScore, highs)
}

// ============================================================================
// SCENARIO 3: Lease metadata and supplementary patterns
// ============================================================================

func TestLease_MetadataExtracted(t *testing.T) {
	config := getTestConfig()

	result := assess(t, config, AssessRequest{
		Text: `This Lease is made between John Smith ("Landlord") and Jane Doe ("Tenant"). ` +
			"Tenant shall pay rent of $1,500.00 per month. " +
			"This Lease is governed by the laws of the State of California.",
	})

	if result.Metadata.DocumentType != "lease" {
		t.Errorf("Expected lease, got %s", result.Metadata.DocumentType)
	}
	if len(result.Metadata.Amounts) == 0 {
		t.Error("Expected the rent amount to be extracted")
	}
	if result.Metadata.Jurisdiction == "unknown" {
		t.Error("Expected the governing law to be detected")
	}
}

// ============================================================================
// SCENARIO 4: Repeat submission is served from the cache
// ============================================================================

func TestRepeatSubmission_Cached(t *testing.T) {
	config := getTestConfig()
	req := AssessRequest{
		Text: fmt.Sprintf("Provider may terminate this agreement at any time. Ref %d.", time.Now().UnixNano()),
	}

	first := assess(t, config, req)
	second := assess(t, config, req)

	if first.Processing.Cached {
		t.Error("Expected first submission to be analyzed")
	}
	if !second.Processing.Cached {
		t.Error("Expected second submission to be cached")
	}
	if first.AssessmentID == second.AssessmentID {
		t.Error("Expected a new assessment id for the cached response")
	}
	if first.OverallRiskScore != second.OverallRiskScore {
		t.Errorf("Cached score %s differs from %s", second.OverallRiskScore, first.OverallRiskScore)
	}
}

// ============================================================================
// SCENARIO 5: Custom pattern goes live after reload
// ============================================================================

func TestCustomPattern_HotReload(t *testing.T) {
	config := getTestConfig()
	id := fmt.Sprintf("it-gym-cancel-%d", time.Now().UnixNano())

	status, body := call(t, config, http.MethodPost, "/patterns", map[string]any{
		"id":          id,
		"name":        "Gym cancellation",
		"trigger":     map[string]any{"any": []string{`cancel\w*\s+in\s+person`}},
		"category":    "operational",
		"severity":    "medium",
		"description": "Cancellation requires an in-person visit.",
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", status, string(body))
	}
	t.Cleanup(func() {
		call(t, config, http.MethodDelete, "/patterns/"+id, nil)
	})

	if status, body := call(t, config, http.MethodPost, "/patterns/reload", nil); status != http.StatusOK {
		t.Fatalf("Reload failed with %d: %s", status, string(body))
	}

	result := assess(t, config, AssessRequest{
		Text: fmt.Sprintf("Members may only cancel in person at the front desk. Ref %d.", time.Now().UnixNano()),
	})
	if !hasPattern(result.Risks, id) {
		t.Errorf("Expected custom pattern %s to fire, got %v", id, result.Risks)
	}
}

// ============================================================================
// SCENARIO 6: Error handling
// ============================================================================

func TestMissingTenantHeader_Error(t *testing.T) {
	config := getTestConfig()
	config.TenantID = ""

	status, _ := call(t, config, http.MethodPost, "/assess", AssessRequest{Text: "anything"})
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400 without X-Tenant-ID, got %d", status)
	}
}

func TestInvalidPattern_Rejected(t *testing.T) {
	config := getTestConfig()

	status, _ := call(t, config, http.MethodPost, "/patterns", map[string]any{
		"id":          "it-broken",
		"trigger":     map[string]any{"any": []string{`(unclosed`}},
		"category":    "legal",
		"severity":    "high",
		"description": "broken",
	})
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an invalid regex, got %d", status)
	}
}

// ============================================================================
// SCENARIO 7: Response metadata
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	config := getTestConfig()

	result := assess(t, config, AssessRequest{Text: "Any dispute shall be settled by binding arbitration."})

	if result.Processing.TraceID == "" {
		t.Error("Expected a trace id")
	}
	if result.Processing.EngineVersion == "" || result.Processing.CatalogVersion == "" {
		t.Error("Expected engine and catalog versions")
	}
	if result.AssessmentID == "" || result.DocumentID == "" {
		t.Error("Expected assessment and document ids")
	}
}
