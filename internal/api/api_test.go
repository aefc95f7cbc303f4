package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/covenant/internal/analyzer"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/cache"
	"github.com/opensource-finance/covenant/internal/catalog"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/repository"
)

const riskyContract = "The Customer shall have unlimited liability for all damages. " +
	"Customer agrees to indemnify and hold harmless the Provider. " +
	"All disputes shall be resolved by binding arbitration."

type testDeps struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	patternsDir string
}

// createTestServer creates a server over the built-in catalog.
func createTestServer(t *testing.T, deps testDeps) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	reg, err := catalog.NewRegistry(catalog.Builtin())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	return NewServer(cfg, deps.repo, deps.cache, deps.bus, analyzer.NewProvider(reg), Options{
		Version:     "test-v1",
		PatternsDir: deps.patternsDir,
	})
}

func newRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: repository.MemoryPath})
	if err != nil {
		t.Fatalf("repository.New failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TenantIDHeader, "tenant-001")

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestAssessEndpoint(t *testing.T) {
	server := createTestServer(t, testDeps{})

	t.Run("HighRiskContract", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/assess", domain.DocumentRequest{
			Text:         riskyContract,
			DocumentType: "contract",
			Jurisdiction: "US-NY",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if rr.Header().Get(TraceIDHeader) == "" {
			t.Error("expected X-Trace-ID header")
		}

		var resp domain.AssessmentResponse
		decodeBody(t, rr, &resp)

		if resp.AssessmentID == "" || resp.DocumentID == "" {
			t.Error("expected assessment and document ids")
		}
		if resp.TenantID != "tenant-001" {
			t.Errorf("expected tenant 'tenant-001', got '%s'", resp.TenantID)
		}
		if resp.OverallRiskScore != domain.SeverityHigh {
			t.Errorf("expected high risk, got %s", resp.OverallRiskScore)
		}
		if len(resp.Risks) < 3 {
			t.Errorf("expected at least 3 risks, got %d", len(resp.Risks))
		}
		if resp.Metadata.DocumentType != domain.DocContract {
			t.Errorf("expected contract, got %s", resp.Metadata.DocumentType)
		}
		if resp.Metadata.Jurisdiction != "US-NY" {
			t.Errorf("expected jurisdiction US-NY, got %s", resp.Metadata.Jurisdiction)
		}
		if resp.Processing.EngineVersion != analyzer.EngineVersion {
			t.Errorf("expected engine version %s, got %s", analyzer.EngineVersion, resp.Processing.EngineVersion)
		}
		if resp.Processing.CatalogVersion != catalog.BuiltinVersion {
			t.Errorf("expected catalog version %s, got %s", catalog.BuiltinVersion, resp.Processing.CatalogVersion)
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/assess", domain.DocumentRequest{})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp domain.AssessmentResponse
		decodeBody(t, rr, &resp)
		if resp.OverallRiskScore != domain.SeverityLow {
			t.Errorf("expected low risk, got %s", resp.OverallRiskScore)
		}
		if resp.Risks == nil || len(resp.Risks) != 0 {
			t.Errorf("expected empty risk list, got %v", resp.Risks)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/assess", "{invalid")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(`{"text":"x"}`))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReservedTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(`{"text":"x"}`))
		req.Header.Set(TenantIDHeader, GlobalTenantID)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MalformedTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(`{"text":"x"}`))
		req.Header.Set(TenantIDHeader, "tenant 001/../x")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		reg, _ := catalog.NewRegistry(catalog.Builtin())
		small := NewServer(domain.ServerConfig{}, nil, nil, nil, analyzer.NewProvider(reg), Options{MaxBodyBytes: 64})

		rr := do(t, small, http.MethodPost, "/assess", domain.DocumentRequest{Text: strings.Repeat("a", 200)})
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected status 413, got %d", rr.Code)
		}
	})
}

func TestAssessCaching(t *testing.T) {
	server := createTestServer(t, testDeps{cache: cache.NewLRUCache(100)})

	req := domain.DocumentRequest{Text: riskyContract}

	var first, second domain.AssessmentResponse
	decodeBody(t, do(t, server, http.MethodPost, "/assess", req), &first)
	decodeBody(t, do(t, server, http.MethodPost, "/assess", req), &second)

	if first.Processing.Cached {
		t.Error("first assessment should not be cached")
	}
	if !second.Processing.Cached {
		t.Error("second assessment should be served from cache")
	}
	if first.AssessmentID == second.AssessmentID {
		t.Error("cached assessment should get a fresh id")
	}
	if len(first.Risks) != len(second.Risks) {
		t.Errorf("expected identical risks, got %d and %d", len(first.Risks), len(second.Risks))
	}
}

func TestArchive(t *testing.T) {
	server := createTestServer(t, testDeps{repo: newRepo(t)})

	rr := do(t, server, http.MethodPost, "/assess", domain.DocumentRequest{
		DocumentID: "doc-001",
		Text:       riskyContract,
	})
	var assessed domain.AssessmentResponse
	decodeBody(t, rr, &assessed)

	t.Run("GetAssessment", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/assessments/"+assessed.AssessmentID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp domain.AssessmentResponse
		decodeBody(t, rr, &resp)
		if resp.DocumentID != "doc-001" {
			t.Errorf("expected document 'doc-001', got '%s'", resp.DocumentID)
		}
		if len(resp.Risks) != len(assessed.Risks) {
			t.Errorf("expected %d risks, got %d", len(assessed.Risks), len(resp.Risks))
		}
	})

	t.Run("GetDocument", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/documents/doc-001", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var doc domain.Document
		decodeBody(t, rr, &doc)
		if doc.Text != riskyContract {
			t.Error("expected archived text")
		}
		if doc.ContentHash != repository.ContentHash(riskyContract) {
			t.Error("expected content hash")
		}
	})

	t.Run("ListDocumentAssessments", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/documents/doc-001/assessments", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		decodeBody(t, rr, &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 assessment, got %d", resp.Count)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/assessments/missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("OtherTenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/assessments/"+assessed.AssessmentID, nil)
		req.Header.Set(TenantIDHeader, "tenant-002")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 across tenants, got %d", rr.Code)
		}
	})

	t.Run("NoRepository", func(t *testing.T) {
		bare := createTestServer(t, testDeps{})
		rr := do(t, bare, http.MethodGet, "/assessments/anything", nil)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})
}

func TestIngestEndpoint(t *testing.T) {
	t.Run("NoBus", func(t *testing.T) {
		server := createTestServer(t, testDeps{})
		rr := do(t, server, http.MethodPost, "/documents", domain.DocumentRequest{Text: riskyContract})
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("Queued", func(t *testing.T) {
		eventBus := bus.NewChannelBus(10)
		defer eventBus.Close()

		received := make(chan domain.DocumentMessage, 1)
		eventBus.Subscribe(context.Background(), "tenant-001", domain.TopicDocumentIngested, func(ctx context.Context, msg *domain.Message) error {
			var dm domain.DocumentMessage
			if err := json.Unmarshal(msg.Payload, &dm); err != nil {
				return err
			}
			received <- dm
			return nil
		})

		server := createTestServer(t, testDeps{bus: eventBus})
		rr := do(t, server, http.MethodPost, "/documents", domain.DocumentRequest{Text: riskyContract})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d", rr.Code)
		}

		var resp IngestResponse
		decodeBody(t, rr, &resp)

		select {
		case dm := <-received:
			if dm.Document.ID != resp.DocumentID {
				t.Errorf("expected document %s, got %s", resp.DocumentID, dm.Document.ID)
			}
			if dm.TraceID == "" {
				t.Error("expected trace id in message")
			}
		case <-time.After(time.Second):
			t.Fatal("document was not published")
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		eventBus := bus.NewChannelBus(10)
		defer eventBus.Close()

		server := createTestServer(t, testDeps{bus: eventBus})
		rr := do(t, server, http.MethodPost, "/documents", domain.DocumentRequest{Text: "  "})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestMetadataEndpoint(t *testing.T) {
	server := createTestServer(t, testDeps{})

	rr := do(t, server, http.MethodPost, "/metadata", MetadataRequest{
		Text: `This Lease is made between John Smith ("Landlord") and Jane Doe ("Tenant"). ` +
			"Tenant shall pay rent of $1,500.00 per month. This Lease is governed by the laws of the State of California.",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var meta domain.ExtractedLegalMetadata
	decodeBody(t, rr, &meta)
	if meta.DocumentType != domain.DocLease {
		t.Errorf("expected lease, got %s", meta.DocumentType)
	}
	if len(meta.Amounts) == 0 {
		t.Error("expected amounts to be extracted")
	}
}

func TestAnalyzeClausesEndpoint(t *testing.T) {
	server := createTestServer(t, testDeps{})

	rr := do(t, server, http.MethodPost, "/clauses/analyze", ClauseRequest{
		Clauses: []domain.Clause{
			{ID: "c1", Content: "The Customer shall have unlimited liability for all damages."},
			{ID: "c2", Content: "Notices shall be sent by email."},
		},
		DocumentType: "contract",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Risks []domain.Risk `json:"risks"`
		Count int           `json:"count"`
	}
	decodeBody(t, rr, &resp)
	if resp.Count == 0 {
		t.Fatal("expected clause risks")
	}
	if resp.Risks[0].AffectedClause == "" {
		t.Error("expected affected clause to be set")
	}
}

func TestPatternEndpoints(t *testing.T) {
	dir := t.TempDir()
	server := createTestServer(t, testDeps{repo: newRepo(t), patternsDir: dir})

	custom := map[string]any{
		"id":          "gym-cancellation",
		"name":        "Gym cancellation",
		"trigger":     map[string]any{"any": []string{`cancel\w*\s+in\s+person`}},
		"category":    "operational",
		"severity":    "medium",
		"description": "Cancellation requires an in-person visit (\"{{match}}\").",
	}

	t.Run("ListPatterns", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/patterns", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count   int    `json:"count"`
			Version string `json:"version"`
		}
		decodeBody(t, rr, &resp)
		if resp.Count == 0 {
			t.Error("expected built-in patterns")
		}
		if resp.Version != catalog.BuiltinVersion {
			t.Errorf("expected version %s, got %s", catalog.BuiltinVersion, resp.Version)
		}
	})

	t.Run("GetBuiltinPattern", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/patterns/unlimited-liability", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var p domain.RiskPattern
		decodeBody(t, rr, &p)
		if p.Severity != domain.SeverityHigh {
			t.Errorf("expected high severity, got %s", p.Severity)
		}
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		bad := map[string]any{
			"id":          "broken",
			"trigger":     map[string]any{"any": []string{`(unclosed`}},
			"category":    "legal",
			"severity":    "high",
			"description": "broken",
		}
		rr := do(t, server, http.MethodPost, "/patterns", bad)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateAndReload", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/patterns", custom)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		// Not live until reload
		if rr := do(t, server, http.MethodGet, "/patterns/gym-cancellation", nil); rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 before reload, got %d", rr.Code)
		}

		rr = do(t, server, http.MethodPost, "/patterns/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		if rr := do(t, server, http.MethodGet, "/patterns/gym-cancellation", nil); rr.Code != http.StatusOK {
			t.Errorf("expected status 200 after reload, got %d", rr.Code)
		}

		rr = do(t, server, http.MethodPost, "/assess", domain.DocumentRequest{
			Text: "Members may only cancel in person at the front desk.",
		})
		var resp domain.AssessmentResponse
		decodeBody(t, rr, &resp)

		found := false
		for _, r := range resp.Risks {
			if r.PatternID == "gym-cancellation" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected custom pattern to fire, got %+v", resp.Risks)
		}
		if resp.Processing.CatalogVersion == catalog.BuiltinVersion {
			t.Error("expected catalog version to change after reload")
		}
	})

	t.Run("DirectoryPatterns", func(t *testing.T) {
		yaml := `patterns:
  - id: pet-ban
    name: Pet ban
    trigger:
      any: ['\bno\s+pets\b']
    category: operational
    severity: low
    description: Pets are prohibited.
`
		if err := os.WriteFile(filepath.Join(dir, "pets.yaml"), []byte(yaml), 0o644); err != nil {
			t.Fatal(err)
		}

		rr := do(t, server, http.MethodPost, "/patterns/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if rr := do(t, server, http.MethodGet, "/patterns/pet-ban", nil); rr.Code != http.StatusOK {
			t.Errorf("expected directory pattern, got %d", rr.Code)
		}
	})

	t.Run("BrokenDirectoryKeepsCatalog", func(t *testing.T) {
		before := server.Handler().provider.Registry().Current()

		if err := os.WriteFile(filepath.Join(dir, "zz-broken.yaml"), []byte("patterns: [unterminated"), 0o644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(filepath.Join(dir, "zz-broken.yaml"))

		rr := do(t, server, http.MethodPost, "/patterns/reload", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
		if server.Handler().provider.Registry().Current() != before {
			t.Error("failed reload replaced the catalog")
		}
	})

	t.Run("DeletePattern", func(t *testing.T) {
		rr := do(t, server, http.MethodDelete, "/patterns/gym-cancellation", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if rr := do(t, server, http.MethodGet, "/patterns/gym-cancellation", nil); rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 after delete, got %d", rr.Code)
		}
		if rr := do(t, server, http.MethodDelete, "/patterns/gym-cancellation", nil); rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 on second delete, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t, testDeps{repo: newRepo(t), cache: cache.NewLRUCache(10)})

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp map[string]string
		decodeBody(t, rr, &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		do(t, server, http.MethodPost, "/assess", domain.DocumentRequest{Text: riskyContract})

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "covenant_analyzer_assessments_total") {
			t.Error("expected assessment counter in metrics output")
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/assess", nil)
		req.Header.Set("Origin", "https://example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "https://example.com" {
			t.Error("expected origin to be echoed")
		}
	})

	t.Run("CORSRestricted", func(t *testing.T) {
		reg, _ := catalog.NewRegistry(catalog.Builtin())
		restricted := NewServer(domain.ServerConfig{AllowedOrigins: []string{"https://app.example.com"}},
			nil, nil, nil, analyzer.NewProvider(reg), Options{})

		req := httptest.NewRequest(http.MethodOptions, "/assess", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		restricted.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS headers for a disallowed origin")
		}
	})
}
