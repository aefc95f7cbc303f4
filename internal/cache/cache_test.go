package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/redis/go-redis/v9"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, tenantID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, tenantID, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, tenantID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "expiring", []byte("temp"), 10*time.Millisecond)

		val, _ := cache.Get(ctx, tenantID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, tenantID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// Touch 'a' so 'b' becomes the oldest
		_, _ = smallCache.Get(ctx, tenantID, "a")

		_ = smallCache.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

		val, _ := smallCache.Get(ctx, tenantID, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		val, _ = smallCache.Get(ctx, tenantID, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "tenant-001", "shared-key", []byte("tenant1-value"), time.Minute)
		_ = cache.Set(ctx, "tenant-002", "shared-key", []byte("tenant2-value"), time.Minute)

		val1, _ := cache.Get(ctx, "tenant-001", "shared-key")
		val2, _ := cache.Get(ctx, "tenant-002", "shared-key")

		if string(val1) != "tenant1-value" {
			t.Errorf("expected 'tenant1-value', got '%s'", string(val1))
		}
		if string(val2) != "tenant2-value" {
			t.Errorf("expected 'tenant2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := cache.Set(ctx, "", "key", []byte("value"), time.Minute); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := cache.Get(ctx, "", "key"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("AssessmentCache", func(t *testing.T) {
		a := sampleAssessment()

		if err := cache.SetAssessment(ctx, tenantID, "assessment:abc", a, time.Minute); err != nil {
			t.Fatalf("SetAssessment failed: %v", err)
		}

		got, err := cache.GetAssessment(ctx, tenantID, "assessment:abc")
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected cached assessment")
		}
		if got.ID != a.ID {
			t.Errorf("expected ID %s, got %s", a.ID, got.ID)
		}
		if got.Result.OverallRiskScore != domain.SeverityHigh {
			t.Errorf("expected high overall score, got %s", got.Result.OverallRiskScore)
		}
		if len(got.Result.Risks) != 1 || got.Result.Risks[0].PatternID != "binding-arbitration" {
			t.Errorf("unexpected risks: %+v", got.Result.Risks)
		}

		missing, err := cache.GetAssessment(ctx, tenantID, "assessment:none")
		if err != nil || missing != nil {
			t.Errorf("expected nil, nil on miss; got %v, %v", missing, err)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, tenantID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, tenantID, "k2", []byte("v2"), time.Minute)
		_, _ = statsCache.Get(ctx, tenantID, "k1")
		_, _ = statsCache.Get(ctx, tenantID, "k3")

		stats := statsCache.Stats()
		if stats.Size != 2 {
			t.Errorf("expected size 2, got %d", stats.Size)
		}
		if stats.Capacity != 50 {
			t.Errorf("expected capacity 50, got %d", stats.Capacity)
		}
		if stats.Hits != 1 || stats.Misses != 1 {
			t.Errorf("expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, tenantID, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		val, _ := testCache.Get(ctx, tenantID, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "tenant-001", "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists("covenant:tenant-001:k") {
		t.Error("expected key under the covenant namespace")
	}

	val, err := cache.Get(ctx, "tenant-001", "k")
	if err != nil || string(val) != "v" {
		t.Errorf("expected 'v', got %q (%v)", val, err)
	}

	mr.FastForward(2 * time.Minute)
	val, err = cache.Get(ctx, "tenant-001", "k")
	if err != nil || val != nil {
		t.Errorf("expected expired miss, got %q (%v)", val, err)
	}

	if err := cache.SetAssessment(ctx, "tenant-001", "assessment:x", sampleAssessment(), time.Minute); err != nil {
		t.Fatalf("SetAssessment failed: %v", err)
	}
	got, err := cache.GetAssessment(ctx, "tenant-001", "assessment:x")
	if err != nil || got == nil || got.DocumentID != "doc-001" {
		t.Errorf("unexpected assessment: %+v (%v)", got, err)
	}

	if err := cache.Delete(ctx, "tenant-001", "assessment:x"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists("covenant:tenant-001:assessment:x") {
		t.Error("expected key to be deleted")
	}
}

func TestTwoPhaseCache(t *testing.T) {
	mr := miniredis.RunT(t)
	remote := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	local := NewLRUCache(10)
	cache := newTwoPhase(local, remote, time.Minute)
	defer cache.Close()
	ctx := context.Background()

	t.Run("WritesBothTiers", func(t *testing.T) {
		if err := cache.Set(ctx, "t1", "k", []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if v, _ := local.Get(ctx, "t1", "k"); string(v) != "v" {
			t.Error("expected L1 to hold the value")
		}
		if !mr.Exists("covenant:t1:k") {
			t.Error("expected L2 to hold the value")
		}
		if ttl := mr.TTL("covenant:t1:k"); ttl != time.Hour {
			t.Errorf("expected full TTL in L2, got %v", ttl)
		}
	})

	t.Run("PopulatesL1FromL2", func(t *testing.T) {
		if err := mr.Set("covenant:t1:remote-only", "r"); err != nil {
			t.Fatal(err)
		}

		v, err := cache.Get(ctx, "t1", "remote-only")
		if err != nil || string(v) != "r" {
			t.Fatalf("expected 'r', got %q (%v)", v, err)
		}
		if v, _ := local.Get(ctx, "t1", "remote-only"); string(v) != "r" {
			t.Error("expected L2 hit to populate L1")
		}
	})

	t.Run("DeleteBothTiers", func(t *testing.T) {
		_ = cache.Set(ctx, "t1", "gone", []byte("x"), time.Minute)
		if err := cache.Delete(ctx, "t1", "gone"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if v, _ := cache.Get(ctx, "t1", "gone"); v != nil {
			t.Error("expected miss after delete")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestAssessmentKey(t *testing.T) {
	doc := &domain.Document{Text: "Tenant pays rent.", DocumentType: "lease", Jurisdiction: "US-CA"}
	key := AssessmentKey(doc, "builtin-2025.1")

	if key != AssessmentKey(doc, "builtin-2025.1") {
		t.Error("expected a stable key")
	}

	changed := []struct {
		name    string
		doc     domain.Document
		version string
	}{
		{"text", domain.Document{Text: "Tenant pays rent!", DocumentType: "lease", Jurisdiction: "US-CA"}, "builtin-2025.1"},
		{"type", domain.Document{Text: doc.Text, DocumentType: "contract", Jurisdiction: "US-CA"}, "builtin-2025.1"},
		{"jurisdiction", domain.Document{Text: doc.Text, DocumentType: "lease", Jurisdiction: "US-NY"}, "builtin-2025.1"},
		{"catalog", *doc, "builtin-2025.1+abc"},
		{"clauses", domain.Document{Text: doc.Text, DocumentType: "lease", Jurisdiction: "US-CA", Clauses: []domain.Clause{{ID: "c1", Content: "x"}}}, "builtin-2025.1"},
	}
	for _, tt := range changed {
		t.Run(tt.name, func(t *testing.T) {
			if AssessmentKey(&tt.doc, tt.version) == key {
				t.Errorf("expected %s to change the key", tt.name)
			}
		})
	}
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func sampleAssessment() *domain.Assessment {
	return &domain.Assessment{
		ID:         "assess-001",
		TenantID:   "tenant-001",
		DocumentID: "doc-001",
		Timestamp:  time.Now().UTC(),
		Result: domain.RiskAssessmentResult{
			Risks: []domain.Risk{{
				Category:    domain.CategoryLegal,
				Severity:    domain.SeverityHigh,
				Description: "Mandatory arbitration: disputes are kept out of court.",
				PatternID:   "binding-arbitration",
			}},
			OverallRiskScore: domain.SeverityHigh,
		},
	}
}
