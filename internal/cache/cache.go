// Package cache provides assessment caching for Covenant.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/covenant/internal/domain"
)

// New creates a cache based on configuration.
// "memory" returns an LRU cache. "redis" returns a Redis cache, or an LRU
// in front of Redis when two-phase caching is enabled.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// AssessmentKey derives the content key for an assessment. Two requests with
// the same text, clauses and hints against the same catalog share a key.
func AssessmentKey(doc *domain.Document, catalogVersion string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|", doc.DocumentType, doc.Jurisdiction, catalogVersion)
	h.Write([]byte(doc.Text))
	for _, c := range doc.Clauses {
		fmt.Fprintf(h, "|%s|%s|%s|%s|%s", c.ID, c.Title, c.RiskLevel, c.Explanation, c.Content)
	}
	return "assessment:" + hex.EncodeToString(h.Sum(nil))
}

// byteStore is the raw key/value surface shared by the cache backends.
type byteStore interface {
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error
}

func getAssessment(ctx context.Context, s byteStore, tenantID, key string) (*domain.Assessment, error) {
	data, err := s.Get(ctx, tenantID, key)
	if err != nil || data == nil {
		return nil, err
	}

	var a domain.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding cached assessment: %w", err)
	}
	return &a, nil
}

func setAssessment(ctx context.Context, s byteStore, tenantID, key string, a *domain.Assessment, ttl time.Duration) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding assessment: %w", err)
	}
	return s.Set(ctx, tenantID, key, data, ttl)
}

// TwoPhaseCache implements the two-phase caching strategy.
// L1: Local LRU cache for fast reads
// L2: Redis shared by every node
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return newTwoPhase(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL), nil
}

func newTwoPhase(local *LRUCache, remote *RedisCache, l1TTL time.Duration) *TwoPhaseCache {
	if l1TTL == 0 {
		l1TTL = 5 * time.Minute
	}
	return &TwoPhaseCache{local: local, remote: remote, l1TTL: l1TTL}
}

// Get retrieves from L1 first, then L2. Populates L1 on L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		return val, nil
	}

	val, err = c.remote.Get(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, tenantID, key, val, c.l1TTL)
	}

	return val, nil
}

// Set writes to both L1 and L2. L1 never holds an entry longer than l1TTL.
func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.local.Set(ctx, tenantID, key, value, l1TTL); err != nil {
		return err
	}
	return c.remote.Set(ctx, tenantID, key, value, ttl)
}

// Delete removes from both L1 and L2.
func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := c.local.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, tenantID, key)
}

// GetAssessment retrieves a cached assessment.
func (c *TwoPhaseCache) GetAssessment(ctx context.Context, tenantID string, key string) (*domain.Assessment, error) {
	return getAssessment(ctx, c, tenantID, key)
}

// SetAssessment caches an assessment in both tiers.
func (c *TwoPhaseCache) SetAssessment(ctx context.Context, tenantID string, key string, a *domain.Assessment, ttl time.Duration) error {
	return setAssessment(ctx, c, tenantID, key, a, ttl)
}

// Ping checks both L1 and L2 health.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both L1 and L2.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 cache statistics.
func (c *TwoPhaseCache) Stats() Stats {
	return c.local.Stats()
}
