package domain

import (
	"context"
	"time"
)

// Cache stores finished assessments by content key so an identical
// resubmission skips analysis. Keys are scoped per tenant; a cached
// assessment is never served across tenants.
//
// A miss is nil, nil. Backends are an in-process LRU (Community), Redis, or
// an LRU in front of Redis (Pro).
type Cache interface {
	GetAssessment(ctx context.Context, tenantID string, key string) (*Assessment, error)
	SetAssessment(ctx context.Context, tenantID string, key string, a *Assessment, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is "memory" or "redis".
	Type string `json:"type"`

	// In-process LRU. LocalTTL caps how long the L1 tier of a two-phase
	// cache may serve an entry without consulting Redis.
	LocalMaxSize int           `json:"localMaxSize"`
	LocalTTL     time.Duration `json:"localTtl"`

	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redisDb,omitempty"`

	// EnableTwoPhase puts the LRU in front of Redis.
	EnableTwoPhase bool `json:"enableTwoPhase"`
}
