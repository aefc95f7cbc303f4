// Package domain defines the core types and interfaces for Covenant.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Document operations
	SaveDocument(ctx context.Context, tenantID string, doc *Document) error
	GetDocument(ctx context.Context, tenantID string, docID string) (*Document, error)

	// Assessment results
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)
	ListAssessments(ctx context.Context, tenantID string, documentID string) ([]*Assessment, error)

	// Custom risk pattern operations
	SavePattern(ctx context.Context, tenantID string, p *RiskPattern) error
	GetPattern(ctx context.Context, tenantID string, patternID string) (*RiskPattern, error)
	ListPatterns(ctx context.Context, tenantID string) ([]*RiskPattern, error)
	DeletePattern(ctx context.Context, tenantID string, patternID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific. PostgresDSN, when set, overrides the other fields.
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
