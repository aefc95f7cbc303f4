// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/covenant/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ContentHash returns the hex SHA-256 of a document's text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SaveDocument stores a document with tenant isolation. Saving an existing
// id replaces its content.
func (r *SQLRepository) SaveDocument(ctx context.Context, tenantID string, doc *domain.Document) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}

	if doc.ContentHash == "" {
		doc.ContentHash = ContentHash(doc.Text)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	clauses, err := json.Marshal(doc.Clauses)
	if err != nil {
		return fmt.Errorf("encoding clauses: %w", err)
	}

	query := `
		INSERT INTO documents (
			id, tenant_id, document_type, jurisdiction, content_hash, text, clauses, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			document_type = excluded.document_type,
			jurisdiction = excluded.jurisdiction,
			content_hash = excluded.content_hash,
			text = excluded.text,
			clauses = excluded.clauses
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		doc.ID, tenantID, doc.DocumentType, doc.Jurisdiction,
		doc.ContentHash, doc.Text, string(clauses), doc.CreatedAt,
	)
	return err
}

// GetDocument retrieves a document by ID with tenant isolation.
func (r *SQLRepository) GetDocument(ctx context.Context, tenantID string, docID string) (*domain.Document, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, document_type, jurisdiction, content_hash, text, clauses, created_at
		FROM documents
		WHERE tenant_id = ? AND id = ?
	`

	var doc domain.Document
	var docType, jurisdiction, clauses sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, docID).Scan(
		&doc.ID, &doc.TenantID, &docType, &jurisdiction,
		&doc.ContentHash, &doc.Text, &clauses, &doc.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.DocumentType = docType.String
	doc.Jurisdiction = jurisdiction.String
	if clauses.Valid && clauses.String != "" && clauses.String != "null" {
		if err := json.Unmarshal([]byte(clauses.String), &doc.Clauses); err != nil {
			return nil, fmt.Errorf("failed to parse clauses of document %s: %w", doc.ID, err)
		}
	}

	return &doc, nil
}

// SaveAssessment stores an assessment with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	processing, err := json.Marshal(a.Processing)
	if err != nil {
		return fmt.Errorf("encoding processing metadata: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, tenant_id, document_id, overall_risk, risk_count, timestamp,
			metadata, result, processing
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.DocumentID, string(a.Result.OverallRiskScore), len(a.Result.Risks), a.Timestamp,
		string(metadata), string(result), string(processing),
	)
	return err
}

const assessmentColumns = `id, tenant_id, document_id, timestamp, metadata, result, processing`

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE tenant_id = ? AND id = ?`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssessments returns the assessments of a document, newest first.
func (r *SQLRepository) ListAssessments(ctx context.Context, tenantID string, documentID string) ([]*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments
		WHERE tenant_id = ? AND document_id = ?
		ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row scanner) (*domain.Assessment, error) {
	var a domain.Assessment
	var metadata, result, processing string

	if err := row.Scan(&a.ID, &a.TenantID, &a.DocumentID, &a.Timestamp, &metadata, &result, &processing); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata of assessment %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
		return nil, fmt.Errorf("failed to parse result of assessment %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(processing), &a.Processing); err != nil {
		return nil, fmt.Errorf("failed to parse processing metadata of assessment %s: %w", a.ID, err)
	}

	return &a, nil
}

// SavePattern stores a custom risk pattern with tenant isolation.
// Saving an existing id replaces the definition and re-enables it.
func (r *SQLRepository) SavePattern(ctx context.Context, tenantID string, p *domain.RiskPattern) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: pattern id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.TenantID = tenantID

	definition, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding pattern: %w", err)
	}

	enabled := 0
	if p.Enabled {
		enabled = 1
	}

	query := `
		INSERT INTO risk_patterns (
			id, tenant_id, name, version, category, severity, definition, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			category = excluded.category,
			severity = excluded.severity,
			definition = excluded.definition,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		p.ID, tenantID, p.Name, p.Version, string(p.Category), string(p.Severity),
		string(definition), enabled, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetPattern retrieves an enabled custom pattern with tenant isolation.
func (r *SQLRepository) GetPattern(ctx context.Context, tenantID string, patternID string) (*domain.RiskPattern, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT definition
		FROM risk_patterns
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	var definition string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, patternID).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var p domain.RiskPattern
	if err := json.Unmarshal([]byte(definition), &p); err != nil {
		return nil, fmt.Errorf("failed to parse pattern %s: %w", patternID, err)
	}
	return &p, nil
}

// ListPatterns retrieves all enabled custom patterns for a tenant, by id.
func (r *SQLRepository) ListPatterns(ctx context.Context, tenantID string) ([]*domain.RiskPattern, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, definition
		FROM risk_patterns
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*domain.RiskPattern
	for rows.Next() {
		var id, definition string
		if err := rows.Scan(&id, &definition); err != nil {
			return nil, err
		}

		var p domain.RiskPattern
		if err := json.Unmarshal([]byte(definition), &p); err != nil {
			return nil, fmt.Errorf("failed to parse pattern %s: %w", id, err)
		}
		patterns = append(patterns, &p)
	}

	return patterns, rows.Err()
}

// DeletePattern soft-deletes a custom pattern by setting enabled = 0.
func (r *SQLRepository) DeletePattern(ctx context.Context, tenantID string, patternID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE risk_patterns
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, patternID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
