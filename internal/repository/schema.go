package repository

// Schema definitions for the Covenant archive.
// Compatible with both SQLite and PostgreSQL.

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    document_type TEXT,
    jurisdiction TEXT,
    content_hash TEXT NOT NULL,
    text TEXT NOT NULL,
    clauses TEXT,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(tenant_id, content_hash);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    overall_risk TEXT NOT NULL,
    risk_count INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL,
    result TEXT NOT NULL,
    processing TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_document ON assessments(tenant_id, document_id);
CREATE INDEX IF NOT EXISTS idx_assessments_risk ON assessments(tenant_id, overall_risk);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(tenant_id, timestamp);
`

// schemaRiskPatterns stores custom patterns. The full definition is kept as
// JSON; category, severity and enabled are columns for filtering.
const schemaRiskPatterns = `
CREATE TABLE IF NOT EXISTS risk_patterns (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    version TEXT,
    category TEXT NOT NULL,
    severity TEXT NOT NULL,
    definition TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_patterns_tenant ON risk_patterns(tenant_id);
CREATE INDEX IF NOT EXISTS idx_risk_patterns_enabled ON risk_patterns(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDocuments,
		schemaAssessments,
		schemaRiskPatterns,
	}
}
