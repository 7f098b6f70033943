package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension for the near-duplicate index.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Articles are written by the scraping collaborator; this side only
-- reads them (plus inserts in tests and backfill tooling).
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY,
    url TEXT NOT NULL UNIQUE,
    headline TEXT,
    section TEXT,
    date_published TEXT,
    content TEXT,
    html_content TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per extracted incident. Absent fields hold the 'N/A'
-- sentinel, never the empty string. The unique index is the safety net
-- for check-then-insert races on the structured natural key.
CREATE TABLE IF NOT EXISTS incidents (
    id INTEGER PRIMARY KEY,
    article_id INTEGER REFERENCES articles(id),
    source TEXT NOT NULL,
    incident_reported_date TEXT,
    incident_date TEXT,
    accused_name TEXT NOT NULL,
    accused_age TEXT,
    accused_location TEXT,
    charges TEXT,
    details TEXT,
    legal_actions TEXT,
    structured_source INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source, accused_name, accused_age, accused_location, charges)
);

-- Articles whose extraction could not be confidently completed, set
-- aside for re-review. Uniqueness per article is enforced by the
-- idempotent insert helper, not a constraint.
CREATE TABLE IF NOT EXISTS quarantined_articles (
    id INTEGER PRIMARY KEY,
    article_id INTEGER NOT NULL,
    url TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Near-duplicate index over incident details via sqlite-vec. Populated
-- only when an embedding provider is configured.
CREATE VIRTUAL TABLE IF NOT EXISTS vec_incidents USING vec0(
    incident_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

CREATE INDEX IF NOT EXISTS idx_incidents_reported_name ON incidents(incident_reported_date, accused_name);
CREATE INDEX IF NOT EXISTS idx_incidents_article ON incidents(article_id);
CREATE INDEX IF NOT EXISTS idx_quarantined_article ON quarantined_articles(article_id);
CREATE INDEX IF NOT EXISTS idx_articles_section ON articles(section);
`, embeddingDim)
}
