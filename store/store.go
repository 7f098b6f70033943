// Package store wraps the SQLite database holding articles, extracted
// incidents, and the quarantine set.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrDuplicate is returned by InsertIncident when the unique index on
// the natural key rejects the row. Callers treat it as a successful
// dedup outcome, not a failure.
var ErrDuplicate = errors.New("store: duplicate incident")

// Sentinel is stored for absent incident fields. Persisted rows never
// hold the empty string.
const Sentinel = "N/A"

// Article is a row written by the scraping collaborator. This core
// reads articles and never mutates them.
type Article struct {
	ID            int64  `json:"id"`
	URL           string `json:"url"`
	Headline      string `json:"headline"`
	Section       string `json:"section"`
	DatePublished string `json:"date_published"`
	Content       string `json:"content"`
	HTMLContent   string `json:"html_content"`
}

// Incident is a persisted incident record.
type Incident struct {
	ID           int64  `json:"id"`
	ArticleID    int64  `json:"article_id"`
	Source       string `json:"source"`
	ReportedDate string `json:"incident_reported_date"`
	IncidentDate string `json:"incident_date,omitempty"`
	Name         string `json:"accused_name"`
	Age          string `json:"accused_age"`
	Location     string `json:"accused_location"`
	Charges      string `json:"charges"`
	Details      string `json:"details"`
	LegalActions string `json:"legal_actions"`
	Structured   bool   `json:"structured_source"`
	CreatedAt    string `json:"created_at"`
}

// QuarantinedArticle marks an article whose extraction could not be
// confidently completed.
type QuarantinedArticle struct {
	ID        int64  `json:"id"`
	ArticleID int64  `json:"article_id"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

// SimilarIncident is a near-duplicate hit from the vector index.
type SimilarIncident struct {
	IncidentID int64   `json:"incident_id"`
	Name       string  `json:"accused_name"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

// Store wraps the SQLite database for all blotter persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Article operations ---

// InsertArticle stores an article row. Used by tests and import
// tooling; the production writer is the scraping collaborator.
func (s *Store) InsertArticle(ctx context.Context, a Article) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (url, headline, section, date_published, content, html_content)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.URL, a.Headline, a.Section, a.DatePublished, a.Content, a.HTMLContent)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetArticleByURL returns the article with the given URL, or
// sql.ErrNoRows.
func (s *Store) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, COALESCE(headline, ''), COALESCE(section, ''),
		       COALESCE(date_published, ''), COALESCE(content, ''), COALESCE(html_content, '')
		FROM articles WHERE url = ?
	`, url)

	var a Article
	if err := row.Scan(&a.ID, &a.URL, &a.Headline, &a.Section, &a.DatePublished, &a.Content, &a.HTMLContent); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListArticlesBySection returns all articles in a section, oldest
// first.
func (s *Store) ListArticlesBySection(ctx context.Context, section string) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, COALESCE(headline, ''), COALESCE(section, ''),
		       COALESCE(date_published, ''), COALESCE(content, ''), COALESCE(html_content, '')
		FROM articles WHERE section = ?
		ORDER BY date_published ASC, id ASC
	`, section)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.URL, &a.Headline, &a.Section, &a.DatePublished, &a.Content, &a.HTMLContent); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// --- Incident operations ---

// orSentinel maps internal empty values to the stored sentinel.
func orSentinel(v string) string {
	if v == "" {
		return Sentinel
	}
	return v
}

// InsertIncident persists one incident record, mapping empty fields to
// the sentinel. A unique-index violation on the natural key comes back
// as ErrDuplicate with nothing written.
func (s *Store) InsertIncident(ctx context.Context, inc Incident) (int64, error) {
	if inc.Name == "" || inc.Name == Sentinel {
		return 0, fmt.Errorf("accused name is required for a persisted incident")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (article_id, source, incident_reported_date, incident_date,
		                       accused_name, accused_age, accused_location, charges, details,
		                       legal_actions, structured_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullableID(inc.ArticleID), inc.Source, inc.ReportedDate, nullable(inc.IncidentDate),
		inc.Name, orSentinel(inc.Age), orSentinel(inc.Location), orSentinel(inc.Charges),
		orSentinel(inc.Details), orSentinel(inc.LegalActions), inc.Structured)
	if err != nil {
		// Only a unique-index violation is a dedup outcome. Other
		// constraint classes (NOT NULL, foreign key) are real failures.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("incident for %q: %w", inc.Name, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

const incidentColumns = `id, COALESCE(article_id, 0), source, COALESCE(incident_reported_date, ''),
	COALESCE(incident_date, ''), accused_name, COALESCE(accused_age, ''),
	COALESCE(accused_location, ''), COALESCE(charges, ''), COALESCE(details, ''),
	COALESCE(legal_actions, ''), structured_source, created_at`

func scanIncident(scanner interface{ Scan(...any) error }) (Incident, error) {
	var inc Incident
	err := scanner.Scan(&inc.ID, &inc.ArticleID, &inc.Source, &inc.ReportedDate,
		&inc.IncidentDate, &inc.Name, &inc.Age, &inc.Location, &inc.Charges,
		&inc.Details, &inc.LegalActions, &inc.Structured, &inc.CreatedAt)
	return inc, err
}

func (s *Store) queryIncidents(ctx context.Context, where string, args ...any) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+incidentColumns+" FROM incidents "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// FindByStructuredKey returns incidents matching the structured path's
// natural key: source URL plus the four identity fields.
func (s *Store) FindByStructuredKey(ctx context.Context, source, name, age, location, charges string) ([]Incident, error) {
	return s.queryIncidents(ctx,
		"WHERE source = ? AND accused_name = ? AND accused_age = ? AND accused_location = ? AND charges = ?",
		source, name, orSentinel(age), orSentinel(location), orSentinel(charges))
}

// FindByUnstructuredKey returns incidents matching the unstructured
// path's natural key: reported date plus accused name. The wider
// structured key is useless there because classifier field values
// drift run-to-run.
func (s *Store) FindByUnstructuredKey(ctx context.Context, reportedDate, name string) ([]Incident, error) {
	return s.queryIncidents(ctx,
		"WHERE incident_reported_date = ? AND accused_name = ?", reportedDate, name)
}

// ListIncidents returns all incidents, insertion order.
func (s *Store) ListIncidents(ctx context.Context) ([]Incident, error) {
	return s.queryIncidents(ctx, "ORDER BY id ASC")
}

// ListIncidentsWithoutDate returns incidents whose absolute incident
// date has not been inferred yet.
func (s *Store) ListIncidentsWithoutDate(ctx context.Context) ([]Incident, error) {
	return s.queryIncidents(ctx,
		"WHERE incident_date IS NULL OR incident_date = '' ORDER BY id ASC")
}

// UpdateIncidentDateByDetails backfills the inferred incident date on
// the record carrying the given details text. Returns false when no
// such record exists.
func (s *Store) UpdateIncidentDateByDetails(ctx context.Context, details, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE incidents SET incident_date = ? WHERE details = ?", date, details)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountIncidents returns the total number of stored incidents.
func (s *Store) CountIncidents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM incidents").Scan(&n)
	return n, err
}

// --- Quarantine operations ---

// QuarantineArticle records an article for re-review. Idempotent: a
// second call for the same article id is a no-op and reports false.
func (s *Store) QuarantineArticle(ctx context.Context, articleID int64, url string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM quarantined_articles WHERE article_id = ?", articleID).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO quarantined_articles (article_id, url) VALUES (?, ?)", articleID, url)
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsQuarantined reports whether the article is in the quarantine set.
func (s *Store) IsQuarantined(ctx context.Context, articleID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM quarantined_articles WHERE article_id = ?", articleID).Scan(&n)
	return n > 0, err
}

// ListQuarantined returns the quarantine set, oldest first.
func (s *Store) ListQuarantined(ctx context.Context) ([]QuarantinedArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, COALESCE(url, ''), created_at
		FROM quarantined_articles ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var qs []QuarantinedArticle
	for rows.Next() {
		var q QuarantinedArticle
		if err := rows.Scan(&q.ID, &q.ArticleID, &q.URL, &q.CreatedAt); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// --- Embedding operations ---

// InsertIncidentEmbedding stores the details-text embedding for an
// incident in the near-duplicate index.
func (s *Store) InsertIncidentEmbedding(ctx context.Context, incidentID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_incidents (incident_id, embedding) VALUES (?, ?)",
		incidentID, serializeFloat32(embedding))
	return err
}

// SimilarIncidents performs a KNN search over stored incident
// embeddings, returning the top-k nearest with similarity scores.
func (s *Store) SimilarIncidents(ctx context.Context, embedding []float32, k int) ([]SimilarIncident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.incident_id, v.distance, i.accused_name, i.source
		FROM vec_incidents v
		JOIN incidents i ON i.id = v.incident_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SimilarIncident
	for rows.Next() {
		var r SimilarIncident
		var distance float64
		if err := rows.Scan(&r.IncidentID, &distance, &r.Name, &r.Source); err != nil {
			return nil, err
		}
		// Convert distance to similarity score (1 - distance for cosine)
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Maintenance ---

// Reset deletes all extracted data: incidents, embeddings, and the
// quarantine set. Articles stay; they belong to the scraper.
func (s *Store) Reset(ctx context.Context) error {
	for _, stmt := range []string{
		"DELETE FROM vec_incidents",
		"DELETE FROM incidents",
		"DELETE FROM quarantined_articles",
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return nil
}

// nullable maps "" to NULL for columns where absence means "not yet".
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// nullableID maps 0 to NULL so records with no backing article row, such
// as PDF intake, do not trip the foreign key.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
