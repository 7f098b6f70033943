// Package blotter extracts incident records from police-blotter news
// articles, normalizes them, and persists them with exact-key
// deduplication.
package blotter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blotter/export"
	"blotter/extract"
	"blotter/llm"
	"blotter/normalize"
	"blotter/store"
)

// Pipeline is the main entry point for incident extraction.
type Pipeline interface {
	// ProcessArticle runs one article through extraction, normalization,
	// classification, and dedup. Per-incident failures are counted, not
	// fatal; a format mismatch quarantines the article.
	ProcessArticle(ctx context.Context, article store.Article) (*ArticleResult, error)

	// ProcessSection runs every stored article in the configured section.
	// A failing article is logged and skipped; the run continues.
	ProcessSection(ctx context.Context) (*RunResult, error)

	// ProcessPDF extracts incidents from a PDF blotter document through
	// the classifier path.
	ProcessPDF(ctx context.Context, path, reportedDate string) (*ArticleResult, error)

	// BackfillDates infers absolute incident dates for records that do
	// not have one yet.
	BackfillDates(ctx context.Context) (*BackfillResult, error)

	// ExportReview writes incidents and the quarantine set to an XLSX
	// workbook at path.
	ExportReview(ctx context.Context, path string) error

	// Reset deletes all extracted data, keeping articles.
	Reset(ctx context.Context) error

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the pipeline.
	Close() error
}

// ArticleResult reports what one article produced.
type ArticleResult struct {
	ArticleID   int64 `json:"article_id"`
	Structured  bool  `json:"structured"`
	Quarantined bool  `json:"quarantined"`
	Candidates  int   `json:"candidates"`
	Inserted    int   `json:"inserted"`
	Duplicates  int   `json:"duplicates"`
	Rejected    int   `json:"rejected"`
	Sparse      int   `json:"sparse"`
	Malformed   int   `json:"malformed"`
	Failed      int   `json:"failed"`
}

// RunResult aggregates a full section run.
type RunResult struct {
	Articles    int `json:"articles"`
	Quarantined int `json:"quarantined"`
	Errors      int `json:"errors"`
	Inserted    int `json:"inserted"`
	Duplicates  int `json:"duplicates"`
}

// BackfillResult reports a date-inference pass.
type BackfillResult struct {
	Examined int `json:"examined"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

// Option overrides a pipeline collaborator, mainly for tests.
type Option func(*pipeline)

// WithChatProvider replaces the configured chat provider.
func WithChatProvider(p llm.Provider) Option {
	return func(pl *pipeline) { pl.chatLLM = p }
}

// WithEmbeddingProvider replaces the configured embedding provider.
func WithEmbeddingProvider(p llm.Provider) Option {
	return func(pl *pipeline) { pl.embedLLM = p }
}

// pipeline is the concrete implementation of Pipeline.
type pipeline struct {
	cfg      Config
	store    *store.Store
	chatLLM  llm.Provider
	embedLLM llm.Provider
}

// New creates a pipeline with the given configuration.
func New(cfg Config, opts ...Option) (Pipeline, error) {
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.9
	}
	if cfg.Section == "" {
		cfg.Section = "Police/Fire"
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	p := &pipeline{cfg: cfg, store: s}
	for _, o := range opts {
		o(p)
	}

	if p.chatLLM == nil && cfg.Chat.Provider != "" {
		p.chatLLM, err = llm.NewProvider(cfg.Chat)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating chat provider: %w", err)
		}
	}
	if p.embedLLM == nil && cfg.Embedding.Provider != "" {
		p.embedLLM, err = llm.NewProvider(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	return p, nil
}

// ProcessArticle routes one article through the right extraction path
// and persists whatever survives classification and dedup.
func (p *pipeline) ProcessArticle(ctx context.Context, article store.Article) (*ArticleResult, error) {
	result := &ArticleResult{ArticleID: article.ID}

	quarantined, err := p.store.IsQuarantined(ctx, article.ID)
	if err != nil {
		return nil, fmt.Errorf("checking quarantine: %w", err)
	}
	if quarantined {
		slog.Info("article already quarantined, skipping", "article_id", article.ID, "url", article.URL)
		result.Quarantined = true
		return result, nil
	}

	var candidates []extract.Candidate
	if extract.HasBlotterFormat(article.HTMLContent) {
		result.Structured = true
		candidates, err = extract.Structured(article.HTMLContent)
		if errors.Is(err, extract.ErrFormatMismatch) {
			slog.Warn("structured extraction mismatch, quarantining",
				"article_id", article.ID, "url", article.URL, "error", err)
			if _, qerr := p.store.QuarantineArticle(ctx, article.ID, article.URL); qerr != nil {
				return nil, fmt.Errorf("quarantining article: %w", qerr)
			}
			result.Quarantined = true
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("structured extraction: %w", err)
		}
	} else {
		if p.chatLLM == nil {
			return nil, ErrNoClassifier
		}
		candidates, err = extract.NewUnstructured(p.chatLLM, p.cfg.Chat.Model).Extract(ctx, article.Content)
		if err != nil {
			return nil, fmt.Errorf("unstructured extraction: %w", err)
		}
	}
	result.Candidates = len(candidates)

	for _, c := range candidates {
		c.Structured = result.Structured
		p.persistCandidate(ctx, article, c, result)
	}

	slog.Info("article processed",
		"article_id", article.ID, "structured", result.Structured,
		"candidates", result.Candidates, "inserted", result.Inserted,
		"duplicates", result.Duplicates, "rejected", result.Rejected,
		"sparse", result.Sparse)
	return result, nil
}

// persistCandidate merges, classifies, dedups, and stores one
// candidate. Failures are counted on the result; nothing here aborts
// the rest of the article.
func (p *pipeline) persistCandidate(ctx context.Context, article store.Article, c extract.Candidate, result *ArticleResult) {
	inc, err := normalize.Merge(c)
	if err != nil {
		slog.Warn("candidate merge failed", "article_id", article.ID, "error", err)
		result.Malformed++
		return
	}
	inc.ArticleID = article.ID
	inc.Source = article.URL
	inc.ReportedDate = article.DatePublished

	switch normalize.Classify(inc) {
	case normalize.Reject:
		result.Rejected++
		return
	case normalize.DropSparse:
		slog.Info("dropping sparse incident", "article_id", article.ID, "name", inc.Name)
		result.Sparse++
		return
	}

	dup, err := p.isDuplicate(ctx, inc)
	if err != nil {
		slog.Warn("dedup lookup failed", "article_id", article.ID, "name", inc.Name, "error", err)
		result.Failed++
		return
	}
	if dup {
		result.Duplicates++
		return
	}

	id, err := p.store.InsertIncident(ctx, store.Incident{
		ArticleID:    inc.ArticleID,
		Source:       inc.Source,
		ReportedDate: inc.ReportedDate,
		Name:         inc.Name,
		Age:          inc.Age,
		Location:     inc.Location,
		Charges:      inc.Charges,
		Details:      inc.Details,
		LegalActions: inc.LegalActions,
		Structured:   inc.Structured,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a race against a concurrent writer; same outcome as the
		// lookup finding a match.
		result.Duplicates++
		return
	}
	if err != nil {
		slog.Warn("incident insert failed", "article_id", article.ID, "name", inc.Name, "error", err)
		result.Failed++
		return
	}
	result.Inserted++

	p.indexEmbedding(ctx, id, inc)
}

// isDuplicate applies the path-specific natural key. The structured key
// is exact fields plus source; classifier output drifts run-to-run, so
// the unstructured key is only the reported date and the accused name.
func (p *pipeline) isDuplicate(ctx context.Context, inc normalize.Incident) (bool, error) {
	var (
		matches []store.Incident
		err     error
	)
	if inc.Structured {
		matches, err = p.store.FindByStructuredKey(ctx, inc.Source, inc.Name, inc.Age, inc.Location, inc.Charges)
	} else {
		matches, err = p.store.FindByUnstructuredKey(ctx, inc.ReportedDate, inc.Name)
	}
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// indexEmbedding adds the incident to the near-duplicate index and logs
// likely re-reports. Advisory only: embedding failures never affect the
// stored record.
func (p *pipeline) indexEmbedding(ctx context.Context, id int64, inc normalize.Incident) {
	if p.embedLLM == nil || inc.Details == "" {
		return
	}

	embeddings, err := p.embedLLM.Embed(ctx, []string{inc.Details})
	if err != nil || len(embeddings) == 0 {
		slog.Warn("incident embedding failed", "incident_id", id, "error", err)
		return
	}

	similar, err := p.store.SimilarIncidents(ctx, embeddings[0], 3)
	if err != nil {
		slog.Warn("near-duplicate search failed", "incident_id", id, "error", err)
	} else {
		for _, hit := range similar {
			if hit.Score >= p.cfg.SimilarityThreshold {
				slog.Warn("likely re-report of stored incident",
					"incident_id", id, "name", inc.Name,
					"matched_id", hit.IncidentID, "matched_name", hit.Name,
					"score", hit.Score)
			}
		}
	}

	if err := p.store.InsertIncidentEmbedding(ctx, id, embeddings[0]); err != nil {
		slog.Warn("storing incident embedding failed", "incident_id", id, "error", err)
	}
}

// ProcessSection processes all stored articles in the configured
// section, oldest first.
func (p *pipeline) ProcessSection(ctx context.Context) (*RunResult, error) {
	articles, err := p.store.ListArticlesBySection(ctx, p.cfg.Section)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}

	run := &RunResult{Articles: len(articles)}
	for _, a := range articles {
		res, err := p.ProcessArticle(ctx, a)
		if err != nil {
			slog.Error("article failed", "article_id", a.ID, "url", a.URL, "error", err)
			run.Errors++
			continue
		}
		if res.Quarantined {
			run.Quarantined++
		}
		run.Inserted += res.Inserted
		run.Duplicates += res.Duplicates
	}

	slog.Info("section run complete",
		"section", p.cfg.Section, "articles", run.Articles,
		"inserted", run.Inserted, "duplicates", run.Duplicates,
		"quarantined", run.Quarantined, "errors", run.Errors)
	return run, nil
}

// ProcessPDF extracts incidents from a PDF blotter via the classifier
// path. The PDF is not an article row; the path stands in as the
// source.
func (p *pipeline) ProcessPDF(ctx context.Context, path, reportedDate string) (*ArticleResult, error) {
	if p.chatLLM == nil {
		return nil, ErrNoClassifier
	}

	text, err := extract.PDFText(path)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}

	candidates, err := extract.NewUnstructured(p.chatLLM, p.cfg.Chat.Model).Extract(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("unstructured extraction: %w", err)
	}

	result := &ArticleResult{Candidates: len(candidates)}
	pseudo := store.Article{URL: path, DatePublished: reportedDate}
	for _, c := range candidates {
		p.persistCandidate(ctx, pseudo, c, result)
	}

	slog.Info("pdf processed", "path", path,
		"candidates", result.Candidates, "inserted", result.Inserted,
		"duplicates", result.Duplicates)
	return result, nil
}

// BackfillDates infers absolute incident dates for undated records from
// their details text and the article's publish date.
func (p *pipeline) BackfillDates(ctx context.Context) (*BackfillResult, error) {
	if p.chatLLM == nil {
		return nil, ErrNoClassifier
	}

	undated, err := p.store.ListIncidentsWithoutDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing undated incidents: %w", err)
	}

	inferrer := normalize.NewDateInferrer(p.chatLLM, p.cfg.Chat.Model)
	result := &BackfillResult{Examined: len(undated)}

	for _, inc := range undated {
		published, perr := time.Parse("2006-01-02", inc.ReportedDate)
		if perr != nil {
			slog.Warn("unparseable reported date", "incident_id", inc.ID, "date", inc.ReportedDate)
			result.Errors++
			continue
		}

		date, ierr := inferrer.Infer(ctx, inc.Details, published)
		if ierr != nil {
			slog.Warn("date inference failed", "incident_id", inc.ID, "error", ierr)
			result.Errors++
			continue
		}
		if date == "" {
			continue
		}

		updated, uerr := p.store.UpdateIncidentDateByDetails(ctx, inc.Details, date)
		if uerr != nil {
			slog.Warn("date backfill update failed", "incident_id", inc.ID, "error", uerr)
			result.Errors++
			continue
		}
		if updated {
			result.Updated++
		} else {
			slog.Warn("no record matched details for backfill", "incident_id", inc.ID)
		}
	}

	slog.Info("date backfill complete",
		"examined", result.Examined, "updated", result.Updated, "errors", result.Errors)
	return result, nil
}

// ExportReview writes the review workbook.
func (p *pipeline) ExportReview(ctx context.Context, path string) error {
	return export.New(p.store).WriteWorkbook(ctx, path)
}

// Reset deletes all extracted data, keeping articles.
func (p *pipeline) Reset(ctx context.Context) error {
	return p.store.Reset(ctx)
}

// Store returns the underlying store for diagnostic access.
func (p *pipeline) Store() *store.Store {
	return p.store
}

// Close shuts down the pipeline.
func (p *pipeline) Close() error {
	return p.store.Close()
}
