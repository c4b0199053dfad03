// Package taxrag answers questions about Georgian tax dispute cases
// with retrieval-augmented generation: hybrid search over indexed
// dispute council decisions, answer generation through an ordered LLM
// provider chain, and citation validation against the tax code
// article registry.
package taxrag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gkhurtsilava/taxrag/audit"
	"github.com/gkhurtsilava/taxrag/citation"
	"github.com/gkhurtsilava/taxrag/index"
	"github.com/gkhurtsilava/taxrag/llm"
)

// summaryRunes caps the per-case excerpt used in answers and prompts.
const summaryRunes = 500

// Filters narrows dispute case retrieval. Zero values mean no
// constraint.
type Filters struct {
	Court    string    `json:"court,omitempty"`
	DateFrom time.Time `json:"date_from,omitempty"`
	DateTo   time.Time `json:"date_to,omitempty"`
	// CitedArticles keeps cases citing any of the listed articles.
	CitedArticles []string `json:"cited_articles,omitempty"`
}

// DisputeCase is one retrieved case as presented to clients.
type DisputeCase struct {
	CaseID            string   `json:"case_id"`
	Court             string   `json:"court"`
	Date              string   `json:"case_date"` // YYYY-MM-DD
	Summary           string   `json:"summary"`
	CitedArticles     []string `json:"cited_articles"`
	Relevance         float64  `json:"relevance_score"`
	FullTextAvailable bool     `json:"full_text_available"`
}

// Answer is the full result of one dispute query.
type Answer struct {
	Answer           string              `json:"answer"`
	Cases            []DisputeCase       `json:"cases_cited"`
	TaxArticles      []string            `json:"relevant_tax_articles"`
	Citations        []citation.Citation `json:"citations,omitempty"`
	Confidence       float64             `json:"confidence"`
	Model            string              `json:"model_used"`
	ProcessingTimeMS int64               `json:"processing_time_ms"`
}

// Status reports engine readiness.
type Status struct {
	Ready             bool   `json:"ready"`
	TotalCases        int    `json:"total_cases"`
	EmbeddingModel    string `json:"embedding_model"`
	IndexDir          string `json:"index_dir"`
	ChatAvailable     bool   `json:"chat_available"`
	FallbackAvailable bool   `json:"fallback_available"`
	AuditEnabled      bool   `json:"audit_enabled"`
}

// Engine ties retrieval, generation and citation validation together.
type Engine struct {
	cfg       Config
	idx       *index.HybridIndex
	registry  *citation.Registry
	extractor *citation.Extractor
	chat      llm.Provider
	fallback  llm.Provider
	auditLog  *audit.Log
}

// New builds an engine from configuration, loading the persisted
// corpus when one exists at the resolved index directory.
func New(cfg Config) (*Engine, error) {
	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	if !cfg.Embedding.Configured() {
		return nil, fmt.Errorf("%w: embedding provider required", ErrInvalidConfig)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.VectorWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.VectorWeight, cfg.KeywordWeight = 0.5, 0.5
	}

	embedder, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	e := &Engine{cfg: cfg}

	if cfg.Chat.Configured() {
		if e.chat, err = llm.NewProvider(cfg.Chat); err != nil {
			return nil, fmt.Errorf("chat provider: %w", err)
		}
	}
	if cfg.Fallback.Configured() {
		if e.fallback, err = llm.NewProvider(cfg.Fallback); err != nil {
			return nil, fmt.Errorf("fallback provider: %w", err)
		}
	}

	if e.idx, err = index.Open(cfg.resolveIndexDir(), cfg.EmbeddingDim, cfg.Embedding.Model, embedder); err != nil {
		return nil, err
	}

	e.registry = citation.NewRegistry(cfg.ArticleIndexPath)
	e.extractor = citation.NewExtractor(e.registry)

	if cfg.AuditDBPath != "" {
		if e.auditLog, err = audit.Open(cfg.AuditDBPath); err != nil {
			slog.Warn("taxrag: audit log unavailable", "path", cfg.AuditDBPath, "error", err)
			e.auditLog = nil
			err = nil
		}
	}

	slog.Info("taxrag: engine ready",
		"documents", e.idx.Len(),
		"chat", cfg.Chat.Provider,
		"fallback", cfg.Fallback.Provider,
	)
	return e, nil
}

// Close releases the index and audit log.
func (e *Engine) Close() error {
	var firstErr error
	if e.idx != nil {
		firstErr = e.idx.Close()
	}
	if e.auditLog != nil {
		if err := e.auditLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Index exposes the underlying hybrid index, mainly for ingestion.
func (e *Engine) Index() *index.HybridIndex {
	return e.idx
}

// Registry exposes the article registry so callers can trigger Reload.
func (e *Engine) Registry() *citation.Registry {
	return e.registry
}

// QueryOption overrides per-query retrieval parameters.
type QueryOption func(*queryOptions)

type queryOptions struct {
	topK          int
	vectorWeight  float64
	keywordWeight float64
}

// WithTopK overrides the number of cases retrieved.
func WithTopK(k int) QueryOption {
	return func(o *queryOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithWeights overrides the hybrid fusion weights. They do not need to
// sum to 1.
func WithWeights(vector, keyword float64) QueryOption {
	return func(o *queryOptions) {
		o.vectorWeight = vector
		o.keywordWeight = keyword
	}
}

// Query answers a question about dispute cases. Provider failures
// never surface as errors: the answer degrades to a fixed Georgian
// message with Model set to "error". An error return means retrieval
// itself failed.
func (e *Engine) Query(ctx context.Context, question string, filters *Filters, opts ...QueryOption) (*Answer, error) {
	start := time.Now()

	o := queryOptions{
		topK:          e.cfg.TopK,
		vectorWeight:  e.cfg.VectorWeight,
		keywordWeight: e.cfg.KeywordWeight,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if e.idx == nil {
		return e.finish(ctx, question, &Answer{
			Answer: answerUnavailable,
			Model:  "none",
		}, start), nil
	}

	slog.Info("taxrag: processing query", "question", truncate(question, 100), "top_k", o.topK)

	var metadataFilter map[string]string
	if filters != nil && filters.Court != "" {
		metadataFilter = map[string]string{"court": filters.Court}
	}

	results, err := e.idx.HybridSearch(ctx, question, o.topK, o.vectorWeight, o.keywordWeight, metadataFilter)
	if err != nil {
		return nil, fmt.Errorf("retrieving cases: %w", err)
	}

	results = applyFilters(results, filters)

	if len(results) == 0 {
		slog.Warn("taxrag: no relevant cases found")
		return e.finish(ctx, question, &Answer{
			Answer: answerNoCases,
			Model:  "none",
		}, start), nil
	}

	cases := convertCases(results)
	contextBlock := buildContext(cases)

	answer, model := e.generate(ctx, question, contextBlock)

	citations := e.extractor.Extract(answer)

	return e.finish(ctx, question, &Answer{
		Answer:      answer,
		Cases:       cases,
		TaxArticles: extractTaxArticles(answer),
		Citations:   citations,
		Confidence:  confidence(cases),
		Model:       model,
	}, start), nil
}

// finish stamps timing and records the query in the audit log.
func (e *Engine) finish(ctx context.Context, question string, a *Answer, start time.Time) *Answer {
	a.ProcessingTimeMS = time.Since(start).Milliseconds()

	if e.auditLog != nil {
		err := e.auditLog.Record(ctx, audit.Entry{
			Question:   question,
			Answer:     a.Answer,
			Confidence: a.Confidence,
			Model:      a.Model,
			CasesCited: len(a.Cases),
			LatencyMS:  a.ProcessingTimeMS,
		})
		if err != nil {
			slog.Warn("taxrag: audit record failed", "error", err)
		}
	}

	slog.Info("taxrag: query completed",
		"model", a.Model,
		"cases", len(a.Cases),
		"confidence", a.Confidence,
		"elapsed_ms", a.ProcessingTimeMS,
	)
	return a
}

// generate runs the provider chain in order and returns the first
// successful answer with its model label. When every provider fails
// the fixed error answer is returned with model "error".
func (e *Engine) generate(ctx context.Context, question, contextBlock string) (string, string) {
	prompt := fmt.Sprintf(disputePrompt, contextBlock, question)

	chain := []struct {
		label    string
		provider llm.Provider
	}{
		{providerLabel(e.cfg.Chat), e.chat},
		{providerLabel(e.cfg.Fallback), e.fallback},
	}

	for _, entry := range chain {
		if entry.provider == nil {
			continue
		}
		resp, err := entry.provider.Chat(ctx, llm.ChatRequest{
			Messages: []llm.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			slog.Warn("taxrag: provider failed, trying next", "model", entry.label, "error", err)
			continue
		}
		return resp.Content, entry.label
	}

	slog.Error("taxrag: all providers failed")
	return answerGenerationFailed, "error"
}

func providerLabel(cfg llm.Config) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return cfg.Provider
}

// Case looks a case up directly by case or document ID. The first
// matching chunk is returned with its full text and relevance 1.0.
func (e *Engine) Case(id string) (*DisputeCase, error) {
	if e.idx == nil {
		return nil, ErrCaseNotFound
	}

	docs := e.idx.FindCase(id)
	if len(docs) == 0 {
		slog.Warn("taxrag: case not found", "case_id", id)
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}

	doc := docs[0]
	c := newDisputeCase(doc, 1.0)
	c.Summary = doc.Content // direct lookups get the full text
	return &c, nil
}

// Status reports readiness and corpus statistics.
func (e *Engine) Status() Status {
	s := Status{
		EmbeddingModel:    e.cfg.Embedding.Model,
		ChatAvailable:     e.chat != nil,
		FallbackAvailable: e.fallback != nil,
		AuditEnabled:      e.auditLog != nil,
	}
	if e.idx != nil {
		stats := e.idx.Stats()
		s.TotalCases = stats.TotalDocuments
		s.IndexDir = stats.IndexDir
		s.Ready = stats.TotalDocuments > 0
	}
	return s
}

// applyFilters enforces the date range and cited-article constraints
// that hybrid search cannot express as exact-match metadata filters.
// Unparsable dates are kept, with a warning: a malformed field should
// not hide a case from every dated query.
func applyFilters(results []index.SearchResult, filters *Filters) []index.SearchResult {
	if filters == nil {
		return results
	}

	var filtered []index.SearchResult
	for _, r := range results {
		md := r.Document.Metadata

		if !filters.DateFrom.IsZero() || !filters.DateTo.IsZero() {
			if md.Date != "" {
				caseDate, err := time.Parse("2006-01-02", md.Date)
				if err != nil {
					slog.Warn("taxrag: invalid date format", "date", md.Date, "case_id", md.CaseID)
				} else {
					if !filters.DateFrom.IsZero() && caseDate.Before(filters.DateFrom) {
						continue
					}
					if !filters.DateTo.IsZero() && caseDate.After(filters.DateTo) {
						continue
					}
				}
			}
		}

		if len(filters.CitedArticles) > 0 && !anyArticleMatch(filters.CitedArticles, md.CitedArticles) {
			continue
		}

		filtered = append(filtered, r)
	}

	slog.Info("taxrag: post-filters applied", "before", len(results), "after", len(filtered))
	return filtered
}

func anyArticleMatch(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

// convertCases maps retrieval results to client-facing cases,
// substituting defaults for missing metadata.
func convertCases(results []index.SearchResult) []DisputeCase {
	cases := make([]DisputeCase, 0, len(results))
	for _, r := range results {
		c := newDisputeCase(r.Document, r.Score)
		cases = append(cases, c)
	}
	return cases
}

func newDisputeCase(doc index.Document, score float64) DisputeCase {
	md := doc.Metadata

	caseID := md.CaseID
	if caseID == "" {
		caseID = doc.ID
	}

	court := md.Court
	if court == "" {
		court = defaultCourt
	}

	date := md.Date
	if date == "" {
		date = defaultCaseDate
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		date = time.Now().Format("2006-01-02")
	}

	return DisputeCase{
		CaseID:            caseID,
		Court:             court,
		Date:              date,
		Summary:           truncate(doc.Content, summaryRunes),
		CitedArticles:     md.CitedArticles,
		Relevance:         score,
		FullTextAvailable: true,
	}
}

// buildContext renders the retrieved cases into the prompt block.
func buildContext(cases []DisputeCase) string {
	parts := make([]string, 0, len(cases))
	for i, c := range cases {
		articles := noArticlesListed
		if len(c.CitedArticles) > 0 {
			articles = strings.Join(c.CitedArticles, ", ")
		}
		parts = append(parts, fmt.Sprintf(
			"საქმე #%d (ID: %s)\nსასამართლო: %s\nთარიღი: %s\nციტირებული მუხლები: %s\nშინაარსი: %s\n",
			i+1, c.CaseID, c.Court, c.Date, articles, c.Summary,
		))
	}
	return strings.Join(parts, "\n---\n")
}

// confidence is a retrieval-quality proxy: the mean of the top three
// case relevance scores, rounded to two decimals. It says nothing
// about answer correctness.
func confidence(cases []DisputeCase) float64 {
	if len(cases) == 0 {
		return 0
	}
	n := len(cases)
	if n > 3 {
		n = 3
	}
	sum := 0.0
	for _, c := range cases[:n] {
		sum += c.Relevance
	}
	return math.Round(sum/float64(n)*100) / 100
}

// Article references as they appear in generated answers: the dotted
// "მუხლი 168.1.ა" family and the ordinal "168-ე მუხლის" form.
var (
	articleRefPattern     = regexp.MustCompile(`მუხლი\s+(\d+(?:\.\d+)?(?:\.[ა-ჰ])?)`)
	articleOrdinalPattern = regexp.MustCompile(`(\d+)-ე\s*მუხლ`)
	leadingNumberPattern  = regexp.MustCompile(`\d+`)
)

// extractTaxArticles pulls the article numbers mentioned in an answer,
// deduplicated and sorted ascending by their leading numeric value.
func extractTaxArticles(text string) []string {
	seen := map[string]struct{}{}
	var articles []string
	for _, re := range []*regexp.Regexp{articleRefPattern, articleOrdinalPattern} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			articles = append(articles, m[1])
		}
	}

	sort.SliceStable(articles, func(i, j int) bool {
		ni, iok := leadingNumber(articles[i])
		nj, jok := leadingNumber(articles[j])
		if iok != jok {
			return iok // numeric sorts before non-numeric
		}
		if !iok {
			return false
		}
		return ni < nj
	})
	return articles
}

func leadingNumber(s string) (float64, bool) {
	m := leadingNumberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	return n, err == nil
}

// truncate cuts a string to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
