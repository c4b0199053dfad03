package taxrag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gkhurtsilava/taxrag/citation"
	"github.com/gkhurtsilava/taxrag/index"
	"github.com/gkhurtsilava/taxrag/llm"
)

// fakeEmbedder derives deterministic vectors from rune counts.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		for _, r := range text {
			v[int(r)%f.dim]++
		}
		out[i] = v
	}
	return out, nil
}

// fakeChat is an llm.Provider returning canned content, counting calls.
type fakeChat struct {
	content string
	err     error
	calls   int
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content, Model: "fake"}, nil
}

func (f *fakeChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not an embedder")
}

func corpusDocs() []index.Document {
	return []index.Document{
		{
			ID:      "ТД-100-0",
			Content: "დავის საგანი: დღგ-ის ჩათვლის უარყოფა. საბჭომ დააკმაყოფილა საჩივარი მუხლი 166 საფუძველზე.",
			Metadata: index.Metadata{
				CaseID: "ТД-100", Court: "დავების საბჭო",
				Date: "2023-05-15", CitedArticles: []string{"166"},
			},
		},
		{
			ID:      "ТД-101-0",
			Content: "დავის საგანი: ქონების გადასახადის დარიცხვა. საჩივარი არ დაკმაყოფილდა.",
			Metadata: index.Metadata{
				CaseID: "ТД-101", Court: "დავების საბჭო",
				Date: "2022-03-01", CitedArticles: []string{"201"},
			},
		},
		{
			ID:      "ТД-102-0",
			Content: "საშემოსავლო გადასახადის დავა, დღგ-ის კომპონენტით. ნაწილობრივ დაკმაყოფილდა.",
			Metadata: index.Metadata{
				CaseID: "ТД-102", Court: "თბილისის საქალაქო სასამართლო",
				Date: "2024-01-20", CitedArticles: []string{"166", "101"},
			},
		},
	}
}

// newTestEngine wires an engine over a temp corpus with fake providers.
func newTestEngine(t *testing.T, chat, fallback llm.Provider) *Engine {
	t.Helper()

	dir := t.TempDir()
	idx, err := index.Open(filepath.Join(dir, "corpus"), 8, "fake-embed", fakeEmbedder{dim: 8})
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	if _, err := idx.Add(context.Background(), corpusDocs()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	regPath := filepath.Join(dir, "article_index.json")
	if err := os.WriteFile(regPath, []byte(`{"articles": ["101", "166", "201"], "max_article": 312}`), 0o644); err != nil {
		t.Fatal(err)
	}
	registry := citation.NewRegistry(regPath)

	return &Engine{
		cfg: Config{
			TopK:          5,
			VectorWeight:  0.5,
			KeywordWeight: 0.5,
			Chat:          llm.Config{Provider: "gemini", Model: "gemini-2.5-flash"},
			Fallback:      llm.Config{Provider: "openrouter", Model: "claude-sonnet"},
			Embedding:     llm.Config{Provider: "ollama", Model: "paraphrase-multilingual"},
		},
		idx:       idx,
		registry:  registry,
		extractor: citation.NewExtractor(registry),
		chat:      chat,
		fallback:  fallback,
	}
}

func TestQueryGeneratesAnswer(t *testing.T) {
	chat := &fakeChat{content: "საბჭომ გამოიყენა მუხლი 166 და 101-ე მუხლის დებულება."}
	e := newTestEngine(t, chat, nil)

	got, err := e.Query(context.Background(), "დღგ-ის ჩათვლის დავა", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if got.Answer != chat.content {
		t.Errorf("answer = %q, want the generated content", got.Answer)
	}
	if got.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q, want gemini-2.5-flash", got.Model)
	}
	if chat.calls != 1 {
		t.Errorf("chat called %d times, want 1", chat.calls)
	}
	if len(got.Cases) == 0 {
		t.Fatal("no cases cited")
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Errorf("confidence = %f, want (0,1]", got.Confidence)
	}

	wantArticles := []string{"101", "166"}
	if len(got.TaxArticles) != 2 || got.TaxArticles[0] != wantArticles[0] || got.TaxArticles[1] != wantArticles[1] {
		t.Errorf("tax articles = %v, want %v", got.TaxArticles, wantArticles)
	}

	for _, c := range got.Citations {
		if c.Article == "166" && !c.Valid {
			t.Error("article 166 citation should validate against the registry")
		}
	}
}

func TestQueryNoCasesSkipsLLM(t *testing.T) {
	chat := &fakeChat{content: "should never be used"}
	e := newTestEngine(t, chat, nil)

	filters := &Filters{Court: "არარსებული სასამართლო"}
	got, err := e.Query(context.Background(), "დღგ", filters)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if got.Answer != answerNoCases {
		t.Errorf("answer = %q, want the fixed no-cases text", got.Answer)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", got.Confidence)
	}
	if got.Model != "none" {
		t.Errorf("model = %q, want none", got.Model)
	}
	if chat.calls != 0 {
		t.Errorf("chat called %d times on an empty result set, want 0", chat.calls)
	}
}

func TestQueryNilIndexUnavailable(t *testing.T) {
	e := &Engine{cfg: Config{TopK: 5}}

	got, err := e.Query(context.Background(), "დღგ", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got.Answer != answerUnavailable {
		t.Errorf("answer = %q, want the fixed unavailable text", got.Answer)
	}
	if got.Model != "none" || got.Confidence != 0 {
		t.Errorf("got model %q confidence %f, want none/0", got.Model, got.Confidence)
	}
}

func TestQueryFallbackChain(t *testing.T) {
	primary := &fakeChat{err: errors.New("rate limited")}
	fallback := &fakeChat{content: "სათადარიგო პასუხი"}
	e := newTestEngine(t, primary, fallback)

	got, err := e.Query(context.Background(), "დღგ-ის დავა", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if got.Answer != "სათადარიგო პასუხი" {
		t.Errorf("answer = %q, want the fallback content", got.Answer)
	}
	if got.Model != "claude-sonnet" {
		t.Errorf("model = %q, want claude-sonnet", got.Model)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, fallback.calls)
	}
}

func TestQueryAllProvidersFail(t *testing.T) {
	primary := &fakeChat{err: errors.New("down")}
	fallback := &fakeChat{err: errors.New("also down")}
	e := newTestEngine(t, primary, fallback)

	got, err := e.Query(context.Background(), "დღგ-ის დავა", nil)
	if err != nil {
		t.Fatalf("Query must not error on provider failure: %v", err)
	}
	if got.Answer != answerGenerationFailed {
		t.Errorf("answer = %q, want the fixed generation-failed text", got.Answer)
	}
	if got.Model != "error" {
		t.Errorf("model = %q, want error", got.Model)
	}
	if len(got.Cases) == 0 {
		t.Error("cases should still be cited when generation fails")
	}
}

func TestQueryDateFilter(t *testing.T) {
	chat := &fakeChat{content: "პასუხი"}
	e := newTestEngine(t, chat, nil)

	from, _ := time.Parse("2006-01-02", "2023-01-01")
	to, _ := time.Parse("2006-01-02", "2023-12-31")
	got, err := e.Query(context.Background(), "დავა გადასახადის შესახებ", &Filters{DateFrom: from, DateTo: to})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	for _, c := range got.Cases {
		if c.Date != "2023-05-15" {
			t.Errorf("case %s dated %s leaked through the 2023 range", c.CaseID, c.Date)
		}
	}
}

func TestQueryArticleFilter(t *testing.T) {
	chat := &fakeChat{content: "პასუხი"}
	e := newTestEngine(t, chat, nil)

	got, err := e.Query(context.Background(), "დავა გადასახადის შესახებ", &Filters{CitedArticles: []string{"201"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got.Cases) == 0 {
		t.Fatal("article filter removed everything")
	}
	for _, c := range got.Cases {
		if c.CaseID != "ТД-101" {
			t.Errorf("case %s does not cite article 201", c.CaseID)
		}
	}
}

func TestApplyFiltersKeepsUnparsableDates(t *testing.T) {
	results := []index.SearchResult{
		{Document: index.Document{ID: "bad", Metadata: index.Metadata{Date: "15.05.2023"}}, Score: 1},
		{Document: index.Document{ID: "old", Metadata: index.Metadata{Date: "2020-01-01"}}, Score: 1},
	}
	from, _ := time.Parse("2006-01-02", "2023-01-01")

	filtered := applyFilters(results, &Filters{DateFrom: from})
	if len(filtered) != 1 || filtered[0].Document.ID != "bad" {
		t.Errorf("filtered = %v, want only the unparsable-date document kept", filtered)
	}
}

func TestCaseLookup(t *testing.T) {
	e := newTestEngine(t, &fakeChat{}, nil)

	c, err := e.Case("ТД-101")
	if err != nil {
		t.Fatalf("Case: %v", err)
	}
	if c.CaseID != "ТД-101" {
		t.Errorf("case id = %q, want ТД-101", c.CaseID)
	}
	if c.Relevance != 1.0 {
		t.Errorf("relevance = %f, want 1.0 for direct lookup", c.Relevance)
	}
	if !strings.Contains(c.Summary, "ქონების გადასახადის") {
		t.Error("direct lookup should carry the full text")
	}

	if _, err := e.Case("ТД-999"); !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("err = %v, want ErrCaseNotFound", err)
	}
}

func TestStatus(t *testing.T) {
	e := newTestEngine(t, &fakeChat{}, nil)

	s := e.Status()
	if !s.Ready {
		t.Error("engine with documents should report ready")
	}
	if s.TotalCases != 3 {
		t.Errorf("total cases = %d, want 3", s.TotalCases)
	}
	if !s.ChatAvailable || s.FallbackAvailable {
		t.Errorf("availability = %v/%v, want true/false", s.ChatAvailable, s.FallbackAvailable)
	}

	empty := &Engine{}
	if empty.Status().Ready {
		t.Error("engine without an index should not report ready")
	}
}

func TestConfidence(t *testing.T) {
	mk := func(scores ...float64) []DisputeCase {
		cases := make([]DisputeCase, len(scores))
		for i, s := range scores {
			cases[i].Relevance = s
		}
		return cases
	}

	tests := []struct {
		name  string
		cases []DisputeCase
		want  float64
	}{
		{"empty", nil, 0},
		{"single", mk(0.8), 0.8},
		{"top_three_only", mk(0.9, 0.6, 0.3, 0.0), 0.6},
		{"rounding", mk(0.333, 0.333, 0.333), 0.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidence(tt.cases); got != tt.want {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractTaxArticles(t *testing.T) {
	text := "გამოიყენება მუხლი 168.1 და მუხლი 15, ასევე 21-ე მუხლის შესაბამისად. კიდევ ერთხელ მუხლი 15."
	got := extractTaxArticles(text)

	want := []string{"15", "21", "168.1"}
	if len(got) != len(want) {
		t.Fatalf("articles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("articles[%d] = %q, want %q (sorted, deduplicated)", i, got[i], want[i])
		}
	}
}

func TestBuildContext(t *testing.T) {
	cases := []DisputeCase{
		{CaseID: "ТД-100", Court: "დავების საბჭო", Date: "2023-05-15", CitedArticles: []string{"166", "101"}, Summary: "შინაარსი ერთი"},
		{CaseID: "ТД-101", Court: defaultCourt, Date: "2022-03-01", Summary: "შინაარსი ორი"},
	}

	ctx := buildContext(cases)

	if !strings.Contains(ctx, "საქმე #1 (ID: ТД-100)") || !strings.Contains(ctx, "საქმე #2 (ID: ТД-101)") {
		t.Error("context missing ordinal case headers")
	}
	if !strings.Contains(ctx, "166, 101") {
		t.Error("context missing joined cited articles")
	}
	if !strings.Contains(ctx, noArticlesListed) {
		t.Error("context missing the no-articles placeholder")
	}
	if !strings.Contains(ctx, "\n---\n") {
		t.Error("context missing the case separator")
	}
}

func TestNewDisputeCaseDefaults(t *testing.T) {
	doc := index.Document{
		ID:      "chunk-7",
		Content: strings.Repeat("ა", 600),
	}
	c := newDisputeCase(doc, 0.42)

	if c.CaseID != "chunk-7" {
		t.Errorf("case id = %q, want the document id fallback", c.CaseID)
	}
	if c.Court != defaultCourt {
		t.Errorf("court = %q, want the default", c.Court)
	}
	if c.Date != defaultCaseDate {
		t.Errorf("date = %q, want %q", c.Date, defaultCaseDate)
	}
	if got := len([]rune(c.Summary)); got != summaryRunes {
		t.Errorf("summary length = %d runes, want %d", got, summaryRunes)
	}
}

func TestNewDisputeCaseBadDate(t *testing.T) {
	doc := index.Document{ID: "x", Metadata: index.Metadata{Date: "15/05/2023"}}
	c := newDisputeCase(doc, 1)

	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		t.Errorf("unparsable metadata date left as %q, want a valid fallback", c.Date)
	}
}
