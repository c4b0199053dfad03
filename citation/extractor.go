package citation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// MatsneBaseURL points at the Georgian Tax Code on matsne.gov.ge, the
// state legislative database. Valid citations link into it by anchor.
const MatsneBaseURL = "https://matsne.gov.ge/ka/document/view/1043717"

// Citation is a single extracted article reference.
type Citation struct {
	// Raw is the matched text as it appeared in the source.
	Raw string `json:"raw_text"`
	// Article is the article number, or "A-B" for a range.
	Article string `json:"article"`
	Clause  string `json:"clause,omitempty"`
	Letter  string `json:"letter,omitempty"`
	IsRange bool   `json:"is_range,omitempty"`
	// Valid reports whether the article (or both range endpoints)
	// exists in the registry.
	Valid bool `json:"is_valid"`
	// Link is the matsne.gov.ge anchor URL. Empty for invalid
	// citations so hallucinated references never get a working link.
	Link string `json:"matsne_url,omitempty"`
}

// The citation grammars found in dispute decisions, most specific
// first. A later pattern never overrides an earlier one for the same
// (article, clause, letter) key.
var (
	// "მუხლი 168.1.ა" — full dotted notation
	reDotted = regexp.MustCompile(`მუხლი\s*(\d+)\.(\d+)\.([ა-ჰ])`)
	// "მუხლი 168.1" — article with clause
	reClause = regexp.MustCompile(`მუხლი\s*(\d+)\.(\d+)`)
	// "მუხლი 168, ნაწილი 1, პუნქტი ა" — verbose form
	reVerbose = regexp.MustCompile(`მუხლი\s*(\d+),?\s*ნაწილი\s*(\d+)(?:,?\s*პუნქტი\s*([ა-ჰ]))?`)
	// "168-ე მუხლი" / "168-ე მუხლის" — ordinal form
	reOrdinal = regexp.MustCompile(`(\d+)-ე\s*მუხლ[ის]`)
	// "მუხლი 168" — bare reference; the trailing context is checked
	// by hand since RE2 has no lookahead
	reBare = regexp.MustCompile(`მუხლი\s*(\d+)`)
	// "მუხლები 168-170" — article range (hyphen or en dash)
	reRange = regexp.MustCompile(`მუხლ(?:ებ)?ი\s*(\d+)[-–](\d+)`)
)

// Extractor finds Georgian Tax Code citations in text and validates
// them against a Registry.
type Extractor struct {
	registry *Registry
}

// NewExtractor returns an Extractor backed by the given registry.
func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract returns every unique citation found in text, in pattern
// order. Duplicates on the (article, clause, letter) key keep the
// first, most specific match.
func (e *Extractor) Extract(text string) []Citation {
	var citations []Citation
	seen := map[string]struct{}{}

	add := func(c Citation) {
		key := c.Article + "|" + c.Clause + "|" + c.Letter
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		c.Valid = e.Validate(c)
		if c.Valid {
			c.Link = FormatLink(c.Article, c.Clause, c.Letter)
		}
		citations = append(citations, c)
	}

	for _, m := range reDotted.FindAllStringSubmatch(text, -1) {
		add(Citation{Raw: m[0], Article: m[1], Clause: m[2], Letter: m[3]})
	}
	for _, m := range reClause.FindAllStringSubmatch(text, -1) {
		add(Citation{Raw: m[0], Article: m[1], Clause: m[2]})
	}
	for _, m := range reVerbose.FindAllStringSubmatch(text, -1) {
		add(Citation{Raw: m[0], Article: m[1], Clause: m[2], Letter: m[3]})
	}
	for _, m := range reOrdinal.FindAllStringSubmatch(text, -1) {
		add(Citation{Raw: m[0], Article: m[1]})
	}
	for _, loc := range reBare.FindAllStringSubmatchIndex(text, -1) {
		// Reject when the number continues as "168.1", "1681" or
		// "168-170"; those belong to the more specific patterns.
		if next := nextRune(text, loc[1]); next == '.' || next == '-' || (next >= '0' && next <= '9') {
			continue
		}
		add(Citation{Raw: text[loc[0]:loc[1]], Article: text[loc[2]:loc[3]]})
	}
	for _, m := range reRange.FindAllStringSubmatch(text, -1) {
		add(Citation{Raw: m[0], Article: m[1] + "-" + m[2], IsRange: true})
	}

	slog.Info("citation: extracted citations", "count", len(citations))

	// Invalid citations are the hallucination signal, worth a warning.
	var invalid []string
	for _, c := range citations {
		if !c.Valid {
			invalid = append(invalid, c.Article)
		}
	}
	if len(invalid) > 0 {
		slog.Warn("citation: potentially invalid citations found", "articles", invalid)
	}

	return citations
}

// Validate checks a citation against the registry. Ranges are valid
// only when both endpoints are known articles.
func (e *Extractor) Validate(c Citation) bool {
	if strings.Contains(c.Article, "-") {
		parts := strings.SplitN(c.Article, "-", 2)
		if len(parts) != 2 {
			return false
		}
		return e.registry.Contains(parts[0]) && e.registry.Contains(parts[1])
	}
	return e.registry.Contains(c.Article)
}

// FormatLink builds the matsne.gov.ge anchor URL for an article
// reference. Anchors follow the #ARTICLE_168_1_ა convention.
func FormatLink(article, clause, letter string) string {
	url := MatsneBaseURL
	if article != "" {
		url += "#ARTICLE_" + article
		if clause != "" {
			url += "_" + clause
		}
		if letter != "" {
			url += "_" + letter
		}
	}
	return url
}

// Summary aggregates citation statistics for one extraction pass.
type Summary struct {
	Total          int     `json:"total_citations"`
	Valid          int     `json:"valid_citations"`
	Invalid        int     `json:"invalid_citations"`
	UniqueArticles int     `json:"unique_articles"`
	WithClauses    int     `json:"citations_with_clauses"`
	WithLetters    int     `json:"citations_with_letters"`
	ValidationRate float64 `json:"validation_rate"`
}

// Summarize computes summary statistics over a set of citations.
func Summarize(citations []Citation) Summary {
	s := Summary{Total: len(citations)}

	articles := map[string]struct{}{}
	for _, c := range citations {
		if c.Valid {
			s.Valid++
		}
		articles[c.Article] = struct{}{}
		if c.Clause != "" {
			s.WithClauses++
		}
		if c.Letter != "" {
			s.WithLetters++
		}
	}
	s.Invalid = s.Total - s.Valid
	s.UniqueArticles = len(articles)
	if s.Total > 0 {
		s.ValidationRate = float64(s.Valid) / float64(s.Total)
	}
	return s
}

// String renders the summary in a compact single line for logs.
func (s Summary) String() string {
	return fmt.Sprintf("citations=%d valid=%d invalid=%d unique=%d rate=%.2f",
		s.Total, s.Valid, s.Invalid, s.UniqueArticles, s.ValidationRate)
}

// nextRune returns the rune starting at byte offset i, or 0 at the end
// of the string.
func nextRune(s string, i int) rune {
	if i >= len(s) {
		return 0
	}
	for _, r := range s[i:] {
		return r
	}
	return 0
}
