// Package index implements the hybrid retrieval index over dispute
// council decisions: a dense ANN side backed by sqlite-vec and an
// in-memory BM25 keyword side, searched together with weighted score
// fusion.
package index

import (
	"regexp"
	"strings"
)

// Metadata carries the structured fields of a dispute decision chunk.
// Exact-match filters apply to the named fields; anything else goes
// through Extra.
type Metadata struct {
	CaseID        string            `json:"case_id"`
	Court         string            `json:"court"`
	Date          string            `json:"date"` // YYYY-MM-DD
	CitedArticles []string          `json:"cited_articles"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// field returns the metadata value for a filter key, named fields
// first, then Extra.
func (m Metadata) field(key string) (string, bool) {
	switch key {
	case "case_id":
		return m.CaseID, true
	case "court":
		return m.Court, true
	case "date":
		return m.Date, true
	}
	v, ok := m.Extra[key]
	return v, ok
}

// Document is one indexed chunk of a dispute decision.
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// MatchType values tag which retrieval path produced a result.
const (
	MatchVector  = "vector"
	MatchKeyword = "keyword"
	MatchHybrid  = "hybrid"
)

// SearchResult pairs a document with its retrieval score and the path
// that produced it. For hybrid results the component scores are kept
// for diagnostics.
type SearchResult struct {
	Document     Document `json:"document"`
	Score        float64  `json:"score"`
	MatchType    string   `json:"match_type"`
	VectorScore  float64  `json:"vector_score,omitempty"`
	KeywordScore float64  `json:"keyword_score,omitempty"`
}

// Token runs cover the Georgian Mkhedruli block plus ASCII letters and
// digits, so mixed Georgian/Latin legal text and article numbers all
// survive tokenization.
var tokenPattern = regexp.MustCompile(`[\x{10A0}-\x{10FF}a-z0-9]+`)

// Tokenize lowercases text and splits it into maximal alphanumeric
// runs. Punctuation and any other script act as separators.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// matchesFilters reports whether a document satisfies every
// exact-match metadata filter.
func matchesFilters(doc Document, filters map[string]string) bool {
	for key, want := range filters {
		got, ok := doc.Metadata.field(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}
