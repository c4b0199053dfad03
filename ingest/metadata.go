package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CaseMetadata holds the structured fields extracted from a dispute
// decision's header sections.
type CaseMetadata struct {
	CaseID        string
	Date          string // YYYY-MM-DD
	Category      string
	AssessingBody string
	FinalDecision string
	DecisionType  string
	CitedArticles []string
}

// Decision type classification values.
const (
	DecisionSatisfied          = "satisfied"
	DecisionRejected           = "rejected"
	DecisionPartiallySatisfied = "partially_satisfied"
	DecisionOther              = "other"
)

var (
	// Document numbers mix Cyrillic letters with digits, e.g. "ТД-2023-100".
	reCaseID   = regexp.MustCompile(`დოკუმენტის #\s*[:：]?\s*([А-Яа-я0-9\-/]+)`)
	reCaseDate = regexp.MustCompile(`მიღების თარიღი:\s*(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	reCategory = regexp.MustCompile(`კატეგორია:\s*(.+)`)
	reBody     = regexp.MustCompile(`დამრიცხველი ორგანო:\s*(.+)`)
	reNorms    = regexp.MustCompile(`საკანონმდებლო ნორმები:\s*(.+)`)
	reDecision = regexp.MustCompile(`საბოლოო გადაწყვეტილება:\s*(.+)`)
	reArticle  = regexp.MustCompile(`მუხლი\s*(\d+(?:-\d+)?)`)
	reDotDate  = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
)

// ExtractMetadata pulls case metadata out of a decision text. Missing
// fields stay empty; the caller decides on fallbacks.
func ExtractMetadata(text string) CaseMetadata {
	meta := CaseMetadata{}

	if m := reCaseID.FindStringSubmatch(text); m != nil {
		meta.CaseID = m[1]
	}
	if m := reCaseDate.FindStringSubmatch(text); m != nil {
		meta.Date = isoDate(m[3], m[2], m[1])
	}
	if m := reCategory.FindStringSubmatch(text); m != nil {
		meta.Category = strings.TrimSpace(m[1])
	}
	if m := reBody.FindStringSubmatch(text); m != nil {
		meta.AssessingBody = strings.TrimSpace(m[1])
	}
	if m := reNorms.FindStringSubmatch(text); m != nil {
		meta.CitedArticles = extractArticles(m[1])
	}
	if m := reDecision.FindStringSubmatch(text); m != nil {
		meta.FinalDecision = strings.TrimSpace(m[1])
		meta.DecisionType = classifyDecision(meta.FinalDecision)
	}
	return meta
}

// extractArticles finds article numbers in a legislative norms line,
// deduplicated in order of first appearance.
func extractArticles(line string) []string {
	seen := make(map[string]struct{})
	var articles []string
	for _, m := range reArticle.FindAllStringSubmatch(line, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		articles = append(articles, m[1])
	}
	return articles
}

// classifyDecision maps a final-decision phrase to a decision type.
// Negated and partial forms contain the plain "satisfied" wording as a
// substring, so they are checked first.
func classifyDecision(decision string) string {
	switch {
	case strings.Contains(decision, "არ დაკმაყოფილდა"):
		return DecisionRejected
	case strings.Contains(decision, "ნაწილობრივ"):
		return DecisionPartiallySatisfied
	case strings.Contains(decision, "დაკმაყოფილდა"):
		return DecisionSatisfied
	default:
		return DecisionOther
	}
}

// isoDate converts textual year/month/day parts to YYYY-MM-DD.
func isoDate(year, month, day string) string {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// normalizeDate converts a DD.MM.YYYY date to YYYY-MM-DD. Anything
// else passes through untouched.
func normalizeDate(s string) string {
	m := reDotDate.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return strings.TrimSpace(s)
	}
	return isoDate(m[3], m[2], m[1])
}
