package taxrag

import (
	"log/slog"
	"strings"
)

// QueryMode selects which knowledge base a query targets.
type QueryMode string

const (
	ModeAuto     QueryMode = "auto"
	ModeTax      QueryMode = "tax"
	ModeDispute  QueryMode = "dispute"
	ModeDocument QueryMode = "document"
)

// Keyword lists driving auto-classification. Matching is
// case-insensitive substring containment; the lists are deliberately
// small and high-precision.
var (
	disputeKeywords = []string{
		"დავის საგანი",
		"დავების საბჭო",
		"საჩივარი",
		"სადავო",
		"გასაჩივრებული",
		"დარიცხული",
		"ფინანსთა სამინისტროს დავის",
		"დოკუმენტის #",
	}

	documentKeywords = []string{
		"შაბლონი",
		"ნიმუში",
		"ხელშეკრულების",
	}

	taxKeywords = []string{
		"დღგ",
		"მუხლი",
		"საგადასახადო",
		"გადასახად",
		"კოდექსი",
		"განაკვეთი",
		"საშემოსავლო",
		"მოგების",
	}
)

// Classify picks a concrete mode for a query. Dispute terms dominate
// document terms, which dominate tax terms; tax questions also mention
// articles and rates all the time, so dispute vocabulary is the
// stronger signal. Queries matching nothing default to tax, the
// broadest knowledge base.
func Classify(query string) QueryMode {
	dispute := matchedKeywords(query, disputeKeywords)
	document := matchedKeywords(query, documentKeywords)
	tax := matchedKeywords(query, taxKeywords)

	slog.Debug("classify: keyword matches",
		"dispute", len(dispute), "document", len(document), "tax", len(tax))

	switch {
	case len(dispute) > 0:
		return ModeDispute
	case len(document) > 0:
		return ModeDocument
	default:
		return ModeTax
	}
}

// matchedKeywords returns the keywords found in the query,
// case-insensitively.
func matchedKeywords(query string, keywords []string) []string {
	lower := strings.ToLower(query)
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
