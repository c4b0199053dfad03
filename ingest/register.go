package ingest

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gkhurtsilava/taxrag/index"
)

// LoadRegister reads a case register spreadsheet. The first row of the
// first sheet is a header; recognized columns are case_id, court,
// date, cited_articles and summary. Each subsequent row with a case ID
// becomes one document whose content is the summary column.
func LoadRegister(path string) ([]index.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening register: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("register %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading register rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("register %s has no data rows", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var docs []index.Document
	for _, row := range rows[1:] {
		caseID := cell(row, "case_id")
		if caseID == "" {
			continue
		}

		var articles []string
		for _, a := range strings.Split(cell(row, "cited_articles"), ",") {
			if a = strings.TrimSpace(a); a != "" {
				articles = append(articles, a)
			}
		}

		docs = append(docs, index.Document{
			ID:      caseID,
			Content: cell(row, "summary"),
			Metadata: index.Metadata{
				CaseID:        caseID,
				Court:         cell(row, "court"),
				Date:          normalizeDate(cell(row, "date")),
				CitedArticles: articles,
				Extra:         map[string]string{"source": "register"},
			},
		})
	}
	return docs, nil
}
