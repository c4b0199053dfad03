package ingest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/gkhurtsilava/taxrag/index"
)

// Loader reads dispute decision files and turns them into indexable
// documents, one per chunk.
type Loader struct {
	chunker *LegalChunker
}

// NewLoader returns a loader using the given chunker, or a
// default-configured one if nil.
func NewLoader(chunker *LegalChunker) *Loader {
	if chunker == nil {
		chunker = NewLegalChunker(ChunkerConfig{})
	}
	return &Loader{chunker: chunker}
}

// SupportedFile reports whether path has an extension the loader reads.
func SupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".json", ".txt", ".text":
		return true
	}
	return false
}

// LoadFile reads a single decision file and returns its chunk
// documents.
func (l *Loader) LoadFile(path string) ([]index.Document, error) {
	text, extra, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return l.documents(path, text, extra), nil
}

// LoadDir walks dir recursively and loads every supported file.
// Per-file failures are logged and skipped so one broken PDF does not
// abort a whole ingestion run.
func (l *Loader) LoadDir(dir string) ([]index.Document, error) {
	var docs []index.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !SupportedFile(path) {
			return nil
		}
		fileDocs, err := l.LoadFile(path)
		if err != nil {
			slog.Warn("ingest: skipping file", "path", path, "error", err)
			return nil
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return docs, nil
}

// documents chunks a decision text and builds one document per chunk.
// The case ID comes from the text itself, then from sidecar metadata,
// then from the file name.
func (l *Loader) documents(path, text string, sidecar map[string]string) []index.Document {
	meta := ExtractMetadata(text)

	caseID := meta.CaseID
	if caseID == "" {
		caseID = sidecar["case_id"]
	}
	if caseID == "" {
		base := filepath.Base(path)
		caseID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	date := meta.Date
	if date == "" {
		date = normalizeDate(sidecar["date"])
	}

	chunks := l.chunker.Chunk(text)
	docs := make([]index.Document, 0, len(chunks))
	for i, ch := range chunks {
		extra := map[string]string{
			"section": ch.Section,
			"source":  filepath.Base(path),
		}
		for k, v := range sidecar {
			switch k {
			case "case_id", "court", "date":
				// Promoted to named metadata fields below.
			default:
				extra[k] = v
			}
		}
		if meta.Category != "" {
			extra["category"] = meta.Category
		}
		if meta.AssessingBody != "" {
			extra["assessing_body"] = meta.AssessingBody
		}
		if meta.DecisionType != "" {
			extra["decision_type"] = meta.DecisionType
		}

		docs = append(docs, index.Document{
			ID:      fmt.Sprintf("%s_chunk_%d", caseID, i),
			Content: ch.Content,
			Metadata: index.Metadata{
				CaseID:        caseID,
				Court:         sidecar["court"],
				Date:          date,
				CitedArticles: meta.CitedArticles,
				Extra:         extra,
			},
		})
	}
	return docs
}

// jsonDocument is the sidecar format: extracted text plus optional
// string metadata.
type jsonDocument struct {
	Text     string            `json:"text"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// readFile dispatches on file extension and returns the document text
// plus any sidecar metadata.
func readFile(path string) (string, map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return string(raw), nil, nil
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var doc jsonDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		text := doc.Text
		if text == "" {
			text = doc.Content
		}
		return text, doc.Metadata, nil
	case ".pdf":
		text, err := readPDF(path)
		if err != nil {
			return "", nil, err
		}
		return text, nil, nil
	}
	return "", nil, fmt.Errorf("unsupported file type: %s", path)
}

// readPDF extracts plain text from every page, skipping pages that
// fail to extract.
func readPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
