package ingest

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// structureMarkers are the section headings that appear in council
// dispute decisions, in document order. Chunk boundaries prefer these
// over blind offsets so each chunk keeps a coherent section of the
// decision.
var structureMarkers = []string{
	"დოკუმენტის #",
	"მიღების თარიღი:",
	"კატეგორია:",
	"დამრიცხველი ორგანო:",
	"საკანონმდებლო ნორმები:",
	"დავის საგანი:",
	"გასაჩივრებული გადაწყვეტილება:",
	"დარიცხული თანხები:",
	"პროცედურული გარემოებები:",
	"სადავო საკითხი",
	"ფაქტები:",
	"შემოსავლების სამსახურის პოზიცია:",
	"მომჩივნის არგუმენტები:",
	"საბჭოს დასკვნა:",
	"საბოლოო გადაწყვეტილება:",
	"გასაჩივრების ვადა:",
}

// Chunk is one piece of a split decision. Section holds the structure
// marker at the chunk boundary, or "final" for the last chunk.
type Chunk struct {
	Content string
	Section string
}

// ChunkerConfig controls chunk sizing. Sizes are in runes, not bytes;
// Georgian text is three bytes per letter in UTF-8.
type ChunkerConfig struct {
	ChunkSize int
	Overlap   int
}

// LegalChunker splits dispute decisions at structure markers,
// accumulating sections into chunks of roughly ChunkSize runes with
// Overlap runes carried between consecutive chunks.
type LegalChunker struct {
	cfg ChunkerConfig
}

// NewLegalChunker returns a chunker with the given configuration.
// Zero-value fields are replaced with defaults.
func NewLegalChunker(cfg ChunkerConfig) *LegalChunker {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = 200
	}
	return &LegalChunker{cfg: cfg}
}

type markerSection struct {
	marker string
	text   string
}

// splitByMarkers slices text at the first occurrence of each structure
// marker. Text before the first marker becomes a preamble section with
// an empty marker; text with no markers at all comes back as a single
// section.
func splitByMarkers(text string) []markerSection {
	type hit struct {
		pos    int
		marker string
	}
	var hits []hit
	for _, m := range structureMarkers {
		if idx := strings.Index(text, m); idx >= 0 {
			hits = append(hits, hit{pos: idx, marker: m})
		}
	}
	if len(hits) == 0 {
		return []markerSection{{marker: "", text: text}}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var sections []markerSection
	if strings.TrimSpace(text[:hits[0].pos]) != "" {
		sections = append(sections, markerSection{marker: "", text: text[:hits[0].pos]})
	}
	for i, h := range hits {
		end := len(text)
		if i+1 < len(hits) {
			end = hits[i+1].pos
		}
		sections = append(sections, markerSection{marker: h.marker, text: text[h.pos:end]})
	}
	return sections
}

// Chunk splits a decision into structure-aware chunks. Sections
// accumulate until adding the next one would exceed ChunkSize; the
// current chunk is then emitted, tagged with the marker of the section
// that overflowed it, and the next chunk starts with the tail of the
// previous one as overlap. The last chunk is always tagged "final".
func (c *LegalChunker) Chunk(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sections := splitByMarkers(text)
	var chunks []Chunk
	current := ""

	for _, sec := range sections {
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(sec.text) > c.cfg.ChunkSize {
			chunks = append(chunks, Chunk{
				Content: strings.TrimSpace(current),
				Section: sec.marker,
			})
			current = tailRunes(current, c.cfg.Overlap) + "\n\n" + sec.text
			continue
		}
		current += sec.text
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, Chunk{
			Content: strings.TrimSpace(current),
			Section: "final",
		})
	}
	return chunks
}

// SimpleChunk splits text into fixed-size windows with a fixed stride,
// ignoring document structure. Used for texts where no markers apply.
func (c *LegalChunker) SimpleChunk(text string) []Chunk {
	runes := []rune(text)
	stride := c.cfg.ChunkSize - c.cfg.Overlap
	if stride <= 0 {
		stride = c.cfg.ChunkSize
	}

	var chunks []Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + c.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Content: piece})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
