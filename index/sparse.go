package index

import "math"

// BM25 parameters. Standard values work well for the 1000-char
// decision chunks this corpus uses.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// sparseIndex is an in-memory BM25 index over the tokenized corpus.
// It is rebuilt from scratch whenever documents are added; at the
// corpus sizes involved (thousands of chunks) a full rebuild is
// cheaper than maintaining incremental statistics correctly.
type sparseIndex struct {
	corpus  [][]string       // tokenized documents, position-aligned with the doc list
	freqs   []map[string]int // per-document term frequencies
	docLens []int
	df      map[string]int // document frequency per term
	avgLen  float64
}

// newSparseIndex builds BM25 statistics over a tokenized corpus.
func newSparseIndex(corpus [][]string) *sparseIndex {
	s := &sparseIndex{
		corpus:  corpus,
		freqs:   make([]map[string]int, len(corpus)),
		docLens: make([]int, len(corpus)),
		df:      map[string]int{},
	}

	total := 0
	for i, tokens := range corpus {
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		s.freqs[i] = freq
		s.docLens[i] = len(tokens)
		total += len(tokens)

		for tok := range freq {
			s.df[tok]++
		}
	}
	if len(corpus) > 0 {
		s.avgLen = float64(total) / float64(len(corpus))
	}
	return s
}

// idf uses the smoothed formulation that never goes negative for very
// common terms.
func (s *sparseIndex) idf(term string) float64 {
	df := float64(s.df[term])
	n := float64(len(s.corpus))
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// scores computes the raw BM25 score of every document against the
// query tokens. Position i corresponds to document i.
func (s *sparseIndex) scores(queryTokens []string) []float64 {
	out := make([]float64, len(s.corpus))
	if len(s.corpus) == 0 || s.avgLen == 0 {
		return out
	}

	for _, term := range queryTokens {
		if s.df[term] == 0 {
			continue
		}
		idf := s.idf(term)
		for i, freq := range s.freqs {
			tf := float64(freq[term])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(s.docLens[i])/s.avgLen
			out[i] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}
	return out
}

// terms returns the vocabulary size, for stats reporting.
func (s *sparseIndex) terms() int {
	return len(s.df)
}
