package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrIndexMissing is returned by Load when the persisted dense
	// index or document list is absent.
	ErrIndexMissing = errors.New("index: persisted artifacts not found")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	// Documents cannot be indexed without vectors, so Add propagates it.
	ErrEmbeddingFailed = errors.New("index: embedding generation failed")
)

// Embedder turns texts into vectors. llm.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	documentsFile = "documents.json"
	sparseFile    = "sparse.json"
	denseFile     = "dense.db"

	embedBatchSize = 32
)

// HybridIndex is the retrieval index over dispute decision chunks.
// The document list is append-only; position i corresponds to dense
// rowid i+1 and to row i of the tokenized corpus. A single RWMutex
// covers all three: Add takes the write lock, searches take read locks.
type HybridIndex struct {
	mu       sync.RWMutex
	dir      string
	dim      int
	model    string
	embedder Embedder

	docs   []Document
	corpus [][]string
	sparse *sparseIndex
	dense  *denseStore
}

// Stats summarizes index state.
type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDim   int    `json:"embedding_dim"`
	DenseRows      int    `json:"dense_rows"`
	SparseTerms    int    `json:"sparse_terms"`
	SparseReady    bool   `json:"sparse_ready"`
	IndexDir       string `json:"index_dir"`
}

// Open loads the index at dir if its artifacts exist, otherwise it
// starts a fresh empty index there. The model name is informational
// and surfaces through Stats.
func Open(dir string, dim int, model string, embedder Embedder) (*HybridIndex, error) {
	idx, err := Load(dir, dim, model, embedder)
	if err == nil {
		slog.Info("index: loaded existing corpus", "dir", dir, "documents", len(idx.docs))
		return idx, nil
	}
	if !errors.Is(err, ErrIndexMissing) {
		return nil, err
	}

	slog.Info("index: no existing corpus, starting empty", "dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	dense, err := openDenseStore(filepath.Join(dir, denseFile), dim)
	if err != nil {
		return nil, err
	}
	return &HybridIndex{
		dir:      dir,
		dim:      dim,
		model:    model,
		embedder: embedder,
		sparse:   newSparseIndex(nil),
		dense:    dense,
	}, nil
}

// Load opens a previously persisted index. It fails with
// ErrIndexMissing when dense.db or documents.json are absent; a
// missing sparse.json is rebuilt from the loaded documents.
func Load(dir string, dim int, model string, embedder Embedder) (*HybridIndex, error) {
	densePath := filepath.Join(dir, denseFile)
	docsPath := filepath.Join(dir, documentsFile)

	for _, p := range []string{densePath, docsPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, p)
		}
	}

	data, err := os.ReadFile(docsPath)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing documents: %w", err)
	}

	dense, err := openDenseStore(densePath, dim)
	if err != nil {
		return nil, err
	}

	idx := &HybridIndex{
		dir:      dir,
		dim:      dim,
		model:    model,
		embedder: embedder,
		docs:     docs,
		dense:    dense,
	}

	if err := idx.loadSparse(); err != nil {
		slog.Warn("index: sparse artifact unavailable, rebuilding", "dir", dir, "error", err)
		idx.rebuildSparse()
	}

	// Repair the dense side if it drifted from the document list.
	ctx := context.Background()
	if n, err := dense.count(ctx); err == nil && n != len(docs) {
		slog.Warn("index: dense row count mismatch, rebuilding from embeddings",
			"dense_rows", n, "documents", len(docs))
		if err := dense.rebuild(ctx, docs); err != nil {
			dense.close()
			return nil, fmt.Errorf("rebuilding dense index: %w", err)
		}
	}

	return idx, nil
}

// sparseArtifact is the on-disk form of the BM25 side. Only the
// tokenized corpus is strictly needed; the statistics are written for
// inspection and recomputed on load.
type sparseArtifact struct {
	Corpus  [][]string     `json:"corpus"`
	DocLens []int          `json:"doc_lens"`
	AvgLen  float64        `json:"avg_len"`
	DF      map[string]int `json:"df"`
}

func (idx *HybridIndex) loadSparse() error {
	data, err := os.ReadFile(filepath.Join(idx.dir, sparseFile))
	if err != nil {
		return err
	}
	var art sparseArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return fmt.Errorf("parsing sparse artifact: %w", err)
	}
	if len(art.Corpus) != len(idx.docs) {
		return fmt.Errorf("sparse corpus has %d rows, want %d", len(art.Corpus), len(idx.docs))
	}
	idx.corpus = art.Corpus
	idx.sparse = newSparseIndex(art.Corpus)
	return nil
}

func (idx *HybridIndex) rebuildSparse() {
	corpus := make([][]string, len(idx.docs))
	for i, doc := range idx.docs {
		corpus[i] = Tokenize(doc.Content)
	}
	idx.corpus = corpus
	idx.sparse = newSparseIndex(corpus)
}

// Close releases the dense store.
func (idx *HybridIndex) Close() error {
	return idx.dense.close()
}

// Len returns the number of indexed documents.
func (idx *HybridIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Add embeds documents that lack vectors, appends everything to the
// index, rebuilds the sparse side and persists. Duplicate IDs are
// accepted; every chunk stays searchable. Returns the number added.
func (idx *HybridIndex) Add(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	slog.Info("index: adding documents", "count", len(docs))

	var texts []string
	var missing []int
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			texts = append(texts, doc.Content)
			missing = append(missing, i)
		}
	}
	if len(texts) > 0 {
		embeddings, err := idx.embedAll(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		for j, i := range missing {
			docs[i].Embedding = embeddings[j]
		}
	}

	base := len(idx.docs)
	for i, doc := range docs {
		if err := idx.dense.insert(ctx, base+i+1, doc.Embedding); err != nil {
			return 0, fmt.Errorf("inserting embedding: %w", err)
		}
	}
	idx.docs = append(idx.docs, docs...)

	// Full rebuild keeps the BM25 statistics trivially consistent.
	idx.rebuildSparse()

	if err := idx.persistLocked(); err != nil {
		return 0, err
	}

	slog.Info("index: documents added", "added", len(docs), "total", len(idx.docs))
	return len(docs), nil
}

// embedAll batches embedding generation; when a batch fails it falls
// back to one text at a time so a single bad input cannot sink the
// whole ingest.
func (idx *HybridIndex) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		embeddings, err := idx.embedder.Embed(ctx, batch)
		if err != nil {
			slog.Warn("index: batch embedding failed, retrying per text",
				"batch_start", start, "error", err)
			embeddings = make([][]float32, 0, len(batch))
			for _, text := range batch {
				single, err := idx.embedder.Embed(ctx, []string{text})
				if err != nil {
					return nil, err
				}
				embeddings = append(embeddings, single[0])
			}
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(batch))
		}
		out = append(out, embeddings...)
	}
	return out, nil
}

// VectorSearch runs dense KNN retrieval. L2 distances over an
// oversampled candidate set are converted to 0-1 similarities by
// normalizing against the batch maximum, then filters are applied and
// the top k survivors returned.
func (idx *HybridIndex) VectorSearch(ctx context.Context, query string, k int, filters map[string]string) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.vectorSearchLocked(ctx, query, k, filters)
}

func (idx *HybridIndex) vectorSearchLocked(ctx context.Context, query string, k int, filters map[string]string) ([]SearchResult, error) {
	if len(idx.docs) == 0 {
		slog.Warn("index: vector search on empty corpus")
		return nil, nil
	}

	embeddings, err := idx.embedder.Embed(ctx, []string{query})
	if err != nil || len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	oversample := k * 2
	if oversample > len(idx.docs) {
		oversample = len(idx.docs)
	}
	hits, err := idx.dense.knn(ctx, embeddings[0], oversample)
	if err != nil {
		return nil, err
	}

	maxDist := 0.0
	for _, h := range hits {
		if h.distance > maxDist {
			maxDist = h.distance
		}
	}
	if maxDist <= 0 {
		maxDist = 1.0
	}

	var results []SearchResult
	for _, h := range hits {
		pos := h.pos - 1
		if pos < 0 || pos >= len(idx.docs) {
			continue
		}
		doc := idx.docs[pos]
		if !matchesFilters(doc, filters) {
			continue
		}
		score := 1 - h.distance/maxDist
		results = append(results, SearchResult{Document: doc, Score: score, MatchType: MatchVector, VectorScore: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// KeywordSearch runs BM25 retrieval. Scores are normalized against the
// batch maximum; zero-score documents never appear.
func (idx *HybridIndex) KeywordSearch(query string, k int) []SearchResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.keywordSearchLocked(query, k)
}

func (idx *HybridIndex) keywordSearchLocked(query string, k int) []SearchResult {
	if len(idx.docs) == 0 {
		slog.Warn("index: keyword search on empty corpus")
		return nil
	}

	scores := idx.sparse.scores(Tokenize(query))

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return nil
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	var results []SearchResult
	for _, pos := range order {
		if len(results) >= k {
			break
		}
		if scores[pos] <= 0 {
			continue
		}
		score := scores[pos] / maxScore
		results = append(results, SearchResult{Document: idx.docs[pos], Score: score, MatchType: MatchKeyword, KeywordScore: score})
	}
	return results
}

// HybridSearch fuses dense and sparse retrieval. Both sides run with an
// oversampled 2k budget; candidates are merged by document ID with a
// zero score for the missing component, combined with the given
// weights, filtered and truncated to k. Weights need not sum to 1.
func (idx *HybridIndex) HybridSearch(ctx context.Context, query string, k int, vectorWeight, keywordWeight float64, filters map[string]string) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.docs) == 0 {
		slog.Warn("index: hybrid search on empty corpus")
		return nil, nil
	}

	vectorResults, err := idx.vectorSearchLocked(ctx, query, k*2, filters)
	if err != nil {
		return nil, err
	}
	keywordResults := idx.keywordSearchLocked(query, k*2)

	type merged struct {
		doc     Document
		vector  float64
		keyword float64
	}
	combined := map[string]*merged{}
	var order []string // map iteration is random; preserve insertion order

	for _, r := range vectorResults {
		id := r.Document.ID
		if _, ok := combined[id]; !ok {
			combined[id] = &merged{doc: r.Document}
			order = append(order, id)
		}
		combined[id].vector = r.Score
	}
	for _, r := range keywordResults {
		id := r.Document.ID
		if _, ok := combined[id]; !ok {
			combined[id] = &merged{doc: r.Document}
			order = append(order, id)
		}
		combined[id].keyword = r.Score
	}

	var results []SearchResult
	for _, id := range order {
		m := combined[id]
		if !matchesFilters(m.doc, filters) {
			continue
		}
		results = append(results, SearchResult{
			Document:     m.doc,
			Score:        vectorWeight*m.vector + keywordWeight*m.keyword,
			MatchType:    MatchHybrid,
			VectorScore:  m.vector,
			KeywordScore: m.keyword,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// FindCase returns every chunk whose case ID or document ID matches,
// in index order.
func (idx *HybridIndex) FindCase(id string) []Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var docs []Document
	for _, doc := range idx.docs {
		if doc.Metadata.CaseID == id || doc.ID == id {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Persist writes the document and sparse artifacts to the corpus
// directory. The dense side is durable in dense.db already.
func (idx *HybridIndex) Persist() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.persistLocked()
}

func (idx *HybridIndex) persistLocked() error {
	docsData, err := json.Marshal(idx.docs)
	if err != nil {
		return fmt.Errorf("encoding documents: %w", err)
	}
	if err := os.WriteFile(filepath.Join(idx.dir, documentsFile), docsData, 0o644); err != nil {
		return fmt.Errorf("writing documents: %w", err)
	}

	art := sparseArtifact{
		Corpus:  idx.corpus,
		DocLens: idx.sparse.docLens,
		AvgLen:  idx.sparse.avgLen,
		DF:      idx.sparse.df,
	}
	sparseData, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("encoding sparse artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(idx.dir, sparseFile), sparseData, 0o644); err != nil {
		return fmt.Errorf("writing sparse artifact: %w", err)
	}

	slog.Info("index: persisted corpus", "dir", idx.dir, "documents", len(idx.docs))
	return nil
}

// Stats reports the current index state.
func (idx *HybridIndex) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	denseRows, err := idx.dense.count(context.Background())
	if err != nil {
		denseRows = -1
	}
	return Stats{
		TotalDocuments: len(idx.docs),
		EmbeddingModel: idx.model,
		EmbeddingDim:   idx.dim,
		DenseRows:      denseRows,
		SparseTerms:    idx.sparse.terms(),
		SparseReady:    idx.sparse != nil && len(idx.corpus) == len(idx.docs),
		IndexDir:       idx.dir,
	}
}
