package taxrag

import (
	"os"
	"path/filepath"

	"github.com/gkhurtsilava/taxrag/llm"
)

// Config holds all configuration for the taxrag engine.
type Config struct {
	// IndexDir is the directory holding the persisted corpus artifacts
	// (dense.db, documents.json, sparse.json). If empty, defaults to
	// ~/.taxrag/<CorpusName>.
	IndexDir string `json:"index_dir"`

	// CorpusName names the corpus (used when IndexDir is empty).
	// Defaults to "disputes".
	CorpusName string `json:"corpus_name"`

	// ArticleIndexPath points at the article registry JSON file. A
	// missing file is not fatal: citation validation degrades to
	// "always invalid".
	ArticleIndexPath string `json:"article_index_path"`

	// AuditDBPath enables the sqlite query audit log when non-empty.
	AuditDBPath string `json:"audit_db_path"`

	// LLM providers. Chat is the primary generation model, Fallback an
	// optional secondary tried when Chat fails, Embedding the vector model.
	Chat      llm.Config `json:"chat"`
	Fallback  llm.Config `json:"fallback"`
	Embedding llm.Config `json:"embedding"`

	// Retrieval defaults. Weights are caller-supplied and not required
	// to sum to 1.
	TopK          int     `json:"top_k"`
	VectorWeight  float64 `json:"vector_weight"`
	KeywordWeight float64 `json:"keyword_weight"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim"`
}

// DefaultConfig returns a Config with sensible defaults for local
// inference against the multilingual MiniLM embedding dimension.
func DefaultConfig() Config {
	return Config{
		CorpusName: "disputes",
		Chat: llm.Config{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
		},
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "paraphrase-multilingual",
			BaseURL:  "http://localhost:11434",
		},
		TopK:          5,
		VectorWeight:  0.5,
		KeywordWeight: 0.5,
		EmbeddingDim:  384,
	}
}

// resolveIndexDir computes the final corpus directory from config fields.
func (c *Config) resolveIndexDir() string {
	if c.IndexDir != "" {
		return c.IndexDir
	}

	name := c.CorpusName
	if name == "" {
		name = "disputes"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return name // fallback to cwd
	}
	return filepath.Join(home, ".taxrag", name)
}
