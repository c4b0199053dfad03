// Package citation extracts and validates Georgian Tax Code citations
// from free text, in the formats that appear in dispute council
// decisions and in generated answers.
package citation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Registry holds the set of article numbers that exist in the Georgian
// Tax Code. It is loaded from a JSON index produced during tax code
// ingestion and used to flag hallucinated article references.
type Registry struct {
	path string

	mu         sync.RWMutex
	articles   map[string]struct{}
	maxArticle int
}

// registryFile is the on-disk article index format.
type registryFile struct {
	Articles   []string `json:"articles"`
	MaxArticle int      `json:"max_article"`
}

// NewRegistry loads the article index at path. A missing or unreadable
// index is not fatal: the registry degrades to an empty set, which
// marks every citation invalid, and a warning is logged.
func NewRegistry(path string) *Registry {
	r := &Registry{
		path:     path,
		articles: map[string]struct{}{},
	}
	if err := r.load(); err != nil {
		slog.Warn("citation: article index unavailable, all citations will be flagged invalid",
			"path", path,
			"error", err,
		)
	} else {
		slog.Info("citation: article index loaded",
			"path", path,
			"articles", len(r.articles),
			"max_article", r.maxArticle,
		)
	}
	return r
}

func (r *Registry) load() error {
	if r.path == "" {
		return fmt.Errorf("no article index path configured")
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("reading article index: %w", err)
	}

	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing article index: %w", err)
	}

	set := make(map[string]struct{}, len(f.Articles))
	for _, a := range f.Articles {
		set[a] = struct{}{}
	}

	r.mu.Lock()
	r.articles = set
	r.maxArticle = f.MaxArticle
	r.mu.Unlock()
	return nil
}

// Reload re-reads the article index from disk. On failure the previous
// set is kept.
func (r *Registry) Reload() error {
	return r.load()
}

// Contains reports whether the article number exists in the tax code.
func (r *Registry) Contains(article string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.articles[article]
	return ok
}

// Len returns the number of known articles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.articles)
}

// MaxArticle returns the highest article number recorded in the index,
// or 0 when the index never loaded.
func (r *Registry) MaxArticle() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxArticle
}
