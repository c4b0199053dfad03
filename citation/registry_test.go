package citation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryLoad(t *testing.T) {
	reg := NewRegistry(writeIndex(t, `"1", "2", "168"`))

	if reg.Len() != 3 {
		t.Errorf("len = %d, want 3", reg.Len())
	}
	if reg.MaxArticle() != 312 {
		t.Errorf("max article = %d, want 312", reg.MaxArticle())
	}
	if !reg.Contains("168") {
		t.Error("article 168 should be in the registry")
	}
	if reg.Contains("999") {
		t.Error("article 999 should not be in the registry")
	}
}

// TestRegistryMissingFile checks the degraded mode: extraction still
// works, everything is flagged invalid.
func TestRegistryMissingFile(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist.json"))

	if reg.Len() != 0 {
		t.Errorf("len = %d, want 0", reg.Len())
	}

	e := NewExtractor(reg)
	got := e.Extract("მუხლი 168")
	if len(got) != 1 {
		t.Fatalf("got %d citations, want 1", len(got))
	}
	if got[0].Valid {
		t.Error("citation should be invalid with no registry loaded")
	}
}

func TestRegistryMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "article_index.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(path)
	if reg.Len() != 0 {
		t.Errorf("len = %d, want 0 for malformed index", reg.Len())
	}
}

func TestRegistryReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "article_index.json")
	if err := os.WriteFile(path, []byte(`{"articles": ["1"], "max_article": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(path)
	if reg.Contains("2") {
		t.Fatal("article 2 should not be known yet")
	}

	if err := os.WriteFile(path, []byte(`{"articles": ["1", "2"], "max_article": 2}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if !reg.Contains("2") {
		t.Error("article 2 should be known after reload")
	}
	if reg.MaxArticle() != 2 {
		t.Errorf("max article = %d, want 2", reg.MaxArticle())
	}
}

// TestRegistryReloadFailureKeepsOldSet verifies a failed reload does
// not wipe the working set.
func TestRegistryReloadFailureKeepsOldSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "article_index.json")
	if err := os.WriteFile(path, []byte(`{"articles": ["1"], "max_article": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(path)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := reg.Reload(); err == nil {
		t.Error("expected error reloading a deleted index")
	}
	if !reg.Contains("1") {
		t.Error("previous article set should survive a failed reload")
	}
}
