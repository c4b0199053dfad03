package ingest

import (
	"strings"
	"testing"
)

func TestChunkSingleSection(t *testing.T) {
	c := NewLegalChunker(ChunkerConfig{})
	text := "ფაქტები: გადამხდელმა წარადგინა დეკლარაცია."

	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("content = %q, want %q", chunks[0].Content, text)
	}
	if chunks[0].Section != "final" {
		t.Errorf("section = %q, want final", chunks[0].Section)
	}
}

func TestChunkNoMarkers(t *testing.T) {
	c := NewLegalChunker(ChunkerConfig{})
	chunks := c.Chunk("უბრალო ტექსტი ყოველგვარი სტრუქტურის გარეშე")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Section != "final" {
		t.Errorf("section = %q, want final", chunks[0].Section)
	}
}

func TestChunkEmptyText(t *testing.T) {
	c := NewLegalChunker(ChunkerConfig{})
	if chunks := c.Chunk("   \n  "); chunks != nil {
		t.Errorf("got %d chunks for blank text, want none", len(chunks))
	}
}

func TestChunkOverflowSplitsAtMarker(t *testing.T) {
	c := NewLegalChunker(ChunkerConfig{ChunkSize: 60, Overlap: 10})

	// Section one is 50 runes, section two 56; together they exceed
	// the 60-rune budget so the chunker must split at the marker.
	sec1 := "ფაქტები: " + strings.Repeat("ა", 40) + "\n"
	sec2 := "საბჭოს დასკვნა: " + strings.Repeat("ბ", 40)

	chunks := c.Chunk(sec1 + sec2)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Section != "საბჭოს დასკვნა:" {
		t.Errorf("first chunk section = %q, want overflow marker", chunks[0].Section)
	}
	if want := "ფაქტები: " + strings.Repeat("ა", 40); chunks[0].Content != want {
		t.Errorf("first chunk content = %q, want %q", chunks[0].Content, want)
	}
	if chunks[1].Section != "final" {
		t.Errorf("last chunk section = %q, want final", chunks[1].Section)
	}
	// The second chunk starts with the 10-rune overlap carried over
	// from the first.
	if !strings.HasPrefix(chunks[1].Content, strings.Repeat("ა", 9)) {
		t.Errorf("last chunk missing overlap prefix: %q", chunks[1].Content)
	}
	if !strings.Contains(chunks[1].Content, "საბჭოს დასკვნა:") {
		t.Errorf("last chunk missing its own section: %q", chunks[1].Content)
	}
}

func TestChunkKeepsPreamble(t *testing.T) {
	c := NewLegalChunker(ChunkerConfig{})
	text := "შესავალი ტექსტი\nფაქტები: მოკლე აღწერა"

	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "შესავალი ტექსტი") {
		t.Errorf("preamble dropped: %q", chunks[0].Content)
	}
}

func TestSimpleChunkStride(t *testing.T) {
	c := NewLegalChunker(ChunkerConfig{ChunkSize: 10, Overlap: 3})
	text := strings.Repeat("ა", 25)

	chunks := c.SimpleChunk(text)
	// Stride 7 over 25 runes: windows at 0, 7, 14, 21.
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	if want := strings.Repeat("ა", 10); chunks[0].Content != want {
		t.Errorf("first window = %q, want %q", chunks[0].Content, want)
	}
	if want := strings.Repeat("ა", 4); chunks[3].Content != want {
		t.Errorf("last window = %q, want %q", chunks[3].Content, want)
	}
}

func TestTailRunes(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"აბგდევ", 3, "დევ"},
		{"აბ", 5, "აბ"},
		{"", 3, ""},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := tailRunes(tt.s, tt.n); got != tt.want {
			t.Errorf("tailRunes(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}
