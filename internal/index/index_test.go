package index

import (
	"errors"
	"testing"
	"time"

	"github.com/chatbruti/chatbruti/pkg/models"
)

func TestAddKeepsInsertionOrder(t *testing.T) {
	ix := New("https://example.org/", time.Now())
	for i := 0; i < 3; i++ {
		err := ix.Add(models.Chunk{ID: i, Text: "chunk"}, []float32{float32(i), 1})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if ix.Len() != 3 {
		t.Fatalf("Expected 3 entries, got %d", ix.Len())
	}
	for i, e := range ix.Entries() {
		if e.Chunk.ID != i {
			t.Errorf("Entry %d has chunk ID %d", i, e.Chunk.ID)
		}
	}
}

func TestAddDimMismatch(t *testing.T) {
	ix := New("https://example.org/", time.Now())
	if err := ix.Add(models.Chunk{ID: 0}, []float32{1, 2, 3}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	err := ix.Add(models.Chunk{ID: 1}, []float32{1, 2})
	if !errors.Is(err, ErrDimMismatch) {
		t.Errorf("Expected ErrDimMismatch, got %v", err)
	}
	if ix.Dim() != 3 {
		t.Errorf("Expected dimension 3, got %d", ix.Dim())
	}
}

func TestStats(t *testing.T) {
	builtAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ix := New("https://example.org/", builtAt)
	_ = ix.Add(models.Chunk{ID: 0}, []float32{1})

	stats := ix.Stats()
	if stats.TotalChunks != 1 {
		t.Errorf("Expected 1 chunk, got %d", stats.TotalChunks)
	}
	if !stats.BuiltAt.Equal(builtAt) {
		t.Errorf("Expected built_at %v, got %v", builtAt, stats.BuiltAt)
	}
	if stats.SourceURL != "https://example.org/" {
		t.Errorf("Unexpected source URL %q", stats.SourceURL)
	}
}
