package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/chatbruti/chatbruti/pkg/models"
)

// ErrDimMismatch reports a vector whose length differs from the vectors
// already stored. All vectors in one index share a single dimensionality or
// similarity scores become meaningless.
var ErrDimMismatch = errors.New("embedding dimension mismatch")

// Entry pairs a chunk with its embedding vector. Entries keep insertion
// order; the retriever relies on it for deterministic tie-breaking.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Index is the searchable collection of chunk/vector pairs plus build
// metadata. An Index is built once by the orchestrator and treated as
// read-only afterwards; rebuilds produce a fresh Index that replaces the old
// one wholesale.
type Index struct {
	entries   []Entry
	dim       int
	builtAt   time.Time
	sourceURL string
}

// New creates an empty index for the given source.
func New(sourceURL string, builtAt time.Time) *Index {
	return &Index{
		sourceURL: sourceURL,
		builtAt:   builtAt,
	}
}

// Add appends a chunk/vector pair. The first vector fixes the index
// dimensionality; later vectors must match it.
func (ix *Index) Add(chunk models.Chunk, vec []float32) error {
	if ix.dim == 0 {
		ix.dim = len(vec)
	} else if len(vec) != ix.dim {
		return fmt.Errorf("%w: got %d, index holds %d", ErrDimMismatch, len(vec), ix.dim)
	}
	ix.entries = append(ix.entries, Entry{Chunk: chunk, Vector: vec})
	return nil
}

// Entries returns the stored pairs in insertion order. Callers must treat the
// slice as read-only.
func (ix *Index) Entries() []Entry { return ix.entries }

func (ix *Index) Len() int { return len(ix.entries) }

func (ix *Index) Dim() int { return ix.dim }

func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

func (ix *Index) SourceURL() string { return ix.sourceURL }

// Stats summarizes the index for the caller-facing stats operation.
func (ix *Index) Stats() models.IndexStats {
	return models.IndexStats{
		TotalChunks: len(ix.entries),
		BuiltAt:     ix.builtAt,
		SourceURL:   ix.sourceURL,
	}
}
