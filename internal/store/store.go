package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chatbruti/chatbruti/internal/index"
	"github.com/chatbruti/chatbruti/pkg/models"
)

var (
	// ErrPersistence reports a failed save. The in-memory index stays
	// authoritative; callers log and continue.
	ErrPersistence = errors.New("persistence failed")
	// ErrNotFound reports that no saved index exists yet.
	ErrNotFound = errors.New("no saved index")
)

// IndexStore is the durable representation of an index: a sequential list of
// chunk records with their embeddings plus build metadata. Loading a saved
// index and saving it again without a rebuild reproduces identical bytes.
type IndexStore interface {
	Save(ctx context.Context, ix *index.Index) error
	Load(ctx context.Context) (*index.Index, error)
}

type record struct {
	ChunkID     int       `json:"chunk_id"`
	Text        string    `json:"text"`
	SourceURL   string    `json:"source_url"`
	SourceTitle string    `json:"source_title"`
	CreatedAt   time.Time `json:"created_at"`
	Embedding   []float32 `json:"embedding"`
}

type metadata struct {
	TotalChunks int       `json:"total_chunks"`
	BuiltAt     time.Time `json:"built_at"`
	SourceURL   string    `json:"source_url"`
}

type payload struct {
	Metadata metadata `json:"metadata"`
	Chunks   []record `json:"chunks"`
}

// FileStore persists the index as a single JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the whole index to the store's path.
func (s *FileStore) Save(_ context.Context, ix *index.Index) error {
	entries := ix.Entries()
	p := payload{
		Metadata: metadata{
			TotalChunks: len(entries),
			BuiltAt:     ix.BuiltAt(),
			SourceURL:   ix.SourceURL(),
		},
		Chunks: make([]record, 0, len(entries)),
	}
	for _, e := range entries {
		p.Chunks = append(p.Chunks, record{
			ChunkID:     e.Chunk.ID,
			Text:        e.Chunk.Text,
			SourceURL:   e.Chunk.SourceURL,
			SourceTitle: e.Chunk.SourceTitle,
			CreatedAt:   e.Chunk.CreatedAt,
			Embedding:   e.Vector,
		})
	}

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Load reads the saved index back into memory.
func (s *FileStore) Load(_ context.Context) (*index.Index, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read index file: %w", err)
	}

	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode index file: %w", err)
	}

	ix := index.New(p.Metadata.SourceURL, p.Metadata.BuiltAt)
	for _, r := range p.Chunks {
		c := models.Chunk{
			ID:          r.ChunkID,
			Text:        r.Text,
			SourceURL:   r.SourceURL,
			SourceTitle: r.SourceTitle,
			CreatedAt:   r.CreatedAt,
		}
		if err := ix.Add(c, r.Embedding); err != nil {
			return nil, fmt.Errorf("decode index file: %w", err)
		}
	}
	return ix, nil
}
