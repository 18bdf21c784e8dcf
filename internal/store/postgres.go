package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/chatbruti/chatbruti/internal/index"
	"github.com/chatbruti/chatbruti/pkg/models"
)

// PostgresStore persists the index in Postgres with pgvector embeddings.
// Each save replaces the previous snapshot wholesale, matching the
// full-rebuild lifecycle of the in-memory index.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store connected to the given database URL.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: p}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup.
func (s *PostgresStore) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
  chunk_id     INT PRIMARY KEY,
  text         TEXT NOT NULL,
  source_url   TEXT NOT NULL,
  source_title TEXT NOT NULL DEFAULT '',
  created_at   TIMESTAMP WITH TIME ZONE DEFAULT now(),
  embedding    vector(%d)
);

CREATE TABLE IF NOT EXISTS index_meta (
  singleton   BOOL PRIMARY KEY DEFAULT TRUE CHECK (singleton),
  total_chunks INT NOT NULL,
  built_at    TIMESTAMP WITH TIME ZONE NOT NULL,
  source_url  TEXT NOT NULL
);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// Save replaces the stored snapshot with ix inside one transaction.
func (s *PostgresStore) Save(ctx context.Context, ix *index.Index) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	const insert = `
		INSERT INTO chunks (chunk_id, text, source_url, source_title, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, e := range ix.Entries() {
		_, err := tx.Exec(ctx, insert,
			e.Chunk.ID, e.Chunk.Text, e.Chunk.SourceURL, e.Chunk.SourceTitle,
			e.Chunk.CreatedAt, pgvector.NewVector(e.Vector))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	const meta = `
		INSERT INTO index_meta (singleton, total_chunks, built_at, source_url)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO UPDATE SET
			total_chunks = EXCLUDED.total_chunks,
			built_at     = EXCLUDED.built_at,
			source_url   = EXCLUDED.source_url`
	if _, err := tx.Exec(ctx, meta, ix.Len(), ix.BuiltAt(), ix.SourceURL()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Load reads the stored snapshot in insertion order.
func (s *PostgresStore) Load(ctx context.Context) (*index.Index, error) {
	var total int
	var builtAt time.Time
	var sourceURL string
	err := s.pool.QueryRow(ctx,
		`SELECT total_chunks, built_at, source_url FROM index_meta`).
		Scan(&total, &builtAt, &sourceURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, text, source_url, source_title, created_at, embedding
		FROM chunks ORDER BY chunk_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ix := index.New(sourceURL, builtAt)
	for rows.Next() {
		var c models.Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.Text, &c.SourceURL, &c.SourceTitle, &c.CreatedAt, &vec); err != nil {
			return nil, err
		}
		if err := ix.Add(c, vec.Slice()); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ix, nil
}

// Ping checks the database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
