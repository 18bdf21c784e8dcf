package models

import "time"

type Chunk struct {
	ID          int       `json:"chunk_id"`
	Text        string    `json:"text"`
	SourceURL   string    `json:"source_url"`
	SourceTitle string    `json:"source_title"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is the raw scraped page before chunking.
type Document struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// RetrievalResult is the outcome of one search. Found is false when no chunk
// cleared the similarity threshold; Context then carries the fallback text.
type RetrievalResult struct {
	Context     string  `json:"context"`
	Confidence  float64 `json:"confidence"`
	ChunkID     int     `json:"chunk_id"`
	SourceURL   string  `json:"source_url"`
	SourceTitle string  `json:"source_title"`
	Found       bool    `json:"found"`
}

type IndexStats struct {
	TotalChunks int       `json:"total_chunks"`
	BuiltAt     time.Time `json:"built_at"`
	SourceURL   string    `json:"source_url"`
}
