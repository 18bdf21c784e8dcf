package search

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/chatbruti/chatbruti/internal/index"
	"github.com/chatbruti/chatbruti/pkg/models"
)

// ErrEmptyIndex reports a query against a store with zero entries. Distinct
// from a no-match result: there was nothing to rank at all.
var ErrEmptyIndex = errors.New("index is empty")

// CosineSimilarity returns dot(a,b)/(|a|*|b|), or 0 when either vector has
// zero norm. A zero vector carries no signal; it is never an error.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Retrieve ranks every stored vector against queryVec and returns the best
// chunk, its raw similarity as the confidence, and its truncated text. Ties
// go to the earlier-inserted entry, so identical inputs always yield the
// identical result. A best score below threshold yields Found=false, a
// normal outcome; the threshold itself is inclusive.
func Retrieve(queryVec []float32, ix *index.Index, threshold float64, maxContextLength int) (models.RetrievalResult, error) {
	entries := ix.Entries()
	if len(entries) == 0 {
		return models.RetrievalResult{}, ErrEmptyIndex
	}
	if ix.Dim() > 0 && len(queryVec) != ix.Dim() {
		return models.RetrievalResult{}, fmt.Errorf("%w: query has %d, index holds %d",
			index.ErrDimMismatch, len(queryVec), ix.Dim())
	}

	best := -1
	bestScore := math.Inf(-1)
	for i := range entries {
		score := CosineSimilarity(queryVec, entries[i].Vector)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	if bestScore < threshold {
		return models.RetrievalResult{ChunkID: -1, Found: false}, nil
	}

	chunk := entries[best].Chunk
	return models.RetrievalResult{
		Context:     Truncate(chunk.Text, maxContextLength),
		Confidence:  bestScore,
		ChunkID:     chunk.ID,
		SourceURL:   chunk.SourceURL,
		SourceTitle: chunk.SourceTitle,
		Found:       true,
	}, nil
}

// Truncate caps text at max characters, cutting back to the last word
// boundary and appending an ellipsis when anything was dropped. Characters
// are runes; cutting at a byte offset could split a multi-byte rune.
func Truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	cut := string([]rune(text)[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
