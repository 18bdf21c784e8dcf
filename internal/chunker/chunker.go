package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidChunkConfig reports a bad size/overlap combination. It is surfaced
// at configuration time; Chunk never fails once the geometry validated.
var ErrInvalidChunkConfig = errors.New("invalid chunk config")

var whitespaceRuns = regexp.MustCompile(`\s+`)

// Normalize collapses runs of whitespace to a single space and trims the ends.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(text, " "))
}

// Validate checks chunk geometry: size must be positive, overlap non-negative
// and strictly smaller than size.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size %d must be > 0", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap %d must be >= 0", ErrInvalidChunkConfig, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be < size %d", ErrInvalidChunkConfig, overlap, size)
	}
	return nil
}

// Chunk normalizes text and splits it into spans of at most size characters,
// advancing by size-overlap so adjacent spans share an overlap-length suffix
// and prefix. The final span absorbs the remainder and may be shorter. Output
// is fully determined by the inputs.
func Chunk(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}

	text = Normalize(text)
	if text == "" {
		return nil, nil
	}

	// Window over runes, not bytes: the corpus is accented French and a byte
	// boundary inside a multi-byte rune would emit invalid UTF-8 spans.
	runes := []rune(text)
	stride := size - overlap
	var spans []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end >= len(runes) {
			// last window reaches the end of the text
			if span := strings.TrimSpace(string(runes[start:])); span != "" {
				spans = append(spans, span)
			}
			break
		}
		if span := strings.TrimSpace(string(runes[start:end])); span != "" {
			spans = append(spans, span)
		}
	}
	return spans, nil
}
