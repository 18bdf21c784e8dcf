package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkWindow(t *testing.T) {
	spans, err := Chunk("ABCDEFGHIJ", 4, 1)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	want := []string{"ABCD", "DEFG", "GHIJ"}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("Expected %v, got %v", want, spans)
	}
}

func TestChunkShortText(t *testing.T) {
	spans, err := Chunk("hello", 100, 10)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(spans) != 1 || spans[0] != "hello" {
		t.Errorf("Expected single span [hello], got %v", spans)
	}
}

func TestChunkEmptyText(t *testing.T) {
	spans, err := Chunk("   \n\t  ", 10, 2)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("Expected no spans for whitespace-only text, got %v", spans)
	}
}

func TestChunkInvalidConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Chunk("text", tc.size, tc.overlap)
			if !errors.Is(err, ErrInvalidChunkConfig) {
				t.Errorf("Expected ErrInvalidChunkConfig, got %v", err)
			}
		})
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 40)
	a, err := Chunk(text, 100, 20)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	b, err := Chunk(text, 100, 20)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical output for identical input")
	}
}

// Dropping the overlapping prefix of every span after the first must
// reconstruct the normalized text.
func TestChunkRejoin(t *testing.T) {
	text := "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	size, overlap := 7, 3
	spans, err := Chunk(text, size, overlap)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	rejoined := spans[0]
	for _, s := range spans[1:] {
		rejoined += s[overlap:]
	}
	if rejoined != text {
		t.Errorf("Rejoin mismatch:\nwant %q\ngot  %q", text, rejoined)
	}
}

func TestChunkOverlapInvariant(t *testing.T) {
	text := "ABCDEFGHIJKLMNOPQRSTUVWX"
	size, overlap := 8, 4
	spans, err := Chunk(text, size, overlap)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for i := 1; i < len(spans); i++ {
		prev := spans[i-1]
		suffix := prev[len(prev)-overlap:]
		if !strings.HasPrefix(spans[i], suffix) {
			t.Errorf("span %d %q does not start with previous suffix %q", i, spans[i], suffix)
		}
	}
	for _, s := range spans {
		if len(s) > size {
			t.Errorf("span %q exceeds size %d", s, size)
		}
	}
}

func TestChunkMultiByteText(t *testing.T) {
	spans, err := Chunk(strings.Repeat("é", 10), 4, 1)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	want := []string{"éééé", "éééé", "éééé"}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("Expected %v, got %v", want, spans)
	}
	for _, s := range spans {
		if !utf8.ValidString(s) {
			t.Errorf("Span %q is not valid UTF-8", s)
		}
	}
}

func TestChunkMultiByteSizeIsRunes(t *testing.T) {
	text := "numérique écologique réconditionné"
	spans, err := Chunk(text, 10, 2)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for _, s := range spans {
		if !utf8.ValidString(s) {
			t.Errorf("Span %q is not valid UTF-8", s)
		}
		if utf8.RuneCountInString(s) > 10 {
			t.Errorf("Span %q exceeds 10 characters", s)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  hello\n\n\tworld   again ")
	if got != "hello world again" {
		t.Errorf("Expected %q, got %q", "hello world again", got)
	}
}
