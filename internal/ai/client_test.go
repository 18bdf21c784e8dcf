package ai

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestNewClientProviders(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		wantErr  bool
	}{
		{"local", ProviderLocal, false},
		{"groq", ProviderGroq, false},
		{"openai", ProviderOpenAI, false},
		{"unsupported", Provider("bogus"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(&ClientConfig{Provider: tt.provider, Dim: 64})
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for unsupported provider")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			if c.Dim() <= 0 {
				t.Errorf("Expected positive dimension, got %d", c.Dim())
			}
		})
	}
}

func TestNewClientNilConfig(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestLocalClientDeterministic(t *testing.T) {
	c := NewLocalClient(128)

	a, err := c.Embed("la démarche numérique responsable et durable")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := c.Embed("la démarche numérique responsable et durable")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical vectors for identical text")
	}
	if len(a) != 128 {
		t.Errorf("Expected dimension 128, got %d", len(a))
	}
}

func TestLocalClientEmptyTextIsZeroVector(t *testing.T) {
	c := NewLocalClient(32)
	vec, err := c.Embed("   ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("Expected zero vector, got %f at index %d", v, i)
		}
	}
}

func TestLocalClientStopwordsIgnored(t *testing.T) {
	c := NewLocalClient(64)
	// Only stopwords and short tokens: must vectorize to zero.
	vec, err := c.Embed("le la et ou de il est un")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatal("Expected stopword-only text to produce a zero vector")
		}
	}
}

func TestLocalClientDefaultDim(t *testing.T) {
	c := NewLocalClient(0)
	if c.Dim() != DefaultLocalDim {
		t.Errorf("Expected default dim %d, got %d", DefaultLocalDim, c.Dim())
	}
}

func TestGroqClientEmbedsLocally(t *testing.T) {
	c := NewGroqClient(&ClientConfig{Provider: ProviderGroq})
	// No API key, no network: embedding must still succeed via hashing.
	vec, err := c.Embed("reconditionnement des ordinateurs sous linux")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != c.Dim() {
		t.Errorf("Expected %d-dimensional vector, got %d", c.Dim(), len(vec))
	}
	var sum float32
	for _, v := range vec {
		sum += v
	}
	if sum == 0 {
		t.Error("Expected non-zero vector for content words")
	}
}

func TestLocalClientGenerateFallback(t *testing.T) {
	c := NewLocalClient(16)
	answer, err := c.Generate(context.Background(), "question", "contexte")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer == "" {
		t.Error("Expected a canned answer from the local client")
	}
}

func TestEmbeddingUnavailableSentinel(t *testing.T) {
	c := NewOpenAIClient(&ClientConfig{Provider: ProviderOpenAI})
	_, err := c.Embed("some text")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("Expected ErrEmbeddingUnavailable without API key, got %v", err)
	}
}
