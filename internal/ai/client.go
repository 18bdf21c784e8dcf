package ai

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable reports that the embedding backend could not be
// reached or produced no vector. Callers decide whether to retry or degrade.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Client provides both embedding and response-generation capabilities.
type Client interface {
	// Embed maps text to a fixed-length vector. Identical text yields an
	// identical vector for the lifetime of the client; empty text yields a
	// zero vector rather than an error.
	Embed(text string) ([]float32, error)
	// Generate produces the chatbot answer for a question given the retrieved
	// context snippet.
	Generate(ctx context.Context, question, snippet string) (string, error)
	// Dim returns the embedding dimensionality.
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderGroq     Provider = "groq"
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey       string
	EmbedModel   string
	ChatModel    string
	Dim          int
	ProjectID    string
	Location     string
	Provider     Provider
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	TopP         float64
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	ctx := context.Background()
	switch config.Provider {
	case ProviderLocal:
		return NewLocalClient(config.Dim), nil
	case ProviderGroq:
		return NewGroqClient(config), nil
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// userPrompt assembles the generation prompt from the retrieved snippet and
// the user question, shared by all remote providers.
func userPrompt(question, snippet string) string {
	return "Voici le contexte récupéré de la base de connaissances : " + snippet +
		" ; la question de l'utilisateur : " + question +
		"\nRéponds de manière complètement absurde en détournant le contexte !"
}
