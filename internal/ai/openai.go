package ai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	groqBaseURL   = "https://api.groq.com/openai/v1"
)

// OpenAIClient talks to any OpenAI-compatible API. Groq exposes the same chat
// surface, so the Groq provider reuses this client with a different base URL;
// Groq has no embeddings endpoint, so that variant hashes locally instead.
type OpenAIClient struct {
	config  *ClientConfig
	http    *http.Client
	baseURL string
	local   *LocalClient // non-nil when the backend cannot embed
}

func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-3-small"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}
	if config.Dim == 0 {
		// Set default dimensions based on the embedding model
		switch config.EmbedModel {
		case "text-embedding-3-small":
			config.Dim = 1536
		case "text-embedding-3-large":
			config.Dim = 3072
		case "text-embedding-ada-002":
			config.Dim = 1536
		default:
			config.Dim = 1536
		}
	}

	return &OpenAIClient{
		config:  config,
		http:    newHTTPClient(),
		baseURL: openAIBaseURL,
	}
}

// NewGroqClient creates a client that generates through Groq's
// OpenAI-compatible chat API and embeds with the local hashed vectorizer.
func NewGroqClient(config *ClientConfig) *OpenAIClient {
	if config.ChatModel == "" {
		config.ChatModel = "llama-3.3-70b-versatile"
	}
	local := NewLocalClient(config.Dim)
	config.Dim = local.Dim()

	return &OpenAIClient{
		config:  config,
		http:    newHTTPClient(),
		baseURL: groqBaseURL,
		local:   local,
	}
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{}

	// Corporate proxies sometimes require skipping TLS verification.
	if skipTLS, _ := strconv.ParseBool(os.Getenv("CHATBRUTI_SKIP_TLS_VERIFY")); skipTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   20 * time.Second,
		Transport: transport,
	}
}

// Embed implements the embedding functionality
func (c *OpenAIClient) Embed(text string) ([]float32, error) {
	if c.local != nil {
		return c.local.Embed(text)
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.config.Dim), nil
	}
	if c.config.APIKey == "" {
		return nil, fmt.Errorf("%w: PROVIDER_API_KEY unset", ErrEmbeddingUnavailable)
	}

	payload := map[string]string{
		"input": text,
		"model": c.config.EmbedModel,
	}

	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost,
		c.baseURL+"/embeddings", bytes.NewReader(b))

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embedding endpoint returned %s", ErrEmbeddingUnavailable, resp.Status)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding in response", ErrEmbeddingUnavailable)
	}
	return out.Data[0].Embedding, nil
}

// Generate implements chat completion against the OpenAI-compatible endpoint.
func (c *OpenAIClient) Generate(ctx context.Context, question, snippet string) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("PROVIDER_API_KEY unset")
	}

	payload := map[string]any{
		"model": c.config.ChatModel,
		"messages": []map[string]string{
			{"role": "system", "content": c.config.SystemPrompt},
			{"role": "user", "content": userPrompt(question, snippet)},
		},
		"temperature": c.config.Temperature,
		"max_tokens":  c.config.MaxTokens,
		"top_p":       c.config.TopP,
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", err
	}

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct{ Error struct{ Message string } }
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error.Message != "" {
			return "", errors.New(e.Error.Message)
		}
		return "", errors.New(resp.Status)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices")
	}

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Dim() int {
	return c.config.Dim
}

// setHeaders sets common headers for OpenAI-compatible requests
func (c *OpenAIClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	if strings.HasPrefix(c.config.APIKey, "sk-proj-") && c.config.ProjectID != "" {
		req.Header.Set("OpenAI-Project", c.config.ProjectID)
	}
}
