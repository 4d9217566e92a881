// Package llm provides the dense embedding capability. The model is treated
// as a pure function text -> fixed-width vector; model identity and width are
// configuration. There is no fallback when it is unavailable: clustering
// quality depends entirely on it, so failures abort the run.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"pulse/internal/config"
)

const (
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka).
	DefaultEmbeddingDimensions = int32(768)
	// maxEmbedChars truncates oversized inputs; embedding models have token limits.
	maxEmbedChars = 8000
)

// Embedder produces a fixed-width dense vector for a text. Implementations
// must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// UnavailableError reports that the embedding capability could not be
// invoked. It is fatal to a clustering run.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding capability unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Client is the Gemini-backed Embedder.
type Client struct {
	gClient   *genai.Client
	modelName string
	dims      int32
}

// NewClient creates a Gemini embedding client from configuration.
// The API key comes from PULSE_GEMINI_API_KEY, GEMINI_API_KEY or the config file.
func NewClient(ctx context.Context, cfg config.Gemini) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required; set GEMINI_API_KEY or gemini.api_key in the config file")
	}

	modelName := cfg.EmbeddingModel
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultEmbeddingDimensions
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{gClient: gClient, modelName: modelName, dims: dims}, nil
}

// Model returns the embedding model identity.
func (c *Client) Model() string { return c.modelName }

// Embed generates a vector embedding for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	text = clipRunes(text, maxEmbedChars)

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := c.dims
	embedConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.modelName, contents, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, val := range values {
		embedding[i] = float64(val)
	}
	return embedding, nil
}

// clipRunes caps text at max runes without splitting a multi-byte character.
func clipRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
