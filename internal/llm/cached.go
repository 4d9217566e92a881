package llm

import (
	"context"

	"pulse/internal/logger"
	"pulse/internal/store"
)

// CachedEmbedder wraps an Embedder with the SQLite embedding cache.
// Cache failures degrade to a direct model call; they never fail the run.
type CachedEmbedder struct {
	inner Embedder
	cache *store.Store
}

// NewCached returns an Embedder that consults the cache before the model.
func NewCached(inner Embedder, cache *store.Store) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Model returns the wrapped model identity.
func (c *CachedEmbedder) Model() string { return c.inner.Model() }

// Embed returns the cached vector when present, otherwise calls the model
// and stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if vec, found, err := c.cache.GetEmbedding(text, c.inner.Model()); err == nil && found {
		return vec, nil
	} else if err != nil {
		logger.Get().Warn().Err(err).Msg("embedding cache read failed")
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.PutEmbedding(text, c.inner.Model(), vec); err != nil {
		logger.Get().Warn().Err(err).Msg("embedding cache write failed")
	}
	return vec, nil
}
