package embedding

import (
	"context"
	"fmt"
)

// CachedEmbedder memoizes embeddings of another Embedder in an LRU cache.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the cached embedding for text, computing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cached, nil
	}
	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, emb)
	return emb, nil
}

// EmbedBatch serves hits from the cache and embeds the misses in a single inner batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if cached, ok := c.cache.Get(text); ok {
			out[i] = cached
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	embs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embs), len(missTexts))
	}
	for j, emb := range embs {
		out[missIdx[j]] = emb
		c.cache.Set(missTexts[j], emb)
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Model returns the inner embedder's model.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Unwrap returns the wrapped embedder.
func (c *CachedEmbedder) Unwrap() Embedder {
	return c.inner
}

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
