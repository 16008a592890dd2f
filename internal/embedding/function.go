package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// FunctionEmbedder adapts a chroma-go embedding function (OpenAI, Gemini) to Embedder.
// The same function is handed to Chroma collections so that server-side and
// client-side embeddings come from one model.
type FunctionEmbedder struct {
	fn    embeddings.EmbeddingFunction
	model string

	mu         sync.Mutex
	dimensions int
}

// NewFunctionEmbedder wraps fn, reporting model as its identifier.
func NewFunctionEmbedder(fn embeddings.EmbeddingFunction, model string) *FunctionEmbedder {
	return &FunctionEmbedder{fn: fn, model: model}
}

// Embed embeds a single query text.
func (e *FunctionEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := e.fn.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := emb.ContentAsFloat32()
	e.observe(len(vec))
	return vec, nil
}

// EmbedBatch embeds documents in one provider call.
func (e *FunctionEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embs, err := e.fn.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(embs) != len(texts) {
		return nil, fmt.Errorf("embedding function returned %d vectors for %d texts", len(embs), len(texts))
	}
	out := make([][]float32, len(embs))
	for i, emb := range embs {
		out[i] = emb.ContentAsFloat32()
	}
	e.observe(len(out[0]))
	return out, nil
}

func (e *FunctionEmbedder) observe(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
	}
}

// Dimensions returns the vector length seen so far, or 0 before the first call.
func (e *FunctionEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// Model returns the provider model identifier.
func (e *FunctionEmbedder) Model() string {
	return e.model
}

// Function returns the underlying chroma-go embedding function.
func (e *FunctionEmbedder) Function() embeddings.EmbeddingFunction {
	return e.fn
}

// Close is a no-op; the provider clients hold no resources.
func (e *FunctionEmbedder) Close() error {
	return nil
}
