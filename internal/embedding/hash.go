package embedding

import "context"

// HashModel is the model identifier reported by HashEmbedder.
const HashModel = "hash"

// HashEmbedder is a deterministic offline embedder using signed feature hashing over
// SplitTokens. Texts that share tokens end up close to each other, which is enough
// for lexical retrieval without a model.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length token histogram of text. Text without tokens
// embeds to the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, tok := range SplitTokens(text) {
		h := HashToken(tok)
		i := int(h % uint32(e.dimensions))
		if h&(1<<31) != 0 {
			emb[i]--
		} else {
			emb[i]++
		}
	}
	NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns HashModel.
func (e *HashEmbedder) Model() string {
	return HashModel
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
