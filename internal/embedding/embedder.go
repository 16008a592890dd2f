// Package embedding provides the text embedding providers used to index and query chunks.
package embedding

import "context"

// Embedder produces vector embeddings for text. A collection must be indexed and
// queried with embedders that report the same Model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector length, or 0 when it is not known before the first call.
	Dimensions() int
	Model() string
	Close() error
}
