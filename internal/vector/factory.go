package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// IndexType selects the vector index backend.
type IndexType string

const (
	// IndexTypeSQLite persists entries in a local SQLite file and searches them in memory.
	IndexTypeSQLite IndexType = "sqlite"
	// IndexTypeChroma stores entries in a Chroma server.
	IndexTypeChroma IndexType = "chroma"
)

// Options locate and name a collection.
type Options struct {
	Type       IndexType
	Dir        string // vector store directory (sqlite)
	ChromaURL  string // Chroma server base URL (chroma)
	Collection string
	// EmbeddingModel identifies the embedding model of the collection; defaults to
	// the embedder's Model().
	EmbeddingModel string
}

// NewIndex opens or creates the collection described by opts.
func NewIndex(ctx context.Context, opts Options, embedder embedding.Embedder, logger *zap.Logger) (Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: an embedder is required", models.ErrInvalidConfiguration)
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", models.ErrInvalidConfiguration)
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = embedder.Model()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	switch opts.Type {
	case IndexTypeSQLite, "":
		return NewSQLiteIndex(ctx, opts, embedder, logger)
	case IndexTypeChroma:
		return NewChromaIndex(ctx, opts, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unknown index type: %s (supported: sqlite, chroma)", models.ErrInvalidConfiguration, opts.Type)
	}
}
