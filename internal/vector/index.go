// Package vector stores embedded chunks and answers nearest-neighbour queries over them.
package vector

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Index persists embedded chunks and ranks them against a query text.
// Add is append-only: every call assigns fresh IDs, so adding the same chunk twice
// stores it twice.
type Index interface {
	// Add embeds and stores chunks and returns how many were stored.
	Add(ctx context.Context, chunks []models.DocumentChunk) (int, error)
	// Query returns up to topK entries by ascending distance to text.
	Query(ctx context.Context, text string, topK int) ([]models.RetrievedResult, error)
	Count(ctx context.Context) (int, error)
	// Reset removes every entry of the collection.
	Reset(ctx context.Context) error
	Close() error
}

// Hit is a single nearest-neighbour match from MemoryIndex.
type Hit struct {
	ID       string
	Distance float64
}
