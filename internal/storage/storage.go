// Package storage persists vector collections and their entries.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Collection describes a named set of entries embedded with one model.
// Dimensions is 0 until the first entry is stored.
type Collection struct {
	Name           string
	EmbeddingModel string
	Dimensions     int
}

// Storage defines collection and entry persistence operations.
type Storage interface {
	// EnsureCollection opens the named collection, creating it for model if missing.
	// An existing collection created with another model is rejected with models.ErrIndex.
	EnsureCollection(ctx context.Context, name, model string) (*Collection, error)
	SetDimensions(ctx context.Context, name string, dimensions int) error

	InsertEntries(ctx context.Context, collection string, entries []models.IndexedEntry) error
	ListEntries(ctx context.Context, collection string) ([]models.IndexedEntry, error)
	CountEntries(ctx context.Context, collection string) (int, error)
	// DeleteEntries removes every entry of the collection and forgets its dimensions.
	DeleteEntries(ctx context.Context, collection string) error

	Close() error
}
