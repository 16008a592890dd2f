package models

import "errors"

var (
	// ErrInvalidConfiguration is returned when a component is constructed with unusable settings.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidInput is returned for caller mistakes such as an empty question.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotConfigured is returned when no generation backend is available.
	ErrNotConfigured = errors.New("generation backend not configured")
	// ErrBackend wraps failures of the embedding, index, or generation backends.
	ErrBackend = errors.New("backend failure")
	// ErrIndex is returned when the vector index rejects an operation, e.g. a dimension mismatch.
	ErrIndex = errors.New("index error")
)
