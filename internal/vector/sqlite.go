package vector

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// SQLiteIndex persists entries with storage.SQLiteStorage and keeps their vectors in a
// MemoryIndex for search. Safe for concurrent use.
type SQLiteIndex struct {
	store      storage.Storage
	embedder   embedding.Embedder
	collection string
	logger     *zap.Logger

	mu      sync.RWMutex
	mem     *MemoryIndex // nil until the collection has a dimension
	entries map[string]models.IndexedEntry
}

// NewSQLiteIndex opens <opts.Dir>/index.db and loads the collection into memory.
func NewSQLiteIndex(ctx context.Context, opts Options, embedder embedding.Embedder, logger *zap.Logger) (*SQLiteIndex, error) {
	store, err := storage.NewSQLiteStorage(filepath.Join(opts.Dir, storage.DBFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIndex, err)
	}
	idx, err := newSQLiteIndex(ctx, store, opts, embedder, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return idx, nil
}

func newSQLiteIndex(ctx context.Context, store storage.Storage, opts Options, embedder embedding.Embedder, logger *zap.Logger) (*SQLiteIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := opts.EmbeddingModel
	if model == "" {
		model = embedder.Model()
	}
	col, err := store.EnsureCollection(ctx, opts.Collection, model)
	if err != nil {
		return nil, err
	}
	if d := embedder.Dimensions(); d > 0 && col.Dimensions > 0 && d != col.Dimensions {
		return nil, fmt.Errorf("%w: collection %q has dimension %d but the embedder produces %d",
			models.ErrIndex, col.Name, col.Dimensions, d)
	}
	idx := &SQLiteIndex{
		store:      store,
		embedder:   embedder,
		collection: col.Name,
		logger:     logger,
		entries:    make(map[string]models.IndexedEntry),
	}
	if col.Dimensions > 0 {
		if err := idx.load(ctx, col.Dimensions); err != nil {
			return nil, err
		}
	}
	logger.Info("vector index opened",
		zap.String("collection", col.Name),
		zap.String("embedding_model", col.EmbeddingModel),
		zap.Int("dimensions", col.Dimensions),
		zap.Int("entries", len(idx.entries)))
	return idx, nil
}

func (s *SQLiteIndex) load(ctx context.Context, dimensions int) error {
	stored, err := s.store.ListEntries(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: load entries: %w", models.ErrIndex, err)
	}
	mem, err := NewMemoryIndex(dimensions)
	if err != nil {
		return err
	}
	ids := make([]string, len(stored))
	vecs := make([][]float32, len(stored))
	for i, e := range stored {
		ids[i] = e.ID
		vecs[i] = e.Embedding
		e.Embedding = nil
		s.entries[e.ID] = e
	}
	if err := mem.Add(ctx, ids, vecs); err != nil {
		return err
	}
	s.mem = mem
	return nil
}

// Add embeds chunks in one batch and appends them under fresh UUIDs.
func (s *SQLiteIndex) Add(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embed chunks: %w", models.ErrBackend, err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", models.ErrBackend, len(vecs), len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := len(vecs[0])
	if s.mem != nil {
		dims = s.mem.Dimensions()
	}
	for _, v := range vecs {
		if len(v) != dims || len(v) == 0 {
			return 0, fmt.Errorf("%w: embedding dimension %d does not match collection dimension %d",
				models.ErrIndex, len(v), dims)
		}
	}

	entries := make([]models.IndexedEntry, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = uuid.NewString()
		entries[i] = models.IndexedEntry{
			ID:        ids[i],
			Content:   c.Content,
			Metadata:  models.CloneMetadata(c.Metadata),
			Embedding: vecs[i],
		}
	}

	mem := s.mem
	if mem == nil {
		if mem, err = NewMemoryIndex(dims); err != nil {
			return 0, err
		}
		if err := s.store.SetDimensions(ctx, s.collection, dims); err != nil {
			return 0, fmt.Errorf("%w: record dimensions: %w", models.ErrBackend, err)
		}
	}
	if err := s.store.InsertEntries(ctx, s.collection, entries); err != nil {
		return 0, fmt.Errorf("%w: persist entries: %w", models.ErrBackend, err)
	}
	if err := mem.Add(ctx, ids, vecs); err != nil {
		return 0, err
	}
	s.mem = mem
	for _, e := range entries {
		e.Embedding = nil
		s.entries[e.ID] = e
	}
	s.logger.Debug("entries added", zap.String("collection", s.collection), zap.Int("count", len(entries)))
	return len(entries), nil
}

// Query embeds text and returns the topK nearest entries.
func (s *SQLiteIndex) Query(ctx context.Context, text string, topK int) ([]models.RetrievedResult, error) {
	results := []models.RetrievedResult{}
	if topK <= 0 {
		return results, nil
	}
	s.mu.RLock()
	empty := s.mem == nil || s.mem.Size() == 0
	s.mu.RUnlock()
	if empty {
		return results, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", models.ErrBackend, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mem == nil {
		return results, nil
	}
	hits, err := s.mem.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		e := s.entries[h.ID]
		distance := h.Distance
		results = append(results, models.RetrievedResult{
			ID:       e.ID,
			Content:  e.Content,
			Metadata: models.CloneMetadata(e.Metadata),
			Score:    &distance,
		})
	}
	return results, nil
}

// Count returns the number of stored entries.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	n, err := s.store.CountEntries(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: count entries: %w", models.ErrBackend, err)
	}
	return n, nil
}

// Reset deletes every entry of the collection.
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeleteEntries(ctx, s.collection); err != nil {
		return fmt.Errorf("%w: reset collection: %w", models.ErrBackend, err)
	}
	s.mem = nil
	s.entries = make(map[string]models.IndexedEntry)
	s.logger.Info("collection reset", zap.String("collection", s.collection))
	return nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.store.Close()
}
