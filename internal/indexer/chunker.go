// Package indexer turns source files into overlapping, citation-tagged text chunks.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// Chunker splits documents into overlapping character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	extractor    *extract.Extractor
	logger       *zap.Logger
}

// NewChunker creates a chunker with the given window size and overlap (in characters).
// extractor may be nil, in which case a default extractor is used.
func NewChunker(chunkSize, chunkOverlap int, extractor *extract.Extractor, logger *zap.Logger) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", models.ErrInvalidConfiguration, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk_overlap must not be negative, got %d", models.ErrInvalidConfiguration, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			models.ErrInvalidConfiguration, chunkOverlap, chunkSize)
	}
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		extractor:    extractor,
		logger:       logger,
	}, nil
}

// Load reads each path and returns the chunks of every supported, non-empty file
// in input order. Unsupported or unreadable files are skipped.
func (c *Chunker) Load(ctx context.Context, paths []string) []models.DocumentChunk {
	var chunks []models.DocumentChunk
	for _, path := range paths {
		if ctx.Err() != nil {
			c.logger.Warn("chunk loading cancelled", zap.Error(ctx.Err()))
			break
		}
		if !extract.IsSupported(path) {
			c.logger.Debug("skipping unsupported file", zap.String("path", path))
			continue
		}
		text, err := c.extractor.Extract(path)
		if err != nil {
			c.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fileChunks := c.chunkDocument(text, path)
		c.logger.Debug("file chunked", zap.String("path", path), zap.Int("chunks", len(fileChunks)))
		chunks = append(chunks, fileChunks...)
	}
	return chunks
}

func (c *Chunker) chunkDocument(text, path string) []models.DocumentChunk {
	source := filepath.Base(path)
	var out []models.DocumentChunk
	for i, piece := range c.Split(Preprocess(text)) {
		// empty windows keep their index slot
		if piece == "" {
			continue
		}
		out = append(out, models.NewDocumentChunk(piece, source, path, i))
	}
	return out
}

// Split returns the trimmed windows over already normalized text. The position of a
// window in the result is its chunk index; windows that trim to "" are kept as "".
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	var pieces []string
	for start := 0; start < n; start += step {
		end := start + c.chunkSize
		if end > n {
			end = n
		}
		pieces = append(pieces, strings.TrimSpace(string(runes[start:end])))
		if end >= n || step <= 0 {
			break
		}
	}
	return pieces
}
