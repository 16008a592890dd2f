// Package models defines core data structures for chunks, index entries, and answers.
package models

import "strconv"

// Metadata keys attached to every chunk.
const (
	MetaSource     = "source"
	MetaPath       = "path"
	MetaChunkIndex = "chunk_index"
)

// DocumentChunk is a bounded segment of normalized document text with provenance metadata.
type DocumentChunk struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// NewDocumentChunk builds a chunk for the given source file and sequence number.
func NewDocumentChunk(content, source, path string, index int) DocumentChunk {
	return DocumentChunk{
		Content: content,
		Metadata: map[string]string{
			MetaSource:     source,
			MetaPath:       path,
			MetaChunkIndex: strconv.Itoa(index),
		},
	}
}

// Label returns the citation label "{source}:{chunk_index}".
func (c DocumentChunk) Label() string {
	return CitationLabel(c.Metadata)
}

// IndexedEntry is a chunk persisted in a vector index together with its embedding.
type IndexedEntry struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"-"`
}

// CitationLabel formats the source and chunk index from metadata as "{source}:{chunk_index}".
func CitationLabel(meta map[string]string) string {
	return meta[MetaSource] + ":" + meta[MetaChunkIndex]
}

// CloneMetadata returns a copy of m so stored entries never alias caller maps.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
