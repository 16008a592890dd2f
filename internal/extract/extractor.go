// Package extract provides text extraction from the supported document formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the lowercased file extensions that can be ingested.
var SupportedExtensions = []string{".pdf", ".txt", ".md", ".markdown"}

// IsSupported reports whether path has a supported extension (case-insensitive).
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// PDF text is the concatenation of every page joined by newlines; text and
// markdown files are decoded as UTF-8 with invalid bytes replaced.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".txt", ".md", ".markdown":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("unsupported extension %q", ext)
	}
}
