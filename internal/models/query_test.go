package models

import (
	"errors"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *QueryRequest
		wantErr bool
	}{
		{"empty question", &QueryRequest{Question: ""}, true},
		{"whitespace question", &QueryRequest{Question: "  \n\t"}, true},
		{"negative top_k", &QueryRequest{Question: "x", TopK: -1}, true},
		{"valid question", &QueryRequest{Question: "hello"}, false},
		{"valid with top_k", &QueryRequest{Question: "hello", TopK: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNewDocumentChunk(t *testing.T) {
	c := NewDocumentChunk("text", "a.md", "/docs/a.md", 3)
	if c.Metadata[MetaSource] != "a.md" || c.Metadata[MetaPath] != "/docs/a.md" || c.Metadata[MetaChunkIndex] != "3" {
		t.Errorf("unexpected metadata: %v", c.Metadata)
	}
	if c.Label() != "a.md:3" {
		t.Errorf("Label() = %q", c.Label())
	}
}

func TestCloneMetadata(t *testing.T) {
	src := map[string]string{"a": "1"}
	dst := CloneMetadata(src)
	dst["a"] = "2"
	if src["a"] != "1" {
		t.Error("clone must not alias the source map")
	}
}
