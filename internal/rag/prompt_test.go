package rag

import (
	"testing"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildContext(t *testing.T) {
	results := []models.RetrievedResult{
		result("1", "z.md", "2", "last alphabetically, first by rank", 0.1),
		result("2", "a.md", "0", "second", 0.2),
	}
	assert.Equal(t, "[z.md:2] last alphabetically, first by rank\n[a.md:0] second", BuildContext(results))
	assert.Equal(t, "", BuildContext(nil))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("[a.md:0] text with {question} braces", "What?", "")
	assert.Contains(t, p, "Return the answer in Japanese and cite references in square brackets using the format [source:chunk].")
	assert.Contains(t, p, "Context:\n[a.md:0] text with {question} braces\n\nQuestion:\nWhat?\n\nAnswer:\n")

	p = BuildPrompt("ctx", "q", "English")
	assert.Contains(t, p, "Return the answer in English")
}
