package rag

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// NoDocumentsAnswer is returned when retrieval finds nothing to ground an answer on.
const NoDocumentsAnswer = "関連する文書を見つけられませんでした。"

// DefaultLanguage is the answer language used when Settings.Language is empty.
const DefaultLanguage = "Japanese"

const promptTemplate = `You are an AI assistant that answers corporate knowledge base questions.
Use ONLY the context sections to answer. If the answer is not contained in the context, say you do not know.
Return the answer in {language} and cite references in square brackets using the format [source:chunk].

Context:
{context}

Question:
{question}

Answer:
`

// BuildContext renders one "[source:chunk_index] content" line per result, keeping
// the retrieval order.
func BuildContext(results []models.RetrievedResult) string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = "[" + models.CitationLabel(r.Metadata) + "] " + r.Content
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt fills the answer template. Placeholders are substituted in a single
// pass so braces inside the context or question are left alone.
func BuildPrompt(context, question, language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return strings.NewReplacer(
		"{language}", language,
		"{context}", context,
		"{question}", question,
	).Replace(promptTemplate)
}
