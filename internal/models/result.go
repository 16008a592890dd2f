package models

// RetrievedResult is a single ranked hit returned by a vector index query.
// Score is the raw distance reported by the index; nil when the backend reports none.
type RetrievedResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    *float64          `json:"score"`
}

// Answer is the outcome of a question: the generated answer, the exact prompt sent
// to the model, and the sources in ranking order.
type Answer struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Prompt   string            `json:"prompt"`
	Sources  []RetrievedResult `json:"sources"`
}

// IngestionStats summarizes one ingest run.
type IngestionStats struct {
	IngestedFiles  int `json:"ingested_files"`
	IngestedChunks int `json:"ingested_chunks"`
	SkippedFiles   int `json:"skipped_files"`
}
