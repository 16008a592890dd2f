package models

import (
	"fmt"
	"strings"
)

// QueryRequest is the body of a question request.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate returns ErrInvalidInput if the question is blank or top_k is negative.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question must not be empty", ErrInvalidInput)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrInvalidInput)
	}
	return nil
}

// IngestRequest is the body of an ingest request. Paths are absolute or relative to the source directory;
// an empty list ingests every supported file under the source directory.
type IngestRequest struct {
	Paths []string `json:"paths"`
}

// IngestResponse is returned by ingest and upload requests.
type IngestResponse struct {
	IngestionStats
	Detail string `json:"detail"`
}
