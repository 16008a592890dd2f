// Package cli provides output helpers for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const separator = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its sources. The prompt is only included in JSON output.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", answer.Answer)
	if len(answer.Sources) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nSources (%d):\n", len(answer.Sources))
	for i, src := range answer.Sources {
		fmt.Fprintf(w, "  %d. [%s]%s\n", i+1, models.CitationLabel(src.Metadata), formatDistance(src.Score))
	}
	return nil
}

// WriteResults writes retrieved chunks nearest first.
func WriteResults(w io.Writer, query string, results []models.RetrievedResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{"query": query, "results": results})
	}
	fmt.Fprintf(w, "\nFound %d chunks for %q\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | [%s]%s\n", i+1, models.CitationLabel(r.Metadata), formatDistance(r.Score))
		if p := r.Metadata[models.MetaPath]; p != "" {
			fmt.Fprintf(w, "Path: %s\n", p)
		}
		fmt.Fprintf(w, "\n%s\n\n", Truncate(r.Content, 200))
	}
	return nil
}

// WriteIngestion writes the outcome of an ingest run.
func WriteIngestion(w io.Writer, stats models.IngestionStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "%d chunks stored from %d files.", stats.IngestedChunks, stats.IngestedFiles)
	if stats.SkippedFiles > 0 {
		fmt.Fprintf(w, " Skipped %d paths.", stats.SkippedFiles)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteStatus writes index statistics.
func WriteStatus(w io.Writer, st *rag.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Entries:          %d\n", st.Entries)
	fmt.Fprintf(w, "Generator:        %s\n", map[bool]string{true: "configured", false: "not configured"}[st.GeneratorConfigured])
	fmt.Fprintf(w, "Source directory: %s\n", st.SourceDir)
	fmt.Fprintf(w, "Vector store:     %s\n", FormatBytes(st.VectorStoreBytes))
	fmt.Fprintf(w, "Sources on disk:  %s\n", FormatBytes(st.SourceBytes))
	return nil
}

func formatDistance(d *float64) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf(" distance %.4f", *d)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxLen])) + "..."
}
