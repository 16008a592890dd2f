package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the text of every page in order, joined by "\n".
// Pages without extractable text contribute an empty string.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		pages = append(pages, pageText(r.Page(i)))
	}
	return strings.Join(pages, "\n"), nil
}

func pageText(page pdf.Page) (text string) {
	if page.V.IsNull() {
		return ""
	}
	// the reader panics on some malformed content streams
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
