package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/marginalia/internal/review"
)

// JSONWriter outputs the full report as JSON.
type JSONWriter struct {
	Indent bool
}

func (j *JSONWriter) Write(w io.Writer, report *review.Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
