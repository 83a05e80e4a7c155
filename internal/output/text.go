package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/feedback"
	"github.com/dshills/marginalia/internal/review"
)

// TextWriter outputs the annotated document for a terminal. Each region is
// wrapped as [text][n] and its comments are listed under the same number.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	base := report.Document.Text

	title := report.Document.Name
	if title == "" {
		title = "document"
	}
	ew.printf("Marginalia Review: %s\n", title)
	ew.printf("Reviewers: %s", strings.Join(reviewerIDs(report.Reviewers), ", "))
	if n := len(report.Failures); n > 0 {
		ew.printf(" (%d failed)", n)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if len(report.Reviewers) > 0 {
		ew.println("Scores")
		for _, c := range feedback.Criteria() {
			mean, ok := report.Summary.Scores[c]
			if !ok {
				continue
			}
			ew.printf("  %-14s %5.1f  (%s)\n", feedback.Label(c), mean, perReviewer(report.Reviewers, c))
		}
		ew.printf("  %-14s %5.1f  (%s)\n", "Overall", report.Summary.Overall, reviewerAverages(report.Reviewers))
		ew.println(strings.Repeat("─", 60))
	}

	for _, seg := range Segments(base, report.Regions) {
		if seg.Highlighted() {
			ew.printf("[%s][%d]", seg.Text, seg.Region)
			continue
		}
		ew.printf("%s", seg.Text)
	}
	if !strings.HasSuffix(base, "\n") {
		ew.println("")
	}
	ew.println(strings.Repeat("─", 60))

	if len(report.Regions) == 0 {
		ew.println("\nNo snippet comments.")
	}
	for i, r := range report.Regions {
		ew.printf("\n[%d] %q\n", i+1, excerpt(r.Text(base), 70))
		for _, c := range r.Comments {
			lines := wrapText(c.Text, 66)
			ew.printf("    %s: %s\n", c.Reviewer, lines[0])
			for _, line := range lines[1:] {
				ew.printf("      %s\n", line)
			}
		}
	}

	var general bool
	for _, rr := range report.Reviewers {
		if len(rr.Result.GeneralComments) == 0 {
			continue
		}
		if !general {
			ew.println("\nGeneral comments")
			general = true
		}
		ew.printf("  %s:\n", rr.Persona.ID)
		for _, gc := range rr.Result.GeneralComments {
			for i, line := range wrapText(gc, 66) {
				if i == 0 {
					ew.printf("    - %s\n", line)
					continue
				}
				ew.printf("      %s\n", line)
			}
		}
	}

	if len(report.Dropped) > 0 {
		ew.printf("\nNot found in document (%d)\n", len(report.Dropped))
		for _, d := range report.Dropped {
			ew.printf("  %s: %q\n", d.Reviewer, excerpt(d.Snippet, 60))
		}
	}

	if len(report.Failures) > 0 {
		ew.println("\nFailed reviewers")
		for _, f := range report.Failures {
			ew.printf("  %s: %s\n", f.Persona.ID, f.Error)
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms (LLM: %dms)\n", report.Timing.TotalMs, report.Timing.LLMMs)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func reviewerIDs(rrs []review.ReviewerResult) []string {
	ids := make([]string, len(rrs))
	for i, rr := range rrs {
		ids[i] = rr.Persona.ID
	}
	return ids
}

func perReviewer(rrs []review.ReviewerResult, criterion string) string {
	parts := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if v, ok := rr.Result.Scores.Value(criterion); ok {
			parts = append(parts, fmt.Sprintf("%s %.0f", rr.Persona.ID, v))
		}
	}
	return strings.Join(parts, ", ")
}

func reviewerAverages(rrs []review.ReviewerResult) string {
	parts := make([]string, len(rrs))
	for i, rr := range rrs {
		parts[i] = fmt.Sprintf("%s %.1f", rr.Persona.ID, rr.Result.Average())
	}
	return strings.Join(parts, ", ")
}

// excerpt shortens s to at most n runes, collapsing whitespace.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func commentCount(regions []annotate.Region) int {
	n := 0
	for _, r := range regions {
		n += len(r.Comments)
	}
	return n
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
