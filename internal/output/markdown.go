package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/marginalia/internal/feedback"
	"github.com/dshills/marginalia/internal/review"
)

// MarkdownWriter outputs a markdown report: a scores table followed by every
// region as a quoted snippet with its comments.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	base := report.Document.Text

	if report.Document.Name != "" {
		ew.printf("## Marginalia Review: %s\n\n", mdEscape(report.Document.Name))
	} else {
		ew.printf("## Marginalia Review\n\n")
	}

	if len(report.Reviewers) > 0 {
		ew.printf("| Criterion |")
		for _, rr := range report.Reviewers {
			ew.printf(" %s |", mdEscape(rr.Persona.Name))
		}
		ew.printf(" **Mean** |\n|---|")
		for range report.Reviewers {
			ew.printf("---:|")
		}
		ew.printf("---:|\n")
		for _, c := range feedback.Criteria() {
			ew.printf("| %s |", feedback.Label(c))
			for _, rr := range report.Reviewers {
				if v, ok := rr.Result.Scores.Value(c); ok {
					ew.printf(" %.0f |", v)
				} else {
					ew.printf(" – |")
				}
			}
			ew.printf(" **%.1f** |\n", report.Summary.Scores[c])
		}
		ew.printf("| **Average** |")
		for _, rr := range report.Reviewers {
			ew.printf(" %.1f |", rr.Result.Average())
		}
		ew.printf(" **%.1f** |\n", report.Summary.Overall)
		ew.printf("\n**Overall: %.1f** from %d reviewers, %d comments in %d regions.\n\n",
			report.Summary.Overall, len(report.Reviewers), commentCount(report.Regions), len(report.Regions))
	}

	if len(report.Regions) == 0 {
		ew.println("No snippet comments.\n")
	} else {
		ew.println("### Comments\n")
	}
	for i, r := range report.Regions {
		ew.printf("**%d.** %s\n\n", i+1, mdQuote(r.Text(base)))
		for _, c := range r.Comments {
			ew.printf("- **%s**: %s\n", c.Reviewer, mdInline(c.Text))
		}
		ew.println("")
	}

	for _, rr := range report.Reviewers {
		if len(rr.Result.GeneralComments) == 0 {
			continue
		}
		ew.printf("<details>\n<summary>%s: general comments (%d)</summary>\n\n",
			mdEscape(rr.Persona.Name), len(rr.Result.GeneralComments))
		for _, gc := range rr.Result.GeneralComments {
			ew.printf("- %s\n", mdInline(gc))
		}
		ew.printf("\n</details>\n\n")
	}

	if len(report.Dropped) > 0 {
		ew.printf("### Not found in document (%d)\n\n", len(report.Dropped))
		for _, d := range report.Dropped {
			ew.printf("- **%s**: `%s`: %s\n", d.Reviewer, strings.ReplaceAll(excerpt(d.Snippet, 80), "`", "'"), mdInline(d.Comment))
		}
		ew.println("")
	}

	if len(report.Failures) > 0 {
		ew.printf("### Failed reviewers\n\n")
		for _, f := range report.Failures {
			ew.printf("- **%s**: %s\n", f.Persona.ID, mdInline(f.Error))
		}
		ew.println("")
	}

	ew.printf("*Reviewed in %dms (LLM: %dms)*\n", report.Timing.TotalMs, report.Timing.LLMMs)
	return ew.err
}

// mdQuote renders s as a blockquote, one quoted line per source line.
func mdQuote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "> " + mdEscape(l)
	}
	return "\n" + strings.Join(lines, "\n")
}

// mdInline keeps multi-line text inside one list item.
func mdInline(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}

var mdEscaper = strings.NewReplacer("|", `\|`, "<", "&lt;", ">", "&gt;")

func mdEscape(s string) string {
	return mdEscaper.Replace(s)
}
