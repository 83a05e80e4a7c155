package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/feedback"
	"github.com/dshills/marginalia/internal/review"
)

const sampleBase = "Revenue grew 10%. Costs also grew. We are hiring."

func score(v float64) *float64 { return &v }

func scores(v float64) feedback.Scores {
	return feedback.Scores{Clarity: score(v), Tone: score(v), Alignment: score(v), Efficiency: score(v), Completeness: score(v)}
}

func sampleReport() *review.Report {
	editor := review.Persona{ID: "editor", Name: "Editor"}
	skeptic := review.Persona{ID: "skeptic", Name: "Skeptic"}
	report := &review.Report{
		Tool:     review.ToolName,
		Version:  "test",
		RunID:    "run-1",
		Document: review.DocumentInfo{Name: "q3.txt", Text: sampleBase, Bytes: len(sampleBase)},
		Personas: []review.Persona{editor, skeptic, {ID: "audience", Name: "Target Reader"}},
		Reviewers: []review.ReviewerResult{
			{Persona: editor, Result: feedback.Result{
				Scores: scores(80),
				SnippetFeedback: []feedback.SnippetFeedback{
					{Snippet: "Revenue grew 10%.", Comment: "Say compared to what."},
					{Snippet: "hiring", Comment: "For which roles?"},
				},
				GeneralComments: []string{"Tight overall."},
			}},
			{Persona: skeptic, Result: feedback.Result{
				Scores: scores(40),
				SnippetFeedback: []feedback.SnippetFeedback{
					{Snippet: "grew 10%. Costs", Comment: "Source?"},
					{Snippet: "profits doubled", Comment: "Not in the text."},
				},
				GeneralComments: []string{},
			}},
		},
		Failures: []review.Failure{{Persona: review.Persona{ID: "audience"}, Error: "provider ollama: connection refused"}},
		Timing:   review.Timing{LLMMs: 1200, TotalMs: 1300},
	}
	report.Regions, report.Dropped = review.MergeResults(report.Document.Text, report.Reviewers)
	report.Summary = review.ComputeSummary(report)
	return report
}

func TestSegments(t *testing.T) {
	base := "abcdefghij"
	regions := []annotate.Region{{Start: 0, End: 2}, {Start: 4, End: 6}, {Start: 6, End: 7}}
	segs := Segments(base, regions)

	require.Len(t, segs, 5)
	assert.Equal(t, Segment{Text: "ab", Start: 0, End: 2, Region: 1}, segs[0])
	assert.Equal(t, Segment{Text: "cd", Start: 2, End: 4}, segs[1])
	assert.Equal(t, Segment{Text: "ef", Start: 4, End: 6, Region: 2}, segs[2])
	assert.Equal(t, Segment{Text: "g", Start: 6, End: 7, Region: 3}, segs[3])
	assert.Equal(t, Segment{Text: "hij", Start: 7, End: 10}, segs[4])

	var joined strings.Builder
	for _, s := range segs {
		joined.WriteString(s.Text)
	}
	assert.Equal(t, base, joined.String())
}

func TestSegments_NoRegionsAndInvalid(t *testing.T) {
	assert.Equal(t, []Segment{{Text: "plain", Start: 0, End: 5}}, Segments("plain", nil))
	assert.Nil(t, Segments("", nil))

	segs := Segments("abcdef", []annotate.Region{{Start: 1, End: 4}, {Start: 2, End: 5}, {Start: 5, End: 99}})
	require.Len(t, segs, 3, "overlapping and out-of-range regions are skipped")
	assert.Equal(t, "bcd", segs[1].Text)
	assert.Equal(t, "ef", segs[2].Text)
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "Marginalia Review: q3.txt")
	assert.Contains(t, out, "Reviewers: editor, skeptic (1 failed)")
	assert.Contains(t, out, "[Revenue grew 10%. Costs][1] also grew. We are [hiring][2].")
	assert.Contains(t, out, "[1] \"Revenue grew 10%. Costs\"")
	assert.Contains(t, out, "    editor: Say compared to what.")
	assert.Contains(t, out, "    skeptic: Source?")
	assert.Contains(t, out, "Clarity")
	assert.Contains(t, out, "(editor 80, skeptic 40)")
	assert.Contains(t, out, "Overall")
	assert.Contains(t, out, " 60.0  (editor 80.0, skeptic 40.0)")
	assert.Contains(t, out, "- Tight overall.")
	assert.Contains(t, out, "Not found in document (1)")
	assert.Contains(t, out, `skeptic: "profits doubled"`)
	assert.Contains(t, out, "audience: provider ollama: connection refused")
	assert.Contains(t, out, "Completed in 1300ms (LLM: 1200ms)")
}

func TestTextWriter_Empty(t *testing.T) {
	report := &review.Report{Document: review.DocumentInfo{Text: "Nothing to see."}}
	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, report))
	out := buf.String()
	assert.Contains(t, out, "Marginalia Review: document")
	assert.Contains(t, out, "Nothing to see.\n")
	assert.Contains(t, out, "No snippet comments.")
	assert.NotContains(t, out, "Scores")
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownWriter{}).Write(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "## Marginalia Review: q3.txt")
	assert.Contains(t, out, "| Criterion | Editor | Skeptic | **Mean** |")
	assert.Contains(t, out, "| Clarity | 80 | 40 | **60.0** |")
	assert.Contains(t, out, "| Completeness | 80 | 40 | **60.0** |\n| **Average** | 80.0 | 40.0 | **60.0** |\n")
	assert.Contains(t, out, "**Overall: 60.0** from 2 reviewers, 3 comments in 2 regions.")
	assert.Contains(t, out, "**1.** \n> Revenue grew 10%. Costs")
	assert.Contains(t, out, "- **skeptic**: Source?")
	assert.Contains(t, out, "<summary>Editor: general comments (1)</summary>")
	assert.NotContains(t, out, "Skeptic: general comments")
	assert.Contains(t, out, "### Not found in document (1)")
	assert.Contains(t, out, "### Failed reviewers")
}

func TestMdEscape(t *testing.T) {
	assert.Equal(t, `a \| b &lt;c&gt;`, mdEscape("a | b <c>"))
	assert.Equal(t, "\n> one\n> two", mdQuote("one\ntwo\n"))
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, sampleReport()))
	assert.NotContains(t, buf.String(), "\n  ", "compact unless Indent is set")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "marginalia", decoded["tool"])
	assert.Len(t, decoded["regions"], 2)
	assert.Contains(t, buf.String(), `"text":"Revenue grew 10%. Costs also grew. We are hiring."`)
}

func TestGetWriter(t *testing.T) {
	for _, f := range append(Formats(), "md", "", "JSON") {
		w, err := GetWriter(f)
		require.NoError(t, err, f)
		assert.NotNil(t, w)
	}
	_, err := GetWriter("sarif")
	assert.EqualError(t, err, "unsupported output format: sarif")
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, WriteReport(sampleReport(), "markdown", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "## Marginalia Review"))

	assert.Error(t, WriteReport(sampleReport(), "markdown", filepath.Join(t.TempDir(), "missing", "x.md")))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"short"}, wrapText("short", 10))
	assert.Equal(t, []string{"aaa bbb", "ccc"}, wrapText("aaa bbb ccc", 8))
	assert.Equal(t, "abc…", excerpt("abc  defg", 4))
}
