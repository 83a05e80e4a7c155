package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		snippet   string
		wantStart int
		wantEnd   int
		wantOK    bool
	}{
		{"prefix", "Revenue grew 10%.", "Revenue", 0, 7, true},
		{"middle", "Revenue grew 10%.", "grew", 8, 12, true},
		{"first occurrence wins", "the cat saw the cat", "the cat", 0, 7, true},
		{"whole string", "abc", "abc", 0, 3, true},
		{"empty snippet", "abc", "", 0, 0, false},
		{"absent", "abc", "abd", 0, 0, false},
		{"case sensitive", "Revenue", "revenue", 0, 0, false},
		{"whitespace not normalised", "two  spaces", "two spaces", 0, 0, false},
		{"empty base", "", "a", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := Locate(tt.base, tt.snippet)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestLocateSpans_DropsMissingAndKeepsOrder(t *testing.T) {
	base := "alpha beta gamma delta"
	batches := []Batch{
		{Reviewer: "b", Annotations: []Annotation{
			{Snippet: "gamma", Comment: "g"},
			{Snippet: "epsilon", Comment: "missing"},
		}},
		{Reviewer: "a", Annotations: []Annotation{
			{Snippet: "alpha", Comment: "a"},
			{Snippet: "", Comment: "empty"},
		}},
	}

	spans, dropped := LocateSpans(base, batches)
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Reviewer: "b", Start: 11, End: 16, Snippet: "gamma", Comment: "g", Seq: 0}, spans[0])
	assert.Equal(t, Span{Reviewer: "a", Start: 0, End: 5, Snippet: "alpha", Comment: "a", Seq: 1}, spans[1])

	require.Len(t, dropped, 2)
	assert.Equal(t, ReviewerID("b"), dropped[0].Reviewer)
	assert.Equal(t, "epsilon", dropped[0].Snippet)
	assert.Equal(t, "empty", dropped[1].Comment)
}

func TestRuneOffsets(t *testing.T) {
	base := "héllo wörld"
	start, end, ok := Locate(base, "wörld")
	require.True(t, ok)
	assert.Equal(t, 7, start)
	assert.Equal(t, 13, end)

	rs, re := RuneOffsets(base, start, end)
	assert.Equal(t, 6, rs)
	assert.Equal(t, 11, re)

	rs, re = RuneOffsets(base, -4, 100)
	assert.Equal(t, 0, rs)
	assert.Equal(t, 11, re)
}
