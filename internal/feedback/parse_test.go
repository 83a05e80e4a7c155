package feedback

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dshills/marginalia/internal/annotate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResult = `{
  "scores": {"clarity": 80, "tone": 70.5, "alignment": 90, "efficiency": 60, "completeness": 0},
  "snippetFeedback": [
    {"snippet": "Revenue grew 10%.", "comment": "Cite the source."},
    {"snippet": "Costs also grew.", "comment": "By how much?"}
  ],
  "generalComments": ["Solid draft."]
}`

func TestParse_Valid(t *testing.T) {
	r, err := Parse(validResult)
	require.NoError(t, err)

	v, ok := r.Scores.Value(Tone)
	assert.True(t, ok)
	assert.Equal(t, 70.5, v)
	assert.InDelta(t, 60.1, r.Average(), 0.0001)
	assert.Equal(t, []string{"Solid draft."}, r.GeneralComments)
	assert.Equal(t, []annotate.Annotation{
		{Snippet: "Revenue grew 10%.", Comment: "Cite the source."},
		{Snippet: "Costs also grew.", Comment: "By how much?"},
	}, r.Annotations())
}

func TestParse_CodeFenceAndProse(t *testing.T) {
	_, err := Parse("```json\n" + validResult + "\n```")
	require.NoError(t, err)

	_, err = Parse("Here is my review:\n" + validResult + "\nHope this helps!")
	require.NoError(t, err)
}

func TestParse_EmptyCollectionsAllowed(t *testing.T) {
	r, err := Parse(`{"scores":{"clarity":1,"tone":2,"alignment":3,"efficiency":4,"completeness":5},"snippetFeedback":[],"generalComments":[]}`)
	require.NoError(t, err)
	assert.Empty(t, r.Annotations())
	assert.NotNil(t, r.Annotations())
}

func TestParse_Invalid(t *testing.T) {
	scores := `"scores":{"clarity":1,"tone":2,"alignment":3,"efficiency":4,"completeness":5}`
	cases := []struct {
		name    string
		content string
		field   string
		message string
	}{
		{"empty", "   ", "", "response is empty"},
		{"not json", "I cannot review this.", "", "not a valid JSON object"},
		{"missing score", `{"scores":{"clarity":1,"tone":2,"alignment":3,"efficiency":4},"snippetFeedback":[],"generalComments":[]}`,
			"scores.completeness", "scores.completeness is required"},
		{"score too high", `{"scores":{"clarity":101,"tone":2,"alignment":3,"efficiency":4,"completeness":5},"snippetFeedback":[],"generalComments":[]}`,
			"scores.clarity", "scores.clarity must be at most 100"},
		{"negative score", `{"scores":{"clarity":1,"tone":-2,"alignment":3,"efficiency":4,"completeness":5},"snippetFeedback":[],"generalComments":[]}`,
			"scores.tone", "scores.tone must be at least 0"},
		{"missing snippet feedback", `{` + scores + `,"generalComments":[]}`,
			"snippetFeedback", "snippetFeedback is required"},
		{"empty snippet", `{` + scores + `,"snippetFeedback":[{"snippet":"","comment":"x"}],"generalComments":[]}`,
			"snippetFeedback[0].snippet", "snippetFeedback[0].snippet is required"},
		{"missing comment", `{` + scores + `,"snippetFeedback":[{"snippet":"a","comment":"b"},{"snippet":"x"}],"generalComments":[]}`,
			"snippetFeedback[1].comment", "snippetFeedback[1].comment is required"},
		{"missing general comments", `{` + scores + `,"snippetFeedback":[]}`,
			"generalComments", "generalComments is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.content)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidResult))

			var inv *InvalidResultError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tc.field, inv.Field)
			assert.Contains(t, inv.Message, tc.message)
		})
	}
}

func TestParse_WrongTypes(t *testing.T) {
	_, err := Parse(`{"scores":{"clarity":"high","tone":2,"alignment":3,"efficiency":4,"completeness":5},"snippetFeedback":[],"generalComments":[]}`)
	var inv *InvalidResultError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Field, "clarity")
	assert.Contains(t, inv.Message, "must be a number")

	_, err = Parse(`{"scores":{"clarity":1,"tone":2,"alignment":3,"efficiency":4,"completeness":5},"snippetFeedback":[],"generalComments":[1]}`)
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Message, "must be a string")

	_, err = Parse(`{"scores":{"clarity":1,"tone":2,"alignment":3,"efficiency":4,"completeness":5},"snippetFeedback":"none","generalComments":[]}`)
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Message, "must be an array")
}

func TestTruncate(t *testing.T) {
	r, err := Parse(validResult)
	require.NoError(t, err)
	r.Truncate(0)
	assert.Len(t, r.SnippetFeedback, 2)
	r.Truncate(1)
	assert.Len(t, r.SnippetFeedback, 1)
}

func TestCriteriaAndLabels(t *testing.T) {
	assert.Equal(t, []string{"clarity", "tone", "alignment", "efficiency", "completeness"}, Criteria())
	assert.Equal(t, "Completeness", Label(Completeness))

	c := Criteria()
	c[0] = "mutated"
	assert.Equal(t, Clarity, Criteria()[0])
}

func TestSchema(t *testing.T) {
	var s struct {
		Type       string                     `json:"type"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(Schema(), &s))
	assert.Equal(t, "object", s.Type)
	assert.ElementsMatch(t, []string{"scores", "snippetFeedback", "generalComments"}, s.Required)

	var scores struct {
		Required   []string `json:"required"`
		Properties map[string]struct {
			Type    string   `json:"type"`
			Minimum *float64 `json:"minimum"`
			Maximum *float64 `json:"maximum"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(s.Properties["scores"], &scores))
	assert.ElementsMatch(t, Criteria(), scores.Required)
	clarity := scores.Properties["clarity"]
	assert.Equal(t, "number", clarity.Type)
	require.NotNil(t, clarity.Maximum)
	assert.Equal(t, 100.0, *clarity.Maximum)
}
