package feedback

import (
	"github.com/dshills/marginalia/internal/annotate"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Score criteria, in display order.
const (
	Clarity      = "clarity"
	Tone         = "tone"
	Alignment    = "alignment"
	Efficiency   = "efficiency"
	Completeness = "completeness"
)

var criteria = []string{Clarity, Tone, Alignment, Efficiency, Completeness}

// Criteria returns the score criteria in display order.
func Criteria() []string {
	out := make([]string, len(criteria))
	copy(out, criteria)
	return out
}

var titler = cases.Title(language.English)

// Label returns the display label of a criterion, e.g. "Clarity".
func Label(criterion string) string {
	return titler.String(criterion)
}

// Scores holds one 0-100 score per criterion. Pointers distinguish a missing
// score from a zero.
type Scores struct {
	Clarity      *float64 `json:"clarity" validate:"required,min=0,max=100" jsonschema:"minimum=0,maximum=100" jsonschema_description:"How easy the text is to follow."`
	Tone         *float64 `json:"tone" validate:"required,min=0,max=100" jsonschema:"minimum=0,maximum=100" jsonschema_description:"How well the tone suits the audience."`
	Alignment    *float64 `json:"alignment" validate:"required,min=0,max=100" jsonschema:"minimum=0,maximum=100" jsonschema_description:"How well the text serves its stated goal."`
	Efficiency   *float64 `json:"efficiency" validate:"required,min=0,max=100" jsonschema:"minimum=0,maximum=100" jsonschema_description:"How concisely the text makes its points."`
	Completeness *float64 `json:"completeness" validate:"required,min=0,max=100" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Whether anything important is missing."`
}

// Value returns the score for criterion.
func (s Scores) Value(criterion string) (float64, bool) {
	var p *float64
	switch criterion {
	case Clarity:
		p = s.Clarity
	case Tone:
		p = s.Tone
	case Alignment:
		p = s.Alignment
	case Efficiency:
		p = s.Efficiency
	case Completeness:
		p = s.Completeness
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SnippetFeedback is a comment anchored to a verbatim excerpt of the document.
type SnippetFeedback struct {
	Snippet string `json:"snippet" validate:"required" jsonschema_description:"An exact, verbatim excerpt of the document."`
	Comment string `json:"comment" validate:"required" jsonschema_description:"Feedback about the excerpt."`
}

// Result is one reviewer's structured feedback.
type Result struct {
	Scores          Scores            `json:"scores"`
	SnippetFeedback []SnippetFeedback `json:"snippetFeedback" validate:"required,dive"`
	GeneralComments []string          `json:"generalComments" validate:"required"`
}

// Average returns the mean of the scores that are present, or 0.
func (r Result) Average() float64 {
	var sum float64
	var n int
	for _, c := range criteria {
		if v, ok := r.Scores.Value(c); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Annotations converts the snippet feedback to merge engine annotations,
// preserving order.
func (r Result) Annotations() []annotate.Annotation {
	out := make([]annotate.Annotation, len(r.SnippetFeedback))
	for i, f := range r.SnippetFeedback {
		out[i] = annotate.Annotation{Snippet: f.Snippet, Comment: f.Comment}
	}
	return out
}

// Truncate keeps at most n snippet comments. n <= 0 keeps all.
func (r *Result) Truncate(n int) {
	if n > 0 && len(r.SnippetFeedback) > n {
		r.SnippetFeedback = r.SnippetFeedback[:n]
	}
}
