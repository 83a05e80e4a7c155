package review

import (
	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/feedback"
	"github.com/dshills/marginalia/internal/redact"
)

// DocumentInfo describes the reviewed document. Text is the base text that
// region offsets refer to; it is the redacted text when redaction ran.
type DocumentInfo struct {
	Name       string           `json:"name,omitempty"`
	Text       string           `json:"text"`
	Bytes      int              `json:"bytes"`
	Redactions []redact.Finding `json:"redactions,omitempty"`
}

// ReviewerResult is one persona's successful review.
type ReviewerResult struct {
	Persona    Persona         `json:"persona"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Result     feedback.Result `json:"result"`
	Cached     bool            `json:"cached,omitempty"`
	Repaired   bool            `json:"repaired,omitempty"`
	TokensUsed int             `json:"tokensUsed,omitempty"`
	DurationMs int64           `json:"durationMs"`
}

// Failure is one persona's failed review.
type Failure struct {
	Persona  Persona `json:"persona"`
	Provider string  `json:"provider,omitempty"`
	Model    string  `json:"model,omitempty"`
	Error    string  `json:"error"`
	Auth     bool    `json:"auth,omitempty"`
	Invalid  bool    `json:"invalid,omitempty"`

	err error
}

// Summary provides an overview of a run.
type Summary struct {
	Reviewers int `json:"reviewers"`
	Failed    int `json:"failed"`
	Regions   int `json:"regions"`
	Comments  int `json:"comments"`
	Dropped   int `json:"dropped"`
	// Scores is the mean of each criterion across successful reviewers.
	Scores  map[string]float64 `json:"scores"`
	Overall float64            `json:"overall"`
}

// Timing contains performance metrics.
type Timing struct {
	LLMMs   int64 `json:"llmMs"`
	TotalMs int64 `json:"totalMs"`
}

// Report is the top-level output structure.
type Report struct {
	Tool      string               `json:"tool"`
	Version   string               `json:"version"`
	RunID     string               `json:"runId"`
	Document  DocumentInfo         `json:"document"`
	Personas  []Persona            `json:"personas"`
	Reviewers []ReviewerResult     `json:"reviewers"`
	Failures  []Failure            `json:"failures"`
	Regions   []annotate.Region    `json:"regions"`
	Dropped   []annotate.Unlocated `json:"dropped"`
	Summary   Summary              `json:"summary"`
	Timing    Timing               `json:"timing"`
}

// Reviewer returns the successful result for persona id, or nil.
func (r *Report) Reviewer(id string) *ReviewerResult {
	for i := range r.Reviewers {
		if r.Reviewers[i].Persona.ID == id {
			return &r.Reviewers[i]
		}
	}
	return nil
}

// Failed reports whether any persona failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// MergeResults locates every reviewer's snippets in base and merges them into
// regions, iterating reviewers in the given order. Snippets that do not occur
// in base are returned as dropped.
func MergeResults(base string, reviewers []ReviewerResult) ([]annotate.Region, []annotate.Unlocated) {
	batches := make([]annotate.Batch, len(reviewers))
	for i, rr := range reviewers {
		batches[i] = annotate.Batch{
			Reviewer:    rr.Persona.ReviewerID(),
			Annotations: rr.Result.Annotations(),
		}
	}
	spans, dropped := annotate.LocateSpans(base, batches)
	if dropped == nil {
		dropped = []annotate.Unlocated{}
	}
	return annotate.MergeSpans(spans), dropped
}

// ComputeSummary calculates the summary of a report.
func ComputeSummary(r *Report) Summary {
	s := Summary{
		Reviewers: len(r.Reviewers),
		Failed:    len(r.Failures),
		Regions:   len(r.Regions),
		Dropped:   len(r.Dropped),
		Scores:    map[string]float64{},
	}
	for _, reg := range r.Regions {
		s.Comments += len(reg.Comments)
	}

	var overall float64
	var scored int
	for _, c := range feedback.Criteria() {
		var sum float64
		var n int
		for _, rr := range r.Reviewers {
			if v, ok := rr.Result.Scores.Value(c); ok {
				sum += v
				n++
			}
		}
		if n > 0 {
			s.Scores[c] = sum / float64(n)
			overall += s.Scores[c]
			scored++
		}
	}
	if scored > 0 {
		s.Overall = overall / float64(scored)
	}
	return s
}
