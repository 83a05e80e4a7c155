package annotate

// ReviewerID identifies one reviewer (persona) within a merge.
type ReviewerID string

// Annotation is a reviewer's claim that Snippet deserves Comment.
type Annotation struct {
	Snippet string `json:"snippet"`
	Comment string `json:"comment"`
}

// Batch is one reviewer's annotations. A slice of batches fixes the reviewer
// iteration order of a merge.
type Batch struct {
	Reviewer    ReviewerID   `json:"reviewer"`
	Annotations []Annotation `json:"annotations"`
}

// Span is an annotation located in the base document.
type Span struct {
	Reviewer ReviewerID `json:"reviewer"`
	Start    int        `json:"start"`
	End      int        `json:"end"`
	Snippet  string     `json:"snippet"`
	Comment  string     `json:"comment"`
	// Seq is the order in which the span was produced.
	Seq int `json:"seq"`
}

// Unlocated is an annotation dropped because its snippet was not found.
type Unlocated struct {
	Reviewer ReviewerID `json:"reviewer"`
	Snippet  string     `json:"snippet"`
	Comment  string     `json:"comment"`
}

// Comment is one reviewer's comment attached to a region.
type Comment struct {
	Reviewer ReviewerID `json:"reviewer"`
	Text     string     `json:"text"`
}

// Region is a merged span of the base document, [Start, End).
type Region struct {
	Start     int          `json:"start"`
	End       int          `json:"end"`
	Reviewers []ReviewerID `json:"reviewers"`
	Comments  []Comment    `json:"comments"`
}

// Text returns the slice of base covered by the region.
func (r Region) Text(base string) string {
	if r.Start < 0 || r.End > len(base) || r.Start >= r.End {
		return ""
	}
	return base[r.Start:r.End]
}

// HasReviewer reports whether id contributed to the region.
func (r Region) HasReviewer(id ReviewerID) bool {
	for _, rid := range r.Reviewers {
		if rid == id {
			return true
		}
	}
	return false
}
