package output

import "github.com/dshills/marginalia/internal/annotate"

// Segment is a contiguous piece of the base document. Region is the 1-based
// number of the region that covers it, or 0 for unannotated text.
type Segment struct {
	Text   string `json:"text"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Region int    `json:"region,omitempty"`
}

// Highlighted reports whether the segment belongs to a region.
func (s Segment) Highlighted() bool { return s.Region > 0 }

// Segments splits base into alternating plain and highlighted segments.
// Concatenating the segment texts yields base. Regions must be sorted and
// non-overlapping (see annotate.Validate); out-of-range or overlapping
// regions are skipped.
func Segments(base string, regions []annotate.Region) []Segment {
	var out []Segment
	pos := 0
	for i, r := range regions {
		if r.Start < pos || r.End > len(base) || r.Start >= r.End {
			continue
		}
		if r.Start > pos {
			out = append(out, Segment{Text: base[pos:r.Start], Start: pos, End: r.Start})
		}
		out = append(out, Segment{Text: base[r.Start:r.End], Start: r.Start, End: r.End, Region: i + 1})
		pos = r.End
	}
	if pos < len(base) {
		out = append(out, Segment{Text: base[pos:], Start: pos, End: len(base)})
	}
	return out
}
