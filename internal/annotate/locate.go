package annotate

import (
	"strings"
	"unicode/utf8"
)

// Locate finds the first verbatim occurrence of snippet in base.
// It reports ok=false for an empty snippet or one that does not occur.
func Locate(base, snippet string) (start, end int, ok bool) {
	if snippet == "" {
		return 0, 0, false
	}
	idx := strings.Index(base, snippet)
	if idx < 0 {
		return 0, 0, false
	}
	return idx, idx + len(snippet), true
}

// LocateSpans locates every annotation in batch order, then list order.
// Annotations whose snippet cannot be found are returned in dropped.
func LocateSpans(base string, batches []Batch) (spans []Span, dropped []Unlocated) {
	seq := 0
	for _, b := range batches {
		for _, a := range b.Annotations {
			start, end, ok := Locate(base, a.Snippet)
			if !ok {
				dropped = append(dropped, Unlocated{
					Reviewer: b.Reviewer,
					Snippet:  a.Snippet,
					Comment:  a.Comment,
				})
				continue
			}
			spans = append(spans, Span{
				Reviewer: b.Reviewer,
				Start:    start,
				End:      end,
				Snippet:  a.Snippet,
				Comment:  a.Comment,
				Seq:      seq,
			})
			seq++
		}
	}
	return spans, dropped
}

// RuneOffsets converts a byte range of base into rune offsets.
// Out-of-range values are clamped to the string bounds.
func RuneOffsets(base string, start, end int) (int, int) {
	start = clamp(start, 0, len(base))
	end = clamp(end, start, len(base))
	rs := utf8.RuneCountInString(base[:start])
	return rs, rs + utf8.RuneCountInString(base[start:end])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
