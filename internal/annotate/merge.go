package annotate

import (
	"fmt"
	"sort"
)

// Merge locates every annotation and coalesces overlapping spans into
// regions sorted by Start. Spans overlap when s.Start < r.End && r.Start < s.End;
// touching endpoints stay separate. The result is never nil.
func Merge(base string, batches []Batch) []Region {
	spans, _ := LocateSpans(base, batches)
	return MergeSpans(spans)
}

// MergeMap merges a reviewer-keyed mapping. Reviewers are visited in sorted
// key order so the result does not depend on map iteration order.
func MergeMap(base string, byReviewer map[ReviewerID][]Annotation) []Region {
	ids := make([]ReviewerID, 0, len(byReviewer))
	for id := range byReviewer {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	batches := make([]Batch, 0, len(ids))
	for _, id := range ids {
		batches = append(batches, Batch{Reviewer: id, Annotations: byReviewer[id]})
	}
	return Merge(base, batches)
}

// MergeSpans sweeps already-located spans into regions. Comment order inside
// a region follows span Seq, not position.
func MergeSpans(spans []Span) []Region {
	if len(spans) == 0 {
		return []Region{}
	}

	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	var groups [][]Span
	var curEnd int
	for _, s := range ordered {
		if len(groups) > 0 && s.Start < curEnd {
			last := len(groups) - 1
			groups[last] = append(groups[last], s)
			if s.End > curEnd {
				curEnd = s.End
			}
			continue
		}
		groups = append(groups, []Span{s})
		curEnd = s.End
	}

	regions := make([]Region, 0, len(groups))
	for _, g := range groups {
		regions = append(regions, buildRegion(g))
	}
	return regions
}

func buildRegion(group []Span) Region {
	r := Region{Start: group[0].Start, End: group[0].End}
	for _, s := range group[1:] {
		if s.End > r.End {
			r.End = s.End
		}
	}

	bySeq := make([]Span, len(group))
	copy(bySeq, group)
	sort.SliceStable(bySeq, func(i, j int) bool { return bySeq[i].Seq < bySeq[j].Seq })

	seen := make(map[ReviewerID]bool, len(bySeq))
	r.Comments = make([]Comment, 0, len(bySeq))
	for _, s := range bySeq {
		r.Comments = append(r.Comments, Comment{Reviewer: s.Reviewer, Text: s.Comment})
		if !seen[s.Reviewer] {
			seen[s.Reviewer] = true
			r.Reviewers = append(r.Reviewers, s.Reviewer)
		}
	}
	sort.Slice(r.Reviewers, func(i, j int) bool { return r.Reviewers[i] < r.Reviewers[j] })
	return r
}

// Validate checks that regions are non-empty, sorted by Start and pairwise
// non-overlapping.
func Validate(regions []Region) error {
	for i, r := range regions {
		if r.Start < 0 || r.Start >= r.End {
			return fmt.Errorf("region %d: invalid bounds [%d, %d)", i, r.Start, r.End)
		}
		if i == 0 {
			continue
		}
		prev := regions[i-1]
		if r.Start < prev.Start {
			return fmt.Errorf("region %d: not sorted (start %d after %d)", i, r.Start, prev.Start)
		}
		if r.Start < prev.End {
			return fmt.Errorf("region %d: overlaps region %d", i, i-1)
		}
	}
	return nil
}
