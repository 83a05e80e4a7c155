package annotate

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_OverlappingReviewers(t *testing.T) {
	base := "Revenue grew 10%. Costs also grew."
	batches := []Batch{
		{Reviewer: "A", Annotations: []Annotation{{Snippet: "Revenue grew 10%.", Comment: "good"}}},
		{Reviewer: "B", Annotations: []Annotation{{Snippet: "grew 10%. Costs", Comment: "unclear"}}},
	}

	regions := Merge(base, batches)
	require.Len(t, regions, 1)
	r := regions[0]
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 23, r.End)
	assert.Equal(t, "Revenue grew 10%. Costs", r.Text(base))
	assert.Equal(t, []ReviewerID{"A", "B"}, r.Reviewers)
	assert.Equal(t, []Comment{{Reviewer: "A", Text: "good"}, {Reviewer: "B", Text: "unclear"}}, r.Comments)
}

func TestMerge_IdenticalSnippetTwoReviewers(t *testing.T) {
	base := "The plan is ambitious."
	batches := []Batch{
		{Reviewer: "editor", Annotations: []Annotation{{Snippet: "ambitious", Comment: "vague"}}},
		{Reviewer: "skeptic", Annotations: []Annotation{{Snippet: "ambitious", Comment: "unsupported"}}},
	}

	regions := Merge(base, batches)
	require.Len(t, regions, 1)
	assert.Equal(t, []ReviewerID{"editor", "skeptic"}, regions[0].Reviewers)
	assert.Len(t, regions[0].Comments, 2)
}

func TestMerge_SameReviewerTwice(t *testing.T) {
	base := "one two three four"
	batches := []Batch{
		{Reviewer: "A", Annotations: []Annotation{
			{Snippet: "one two", Comment: "first"},
			{Snippet: "two three", Comment: "second"},
		}},
	}

	regions := Merge(base, batches)
	require.Len(t, regions, 1)
	assert.Equal(t, []ReviewerID{"A"}, regions[0].Reviewers)
	assert.Equal(t, []Comment{{"A", "first"}, {"A", "second"}}, regions[0].Comments)
}

func TestMerge_TouchingSpansStaySeparate(t *testing.T) {
	base := "abcdef"
	batches := []Batch{
		{Reviewer: "A", Annotations: []Annotation{{Snippet: "abc", Comment: "x"}}},
		{Reviewer: "B", Annotations: []Annotation{{Snippet: "def", Comment: "y"}}},
	}

	regions := Merge(base, batches)
	require.Len(t, regions, 2)
	assert.Equal(t, 0, regions[0].Start)
	assert.Equal(t, 3, regions[0].End)
	assert.Equal(t, 3, regions[1].Start)
	assert.Equal(t, 6, regions[1].End)
}

func TestMerge_TransitivelyOverlappingTriple(t *testing.T) {
	base := "abcdefghij"
	batches := []Batch{
		{Reviewer: "A", Annotations: []Annotation{{Snippet: "abc", Comment: "left"}}},
		{Reviewer: "B", Annotations: []Annotation{{Snippet: "ghi", Comment: "right"}}},
		{Reviewer: "C", Annotations: []Annotation{{Snippet: "cdefg", Comment: "bridge"}}},
	}

	regions := Merge(base, batches)
	require.Len(t, regions, 1, "a bridging span must collapse both earlier regions")
	r := regions[0]
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 9, r.End)
	assert.Equal(t, []ReviewerID{"A", "B", "C"}, r.Reviewers)
	assert.Equal(t, []Comment{{"A", "left"}, {"B", "right"}, {"C", "bridge"}}, r.Comments)
}

func TestMerge_CommentOrderFollowsProcessingOrder(t *testing.T) {
	base := "first sentence. second sentence."
	batches := []Batch{
		{Reviewer: "zed", Annotations: []Annotation{{Snippet: "sentence. second", Comment: "z"}}},
		{Reviewer: "amy", Annotations: []Annotation{{Snippet: "first sentence", Comment: "a"}}},
	}

	regions := Merge(base, batches)
	require.Len(t, regions, 1)
	assert.Equal(t, []ReviewerID{"amy", "zed"}, regions[0].Reviewers, "reviewers are sorted")
	assert.Equal(t, []Comment{{"zed", "z"}, {"amy", "a"}}, regions[0].Comments, "comments keep processing order")
}

func TestMerge_MissingSnippetsDropped(t *testing.T) {
	base := "Revenue grew 10%."
	batches := []Batch{
		{Reviewer: "A", Annotations: []Annotation{
			{Snippet: "Revenue rose by ten percent", Comment: "paraphrased"},
			{Snippet: "10%", Comment: "source?"},
		}},
	}

	regions := Merge(base, batches)
	require.Len(t, regions, 1)
	assert.Equal(t, "10%", regions[0].Text(base))
}

func TestMerge_EmptyInputs(t *testing.T) {
	assert.NotNil(t, Merge("text", nil))
	assert.Empty(t, Merge("text", nil))
	assert.Empty(t, MergeMap("text", map[ReviewerID][]Annotation{}))
	assert.Empty(t, Merge("text", []Batch{{Reviewer: "A", Annotations: []Annotation{{Snippet: "nope"}}}}))
}

func TestMerge_SortedByStart(t *testing.T) {
	base := "aaa bbb ccc ddd"
	batches := []Batch{
		{Reviewer: "A", Annotations: []Annotation{{Snippet: "ddd"}, {Snippet: "aaa"}}},
		{Reviewer: "B", Annotations: []Annotation{{Snippet: "ccc"}}},
	}
	regions := Merge(base, batches)
	require.Len(t, regions, 3)
	assert.Equal(t, []int{0, 8, 12}, []int{regions[0].Start, regions[1].Start, regions[2].Start})
	require.NoError(t, Validate(regions))
}

func TestMergeMap_DeterministicOrder(t *testing.T) {
	base := "shared text here"
	m := map[ReviewerID][]Annotation{
		"charlie": {{Snippet: "shared", Comment: "c"}},
		"alice":   {{Snippet: "shared text", Comment: "a"}},
		"bob":     {{Snippet: "text", Comment: "b"}},
	}
	for i := 0; i < 20; i++ {
		regions := MergeMap(base, m)
		require.Len(t, regions, 1)
		assert.Equal(t, []Comment{{"alice", "a"}, {"bob", "b"}, {"charlie", "c"}}, regions[0].Comments)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	base := "The quick brown fox jumps over the lazy dog."
	batches := []Batch{
		{Reviewer: "A", Annotations: []Annotation{{Snippet: "quick brown", Comment: "1"}, {Snippet: "lazy dog", Comment: "2"}}},
		{Reviewer: "B", Annotations: []Annotation{{Snippet: "brown fox", Comment: "3"}}},
	}

	first, err := json.Marshal(Merge(base, batches))
	require.NoError(t, err)
	second, err := json.Marshal(Merge(base, batches))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestMerge_RandomizedPostconditions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	base := make([]byte, 200)
	for i := range base {
		base[i] = alphabet[rng.Intn(len(alphabet))]
	}
	text := string(base)

	for round := 0; round < 200; round++ {
		var batches []Batch
		for r := 0; r < 1+rng.Intn(4); r++ {
			b := Batch{Reviewer: ReviewerID(string(rune('A' + r)))}
			for n := 0; n < rng.Intn(6); n++ {
				start := rng.Intn(len(text) - 1)
				end := start + 1 + rng.Intn(20)
				if end > len(text) {
					end = len(text)
				}
				b.Annotations = append(b.Annotations, Annotation{Snippet: text[start:end], Comment: "c"})
			}
			batches = append(batches, b)
		}

		regions := Merge(text, batches)
		require.NoError(t, Validate(regions))

		spans, _ := LocateSpans(text, batches)
		comments := 0
		for _, r := range regions {
			comments += len(r.Comments)
		}
		assert.Equal(t, len(spans), comments, "every located span contributes exactly one comment")

		for _, s := range spans {
			covered := 0
			for _, r := range regions {
				if s.Start >= r.Start && s.End <= r.End {
					covered++
					assert.True(t, r.HasReviewer(s.Reviewer))
				}
			}
			assert.Equal(t, 1, covered, "span [%d,%d) must sit inside exactly one region", s.Start, s.End)
		}
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.Error(t, Validate([]Region{{Start: 3, End: 3}}))
	assert.Error(t, Validate([]Region{{Start: 5, End: 8}, {Start: 1, End: 2}}))
	assert.Error(t, Validate([]Region{{Start: 0, End: 5}, {Start: 4, End: 8}}))
	assert.NoError(t, Validate([]Region{{Start: 0, End: 5}, {Start: 5, End: 8}}))
}
