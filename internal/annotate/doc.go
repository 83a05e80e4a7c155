// Package annotate locates reviewer snippets inside a base document and merges
// the located spans into non-overlapping regions.
//
// A region carries the sorted set of reviewers whose spans contributed to it
// and their comments in processing order (reviewer order, then each
// reviewer's own list order). Regions are computed with a sort-and-sweep
// interval union, so a span that bridges two earlier regions collapses them
// into one.
//
// Offsets are byte offsets into the UTF-8 base string. Use [RuneOffsets] when
// a consumer indexes by code point.
//
// Everything in this package is pure: no I/O, no shared state, no errors for
// missing snippets. An annotation whose snippet does not occur verbatim in the
// base is dropped.
package annotate
