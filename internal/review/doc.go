// Package review runs reviewer personas against a document and merges their
// feedback into one report.
//
// Each persona is an independent model call with its own system prompt. The
// Engine runs personas concurrently with bounded parallelism, parses and
// validates every response with the feedback package, and attempts one repair
// pass when a response is invalid. A persona that fails is recorded in the
// report without affecting the others, and can be re-run later with
// Engine.Retry.
//
// Snippets from successful reviewers are located in the document and merged
// into non-overlapping regions (see package annotate). Secrets are redacted
// before the document leaves the process, and the redacted text is the base
// that region offsets refer to.
package review
