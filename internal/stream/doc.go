// Package stream incrementally extracts one string field from a token stream
// of JSON objects, such as the newline-delimited output of Ollama's
// /api/generate endpoint.
//
// An [Extractor] is fed raw chunks whose boundaries need not line up with
// objects, keys, escape sequences or UTF-8 sequences. Each call to
// [Extractor.Feed] returns only the newly decoded part of the field's value.
// Values of the field in successive top-level objects are concatenated, so the
// final text is the complete generated output.
//
// Malformed input never fails: unparseable fragments are skipped and bad
// escapes are passed through literally.
package stream
