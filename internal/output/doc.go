// Package output formats review reports for display or machine consumption.
//
// Three formats are supported:
//   - text: the annotated document for a terminal (default)
//   - json: the full structured report
//   - markdown: a scores table and quoted snippets with their comments
//
// Use [GetWriter] to obtain a [Writer] for a format string. [Segments] splits
// a document into plain and highlighted pieces for any other renderer.
package output
