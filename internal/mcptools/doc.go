// Package mcptools exposes marginalia as Model Context Protocol tools:
// locate_snippet, merge_annotations, review_document and list_personas.
package mcptools
