package mcptools

import (
	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/review"
)

// LocateSnippetInput is the input for the locate_snippet MCP tool.
type LocateSnippetInput struct {
	Base    string `json:"base" jsonschema:"the document text to search"`
	Snippet string `json:"snippet" jsonschema:"verbatim text to find; matching is exact and case-sensitive"`
}

// LocateSnippetOutput is the result of the locate_snippet MCP tool. Offsets
// are half-open; Start/End index UTF-8 bytes, RuneStart/RuneEnd code points.
type LocateSnippetOutput struct {
	Found     bool `json:"found"`
	Start     int  `json:"start"`
	End       int  `json:"end"`
	RuneStart int  `json:"runeStart"`
	RuneEnd   int  `json:"runeEnd"`
}

// ReviewerAnnotations is one reviewer's annotation list.
type ReviewerAnnotations struct {
	Reviewer    string                `json:"reviewer" jsonschema:"reviewer id"`
	Annotations []annotate.Annotation `json:"annotations" jsonschema:"snippet/comment pairs in the reviewer's order"`
}

// MergeAnnotationsInput is the input for the merge_annotations MCP tool.
type MergeAnnotationsInput struct {
	Base      string                `json:"base" jsonschema:"the document text the snippets refer to"`
	Reviewers []ReviewerAnnotations `json:"reviewers" jsonschema:"reviewers in processing order"`
}

// MergeAnnotationsOutput is the result of the merge_annotations MCP tool.
type MergeAnnotationsOutput struct {
	Regions []annotate.Region    `json:"regions"`
	Dropped []annotate.Unlocated `json:"dropped"`
}

// ReviewDocumentInput is the input for the review_document MCP tool.
type ReviewDocumentInput struct {
	Text     string   `json:"text" jsonschema:"the document to review"`
	Name     string   `json:"name,omitempty" jsonschema:"document name shown in the report"`
	Personas []string `json:"personas,omitempty" jsonschema:"persona ids to run (default: configured personas)"`
	Provider string   `json:"provider,omitempty" jsonschema:"provider override: ollama, openai, lmstudio, anthropic, gemini"`
	Model    string   `json:"model,omitempty" jsonschema:"model override"`
}

// ReviewDocumentOutput is the result of the review_document MCP tool.
type ReviewDocumentOutput struct {
	Report *review.Report `json:"report"`
}

// ListPersonasInput is the input for the list_personas MCP tool.
type ListPersonasInput struct{}

// ListPersonasOutput is the result of the list_personas MCP tool.
type ListPersonasOutput struct {
	Personas []review.Persona `json:"personas"`
}
