package review

import (
	"fmt"
	"strings"

	"github.com/dshills/marginalia/internal/feedback"
)

const systemPromptText = `You are %s, one of several independent reviewers giving feedback on a document.

%s

Rules:
1. Quote every snippet EXACTLY as it appears in the document, character for character. Do not paraphrase, fix typos or change punctuation inside a snippet.
2. Keep snippets short: a phrase or a sentence, never a whole paragraph.
3. Every snippet must have one concrete, actionable comment.
4. Score the document from 0 to 100 on each criterion: %s.
5. Put observations about the document as a whole in generalComments.

You MUST respond with ONLY a JSON object. No markdown, no explanation, no preamble.

The object must match this JSON schema:
%s

Example:
{
  "scores": {"clarity": 72, "tone": 85, "alignment": 60, "efficiency": 70, "completeness": 55},
  "snippetFeedback": [
    {"snippet": "exact text from the document", "comment": "What to change and why"}
  ],
  "generalComments": ["Overall observation"]
}

If you have no snippet comments, use an empty array for snippetFeedback.`

// SystemPrompt returns the system prompt for persona p.
func SystemPrompt(p Persona, maxComments int) string {
	var role strings.Builder
	if p.Instructions != "" {
		role.WriteString(p.Instructions)
	}
	if len(p.Focus) > 0 {
		if role.Len() > 0 {
			role.WriteString("\n\n")
		}
		fmt.Fprintf(&role, "Focus areas: %s.", strings.Join(p.Focus, ", "))
	}
	if maxComments > 0 {
		if role.Len() > 0 {
			role.WriteString("\n")
		}
		fmt.Fprintf(&role, "Return at most %d snippet comments, most important first.", maxComments)
	}

	name := p.Name
	if name == "" {
		name = p.ID
	}
	return fmt.Sprintf(systemPromptText,
		"the "+name,
		role.String(),
		strings.Join(feedback.Criteria(), ", "),
		string(feedback.Schema()),
	)
}

// BuildUserPrompt wraps the document for review.
func BuildUserPrompt(document string) string {
	var b strings.Builder
	b.WriteString("Review the following document.\n")
	b.WriteString("\n--- BEGIN DOCUMENT ---\n")
	b.WriteString(document)
	b.WriteString("\n--- END DOCUMENT ---\n")
	return b.String()
}

// RepairPrompt asks the model to fix a response that failed validation.
func RepairPrompt(err error, previous string) string {
	return fmt.Sprintf(
		"Your previous response was not valid. The error was: %s\n\n"+
			"Please fix it and respond with ONLY a valid JSON object matching the schema.\n\n"+
			"Your previous response was:\n%s",
		err.Error(), previous,
	)
}
