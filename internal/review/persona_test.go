package review

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultPersonas(t *testing.T) {
	ps := DefaultPersonas()
	assert.Equal(t, []string{"editor", "skeptic", "audience", "stakeholder"}, PersonaIDs(ps))
	for _, p := range ps {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Instructions)
		assert.Empty(t, p.Model)
	}

	ps[0].Name = "changed"
	assert.Equal(t, "Editor", DefaultPersonas()[0].Name, "each call returns a fresh roster")
}

func TestLoadPersonas_EmptyPath(t *testing.T) {
	ps, err := LoadPersonas("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPersonas(), ps)
}

func TestLoadPersonas_ReplaceAndExtend(t *testing.T) {
	path := writeFile(t, "personas.json", `{
		"personas": [
			{"id": "legal", "name": "Counsel", "focus": ["liability"], "model": "openai:gpt-4o"},
			{"id": "skeptic", "name": "Hard Skeptic", "instructions": "Trust nothing."}
		]
	}`)

	ps, err := LoadPersonas(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "skeptic", "audience", "stakeholder", "legal"}, PersonaIDs(ps))
	assert.Equal(t, "Hard Skeptic", ps[1].Name)
	assert.Equal(t, "Trust nothing.", ps[1].Instructions)
	assert.Equal(t, "openai:gpt-4o", ps[4].Model)
}

func TestLoadPersonas_Errors(t *testing.T) {
	_, err := LoadPersonas(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "reading personas file")

	_, err = LoadPersonas(writeFile(t, "bad.json", `{"personas": [`))
	assert.ErrorContains(t, err, "parsing personas file")

	_, err = LoadPersonas(writeFile(t, "noid.json", `{"personas": [{"name": "Nameless"}]}`))
	require.Error(t, err)
	assert.Equal(t, "invalid personas file: personas[0].id is required", err.Error())
}

func TestSelectPersonas(t *testing.T) {
	all := DefaultPersonas()

	ps, err := SelectPersonas(all, nil)
	require.NoError(t, err)
	assert.Len(t, ps, 4)

	ps, err = SelectPersonas(all, []string{"stakeholder", " editor "})
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "stakeholder"}, PersonaIDs(ps))

	_, err = SelectPersonas(all, []string{"editor", "poet"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), `unknown persona "poet"`))

	_, err = SelectPersonas(all, []string{" "})
	assert.EqualError(t, err, "no personas selected")
}

func TestFindPersona(t *testing.T) {
	all := DefaultPersonas()
	require.NotNil(t, FindPersona(all, "audience"))
	assert.Equal(t, "Target Reader", FindPersona(all, "audience").Name)
	assert.Nil(t, FindPersona(all, "nobody"))
}

func TestSystemPrompt(t *testing.T) {
	p := FindPersona(DefaultPersonas(), "skeptic")
	prompt := SystemPrompt(*p, 7)

	assert.True(t, strings.HasPrefix(prompt, "You are the Skeptic,"))
	assert.Contains(t, prompt, p.Instructions)
	assert.Contains(t, prompt, "Focus areas: claims, evidence, logic.")
	assert.Contains(t, prompt, "at most 7 snippet comments")
	assert.Contains(t, prompt, "clarity, tone, alignment, efficiency, completeness")
	assert.Contains(t, prompt, `"snippetFeedback"`)

	bare := SystemPrompt(Persona{ID: "x"}, 0)
	assert.True(t, strings.HasPrefix(bare, "You are the x,"))
	assert.NotContains(t, bare, "at most")
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := BuildUserPrompt("Hello.")
	assert.Contains(t, prompt, "--- BEGIN DOCUMENT ---\nHello.\n--- END DOCUMENT ---")
}
