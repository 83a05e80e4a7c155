package review

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/validate"
)

// Persona is a reviewer role.
type Persona struct {
	ID           string   `json:"id" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Focus        []string `json:"focus,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	// Model optionally pins the persona to "provider:model".
	Model string `json:"model,omitempty"`
}

// ReviewerID returns the merge engine identity of the persona.
func (p Persona) ReviewerID() annotate.ReviewerID {
	return annotate.ReviewerID(p.ID)
}

// PersonaPack is the on-disk format loaded by LoadPersonas.
type PersonaPack struct {
	Personas []Persona `json:"personas" validate:"dive"`
}

// DefaultPersonas returns the built-in roster.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			ID:    "editor",
			Name:  "Editor",
			Focus: []string{"clarity", "structure", "word choice"},
			Instructions: "Read as a professional copy editor. Flag sentences that are hard to parse, " +
				"repetitive or ambiguous, and suggest tighter phrasing.",
		},
		{
			ID:    "skeptic",
			Name:  "Skeptic",
			Focus: []string{"claims", "evidence", "logic"},
			Instructions: "Challenge every claim. Flag statements that lack evidence, numbers without " +
				"sources, and conclusions that do not follow from what precedes them.",
		},
		{
			ID:    "audience",
			Name:  "Target Reader",
			Focus: []string{"tone", "jargon", "engagement"},
			Instructions: "Read as the intended audience meeting this text for the first time. Flag " +
				"jargon, unexplained context and passages where you would lose interest.",
		},
		{
			ID:    "stakeholder",
			Name:  "Stakeholder",
			Focus: []string{"alignment", "completeness", "next steps"},
			Instructions: "Read as the decision maker this text is meant to inform. Flag missing " +
				"information, unclear asks and anything that does not serve the stated goal.",
		},
	}
}

// LoadPersonas loads a persona pack from disk and merges it over the built-in
// roster. A persona whose ID matches a built-in replaces it in place; new IDs
// are appended in file order. An empty path returns the defaults.
func LoadPersonas(path string) ([]Persona, error) {
	if path == "" {
		return DefaultPersonas(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading personas file: %w", err)
	}
	var pack PersonaPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parsing personas file: %w", err)
	}
	if err := validate.Struct(pack); err != nil {
		_, msg := validate.FieldAndMessage(err)
		return nil, fmt.Errorf("invalid personas file: %s", msg)
	}
	return MergePersonas(DefaultPersonas(), pack.Personas), nil
}

// MergePersonas overlays custom onto base by ID, keeping base order.
func MergePersonas(base, custom []Persona) []Persona {
	out := make([]Persona, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.ID] = i
	}
	for _, p := range custom {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

// SelectPersonas returns the personas named by ids in roster order. Empty ids
// selects the whole roster.
func SelectPersonas(all []Persona, ids []string) ([]Persona, error) {
	if len(ids) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if FindPersona(all, id) == nil {
			return nil, fmt.Errorf("unknown persona %q (available: %s)", id, strings.Join(PersonaIDs(all), ", "))
		}
		want[id] = true
	}
	var out []Persona
	for _, p := range all {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no personas selected")
	}
	return out, nil
}

// FindPersona returns the persona with id, or nil.
func FindPersona(all []Persona, id string) *Persona {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}

// PersonaIDs returns the IDs of all in order.
func PersonaIDs(all []Persona) []string {
	ids := make([]string, len(all))
	for i, p := range all {
		ids[i] = p.ID
	}
	return ids
}
