// ABOUTME: RoleCard describes the character a conversation is played against
// ABOUTME: Carries the persona fields plus the documented extensions record (regex scripts)
package models

import "strings"

// Default values applied when a role card is incomplete
const (
	DefaultCharacterName = "Unnamed Character"
	DefaultFirstMessage  = "Hello!"
)

// Regex script placements
const (
	PlacementUserInput = 1
	PlacementAIOutput  = 2
)

// RoleCard holds the static character definition
type RoleCard struct {
	Name        string    `json:"name" yaml:"name" toml:"name"`
	FirstMes    string    `json:"first_mes" yaml:"first_mes" toml:"first_mes"`
	Description string    `json:"description" yaml:"description" toml:"description"`
	Personality string    `json:"personality" yaml:"personality" toml:"personality"`
	Scenario    string    `json:"scenario" yaml:"scenario" toml:"scenario"`
	MesExample  string    `json:"mes_example" yaml:"mes_example" toml:"mes_example"`
	Background  string    `json:"background,omitempty" yaml:"background,omitempty" toml:"background"`
	Data        *CardData `json:"data,omitempty" yaml:"data,omitempty" toml:"data"`
}

// CardData is the single extension namespace a role card may carry
type CardData struct {
	Extensions Extensions `json:"extensions" yaml:"extensions" toml:"extensions"`
}

// Extensions holds optional per-character behavior
type Extensions struct {
	RegexScripts []RegexScript `json:"regex_scripts,omitempty" yaml:"regex_scripts,omitempty" toml:"regex_scripts"`
}

// RegexScript rewrites user input or model output before it is used
type RegexScript struct {
	ScriptName    string `json:"scriptName" yaml:"scriptName" toml:"scriptName"`
	FindRegex     string `json:"findRegex" yaml:"findRegex" toml:"findRegex"`
	ReplaceString string `json:"replaceString" yaml:"replaceString" toml:"replaceString"`
	Placement     []int  `json:"placement" yaml:"placement" toml:"placement"`
	Disabled      bool   `json:"disabled,omitempty" yaml:"disabled,omitempty" toml:"disabled"`
}

// AppliesTo reports whether the script runs for the given placement
func (s RegexScript) AppliesTo(placement int) bool {
	if s.Disabled || strings.TrimSpace(s.FindRegex) == "" {
		return false
	}
	for _, p := range s.Placement {
		if p == placement {
			return true
		}
	}
	return false
}

// WithDefaults returns a copy with missing required fields filled in
func (r *RoleCard) WithDefaults() RoleCard {
	var out RoleCard
	if r != nil {
		out = *r
	}
	if strings.TrimSpace(out.Name) == "" {
		out.Name = DefaultCharacterName
	}
	if strings.TrimSpace(out.FirstMes) == "" {
		out.FirstMes = DefaultFirstMessage
	}
	return out
}

// Scripts returns the role card's regex scripts, or nil
func (r *RoleCard) Scripts() []RegexScript {
	if r == nil || r.Data == nil {
		return nil
	}
	return r.Data.Extensions.RegexScripts
}
