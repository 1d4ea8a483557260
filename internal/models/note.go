// ABOUTME: AuthorNote and PersonaOverride are the per-conversation prompt fragments
// ABOUTME: that the extractor turns into dynamic entries alongside world entries
package models

// AuthorNote is a free-form note injected near the end of the chat history
type AuthorNote struct {
	Text           string `json:"text" yaml:"text" toml:"text"`
	Position       int    `json:"position,omitempty" yaml:"position,omitempty" toml:"position"`
	InjectionDepth int    `json:"injection_depth,omitempty" yaml:"injection_depth,omitempty" toml:"injection_depth"`
	Role           string `json:"role,omitempty" yaml:"role,omitempty" toml:"role"`
	Disabled       bool   `json:"disabled,omitempty" yaml:"disabled,omitempty" toml:"disabled"`
}

// Active reports whether the note should be emitted
func (n *AuthorNote) Active() bool {
	return n != nil && !n.Disabled && n.Text != ""
}

// PersonaDefaultName labels a persona entry with no comment
const PersonaDefaultName = "Persona"

// PersonaOverride is the user's own persona, either global or per character
type PersonaOverride struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Global   bool   `json:"global" yaml:"global" toml:"global"`
	Comment  string `json:"comment,omitempty" yaml:"comment,omitempty" toml:"comment"`
	Content  string `json:"content" yaml:"content" toml:"content"`
	Position int    `json:"position,omitempty" yaml:"position,omitempty" toml:"position"`
	Depth    int    `json:"depth,omitempty" yaml:"depth,omitempty" toml:"depth"`
}
