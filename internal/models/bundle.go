// ABOUTME: CharacterBundle groups every entity needed to start a conversation
// ABOUTME: Imported from JSON, YAML or TOML files and handed to the orchestrator on create
package models

import (
	"errors"
	"strings"
)

// CharacterBundle is a complete character definition
type CharacterBundle struct {
	ID         string           `json:"id,omitempty" yaml:"id,omitempty" toml:"id"`
	RoleCard   RoleCard         `json:"role_card" yaml:"role_card" toml:"role_card"`
	WorldBook  *WorldBook       `json:"world_book,omitempty" yaml:"world_book,omitempty" toml:"world_book"`
	Preset     *Preset          `json:"preset,omitempty" yaml:"preset,omitempty" toml:"preset"`
	AuthorNote *AuthorNote      `json:"author_note,omitempty" yaml:"author_note,omitempty" toml:"author_note"`
	Persona    *PersonaOverride `json:"persona,omitempty" yaml:"persona,omitempty" toml:"persona"`
}

// Validate checks the bundle carries a usable role card
func (b *CharacterBundle) Validate() error {
	if b == nil {
		return errors.New("bundle is nil")
	}
	if strings.TrimSpace(b.RoleCard.Name) == "" {
		return errors.New("role_card.name is required")
	}
	return nil
}
