// ABOUTME: Preset describes the ordered prompt slots that make up a conversation framework
// ABOUTME: Slots with injection_position 1 are chat-relative and become dynamic entries
package models

// Well-known slot identifiers and names
const (
	IdentifierCharDescription  = "charDescription"
	IdentifierCharPersonality  = "charPersonality"
	IdentifierScenario         = "scenario"
	IdentifierDialogueExamples = "dialogueExamples"
	IdentifierChatHistory      = "chatHistory"

	ChatHistoryName   = "Chat History"
	CharacterInfoName = "Character Info"
)

// InjectionChatRelative marks a preset prompt as a dynamic entry
const InjectionChatRelative = 1

// PromptSlot is one entry in a preset
type PromptSlot struct {
	Name              string `json:"name" yaml:"name" toml:"name"`
	Content           string `json:"content,omitempty" yaml:"content,omitempty" toml:"content"`
	Enable            *bool  `json:"enable,omitempty" yaml:"enable,omitempty" toml:"enable"`
	Identifier        string `json:"identifier" yaml:"identifier" toml:"identifier"`
	Role              string `json:"role,omitempty" yaml:"role,omitempty" toml:"role"`
	InjectionPosition int    `json:"injection_position,omitempty" yaml:"injection_position,omitempty" toml:"injection_position"`
	InjectionDepth    int    `json:"injection_depth,omitempty" yaml:"injection_depth,omitempty" toml:"injection_depth"`
}

// Enabled reports whether the slot is on; a missing flag means enabled
func (p PromptSlot) Enabled() bool {
	return p.Enable == nil || *p.Enable
}

// OrderItem references a prompt slot by identifier
type OrderItem struct {
	Identifier string `json:"identifier" yaml:"identifier" toml:"identifier"`
	Enabled    bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
}

// PromptOrder lists slot identifiers in output order
type PromptOrder struct {
	Order []OrderItem `json:"order" yaml:"order" toml:"order"`
}

// Preset is the prompt layout for a character
type Preset struct {
	Prompts     []PromptSlot  `json:"prompts" yaml:"prompts" toml:"prompts"`
	PromptOrder []PromptOrder `json:"prompt_order" yaml:"prompt_order" toml:"prompt_order"`
}

// EnabledOrder returns the identifiers of the first prompt order whose items are enabled
func (p *Preset) EnabledOrder() []string {
	if p == nil || len(p.PromptOrder) == 0 {
		return nil
	}
	var ids []string
	for _, item := range p.PromptOrder[0].Order {
		if item.Enabled {
			ids = append(ids, item.Identifier)
		}
	}
	return ids
}

// Lookup finds a prompt slot by identifier
func (p *Preset) Lookup(identifier string) (PromptSlot, bool) {
	if p == nil {
		return PromptSlot{}, false
	}
	for _, slot := range p.Prompts {
		if slot.Identifier == identifier {
			return slot, true
		}
	}
	return PromptSlot{}, false
}

// BoolPtr is a helper for optional flags
func BoolPtr(b bool) *bool {
	return &b
}
