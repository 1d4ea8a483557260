// ABOUTME: Chat history entries, dynamic entries, and the persisted ChatHistory
// ABOUTME: Dynamic entries share the entry shape so they can live inline in a history
package models

import (
	"strings"
	"time"
)

// Role is the speaker of a chat entry
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// NormalizeRole maps loose role names onto the three entry roles
func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "model", "assistant":
		return RoleModel
	case "system":
		return RoleSystem
	default:
		return RoleUser
	}
}

// Part is one text segment of an entry
type Part struct {
	Text string `json:"text" yaml:"text"`
}

// ChatMessageEntry is one item of a persisted chat history
type ChatMessageEntry struct {
	Role           Role     `json:"role" yaml:"role"`
	Parts          []Part   `json:"parts" yaml:"parts"`
	Name           string   `json:"name,omitempty" yaml:"name,omitempty"`
	IsDEntry       bool     `json:"is_d_entry,omitempty" yaml:"is_d_entry,omitempty"`
	IsFirstMes     bool     `json:"is_first_mes,omitempty" yaml:"is_first_mes,omitempty"`
	IsAuthorNote   bool     `json:"is_author_note,omitempty" yaml:"is_author_note,omitempty"`
	IsSummary      bool     `json:"is_summary,omitempty" yaml:"is_summary,omitempty"`
	Position       int      `json:"position,omitempty" yaml:"position,omitempty"`
	InjectionDepth int      `json:"injection_depth,omitempty" yaml:"injection_depth,omitempty"`
	Constant       bool     `json:"constant,omitempty" yaml:"constant,omitempty"`
	Key            []string `json:"key,omitempty" yaml:"key,omitempty"`
	Timestamp      int64    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// NewTextEntry creates a plain chat turn stamped with the current time
func NewTextEntry(role Role, text string) ChatMessageEntry {
	return ChatMessageEntry{
		Role:      role,
		Parts:     []Part{{Text: text}},
		Timestamp: time.Now().UnixMilli(),
	}
}

// Text returns the entry's text. Multi-part entries are joined with newlines.
func (e ChatMessageEntry) Text() string {
	switch len(e.Parts) {
	case 0:
		return ""
	case 1:
		return e.Parts[0].Text
	}
	texts := make([]string, 0, len(e.Parts))
	for _, p := range e.Parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n")
}

// SetText replaces the entry's parts with a single text part
func (e *ChatMessageEntry) SetText(text string) {
	e.Parts = []Part{{Text: text}}
}

// DynamicEntry is a prompt fragment injected by position and depth rules
type DynamicEntry struct {
	Role           Role     `json:"role"`
	Text           string   `json:"text"`
	Name           string   `json:"name,omitempty"`
	Position       int      `json:"position"`
	InjectionDepth int      `json:"injection_depth"`
	Constant       bool     `json:"constant"`
	Key            []string `json:"key,omitempty"`
	IsAuthorNote   bool     `json:"is_author_note,omitempty"`
}

// Entry converts the dynamic entry into an inline history entry
func (d DynamicEntry) Entry() ChatMessageEntry {
	var keys []string
	if len(d.Key) > 0 {
		keys = append(keys, d.Key...)
	}
	return ChatMessageEntry{
		Role:           d.Role,
		Parts:          []Part{{Text: d.Text}},
		Name:           d.Name,
		IsDEntry:       true,
		IsAuthorNote:   d.IsAuthorNote,
		Position:       d.Position,
		InjectionDepth: d.InjectionDepth,
		Constant:       d.Constant,
		Key:            keys,
	}
}

// ChatHistory is the persisted conversation for one conversation id
type ChatHistory struct {
	Name       string             `json:"name" yaml:"name"`
	Role       Role               `json:"role" yaml:"role"`
	Identifier string             `json:"identifier" yaml:"identifier"`
	Parts      []ChatMessageEntry `json:"parts" yaml:"parts"`
}

// NewChatHistory returns an empty history with the given identifier
func NewChatHistory(identifier string) *ChatHistory {
	if identifier == "" {
		identifier = IdentifierChatHistory
	}
	return &ChatHistory{
		Name:       ChatHistoryName,
		Role:       RoleSystem,
		Identifier: identifier,
		Parts:      []ChatMessageEntry{},
	}
}

// Clone returns a deep copy so callers can mutate a working copy
func (h *ChatHistory) Clone() *ChatHistory {
	if h == nil {
		return nil
	}
	out := *h
	out.Parts = CloneEntries(h.Parts)
	return &out
}

// CloneEntries deep-copies a slice of entries
func CloneEntries(entries []ChatMessageEntry) []ChatMessageEntry {
	out := make([]ChatMessageEntry, len(entries))
	for i, e := range entries {
		e.Parts = append([]Part(nil), e.Parts...)
		if e.Key != nil {
			e.Key = append([]string(nil), e.Key...)
		}
		out[i] = e
	}
	return out
}

// FirstMessage returns the seeded first message entry, if any
func (h *ChatHistory) FirstMessage() (ChatMessageEntry, bool) {
	if h == nil {
		return ChatMessageEntry{}, false
	}
	for _, e := range h.Parts {
		if e.IsFirstMes {
			return e, true
		}
	}
	return ChatMessageEntry{}, false
}
