// ABOUTME: Caller-facing view of a chat history without dynamic entries
// ABOUTME: Numbers AI messages the same way regenerate, edit and delete address them
package core

import "github.com/harper/roleplay-core/internal/models"

// Message is one visible turn of a conversation
type Message struct {
	Role      models.Role `json:"role" yaml:"role"`
	Text      string      `json:"text" yaml:"text"`
	Index     int         `json:"index,omitempty" yaml:"index,omitempty"`
	FirstMes  bool        `json:"first_mes,omitempty" yaml:"first_mes,omitempty"`
	Summary   bool        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Transcript lists the visible turns of h. AI replies carry their 1-based index;
// the first message and summaries carry none.
func Transcript(h *models.ChatHistory) []Message {
	if h == nil {
		return []Message{}
	}
	out := make([]Message, 0, len(h.Parts))
	n := 0
	for _, e := range h.Parts {
		if e.IsDEntry {
			continue
		}
		m := Message{
			Role:      e.Role,
			Text:      e.Text(),
			FirstMes:  e.IsFirstMes,
			Summary:   e.IsSummary,
			Timestamp: e.Timestamp,
		}
		if e.Role == models.RoleModel && !e.IsFirstMes && !e.IsSummary {
			n++
			m.Index = n
		}
		out = append(out, m)
	}
	return out
}
