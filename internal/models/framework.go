// ABOUTME: Framework is the cached static prompt skeleton for a conversation
// ABOUTME: It holds resolved prompt blocks plus exactly one chat-history slot
package models

import "errors"

// ErrNoChatSlot is returned when a framework has no chat-history slot to patch
var ErrNoChatSlot = errors.New("framework has no chat history slot")

// FrameworkSlot is one resolved block of the prompt skeleton
type FrameworkSlot struct {
	Name          string       `json:"name"`
	Role          Role         `json:"role"`
	Identifier    string       `json:"identifier"`
	Content       string       `json:"content,omitempty"`
	IsChatHistory bool         `json:"is_chat_history,omitempty"`
	History       *ChatHistory `json:"history,omitempty"`
}

// Framework is the ordered list of slots
type Framework struct {
	Slots []FrameworkSlot `json:"slots"`
}

// ChatSlotIndex returns the index of the chat-history slot, or -1
func (f *Framework) ChatSlotIndex() int {
	if f == nil {
		return -1
	}
	for i, s := range f.Slots {
		if s.IsChatHistory {
			return i
		}
	}
	return -1
}

// ChatIdentifier returns the identifier shared with the chat history
func (f *Framework) ChatIdentifier() string {
	if i := f.ChatSlotIndex(); i >= 0 {
		return f.Slots[i].Identifier
	}
	return IdentifierChatHistory
}

// PatchHistory replaces the chat-history slot's content with a copy of history
func (f *Framework) PatchHistory(history *ChatHistory) error {
	i := f.ChatSlotIndex()
	if i < 0 {
		return ErrNoChatSlot
	}
	f.Slots[i].History = history.Clone()
	return nil
}
