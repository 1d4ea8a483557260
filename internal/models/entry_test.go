// ABOUTME: Tests for chat entries, dynamic entry conversion and history cloning
// ABOUTME: Verifies role normalization and that clones do not share backing arrays
package models

import "testing"

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"assistant", RoleModel},
		{"model", RoleModel},
		{"MODEL", RoleModel},
		{"system", RoleSystem},
		{"user", RoleUser},
		{"", RoleUser},
		{"narrator", RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeRole(tt.in); got != tt.want {
				t.Errorf("NormalizeRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChatMessageEntry_Text(t *testing.T) {
	e := ChatMessageEntry{Role: RoleUser}
	if e.Text() != "" {
		t.Errorf("Text() = %q, want empty", e.Text())
	}

	e.Parts = []Part{{Text: "a"}, {Text: "b"}}
	if e.Text() != "a\nb" {
		t.Errorf("Text() = %q, want %q", e.Text(), "a\nb")
	}

	e.SetText("c")
	if len(e.Parts) != 1 || e.Text() != "c" {
		t.Errorf("SetText() parts = %+v", e.Parts)
	}
}

func TestDynamicEntry_Entry(t *testing.T) {
	d := DynamicEntry{
		Role:           RoleSystem,
		Text:           "lore",
		Name:           "dragons",
		Position:       PositionAtDepth,
		InjectionDepth: 2,
		Key:            []string{"dragon"},
	}

	e := d.Entry()
	if !e.IsDEntry {
		t.Error("Entry() should be flagged as dynamic")
	}
	if e.Text() != "lore" || e.InjectionDepth != 2 || e.Position != PositionAtDepth {
		t.Errorf("Entry() = %+v", e)
	}

	e.Key[0] = "changed"
	if d.Key[0] != "dragon" {
		t.Error("Entry() should copy keys")
	}
}

func TestChatHistory_Clone(t *testing.T) {
	h := NewChatHistory("")
	if h.Identifier != IdentifierChatHistory {
		t.Errorf("Identifier = %q, want %q", h.Identifier, IdentifierChatHistory)
	}
	h.Parts = append(h.Parts, NewTextEntry(RoleUser, "hello"))

	c := h.Clone()
	c.Parts[0].SetText("bye")
	c.Parts = append(c.Parts, NewTextEntry(RoleModel, "x"))

	if h.Parts[0].Text() != "hello" {
		t.Errorf("original mutated: %q", h.Parts[0].Text())
	}
	if len(h.Parts) != 1 {
		t.Errorf("len(original) = %d, want 1", len(h.Parts))
	}

	var nilHistory *ChatHistory
	if nilHistory.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestChatHistory_FirstMessage(t *testing.T) {
	h := NewChatHistory("x")
	if _, ok := h.FirstMessage(); ok {
		t.Error("FirstMessage() found on empty history")
	}

	first := NewTextEntry(RoleModel, "Hi!")
	first.IsFirstMes = true
	h.Parts = append(h.Parts, first, NewTextEntry(RoleUser, "yo"))

	got, ok := h.FirstMessage()
	if !ok || got.Text() != "Hi!" {
		t.Errorf("FirstMessage() = %+v, %v", got, ok)
	}
}

func TestFramework_PatchHistory(t *testing.T) {
	f := &Framework{Slots: []FrameworkSlot{{Name: "info", Identifier: "charDescription"}}}
	if err := f.PatchHistory(NewChatHistory("")); err != ErrNoChatSlot {
		t.Errorf("PatchHistory() error = %v, want ErrNoChatSlot", err)
	}

	f.Slots = append(f.Slots, FrameworkSlot{Name: ChatHistoryName, Identifier: "hist", IsChatHistory: true})
	if f.ChatIdentifier() != "hist" {
		t.Errorf("ChatIdentifier() = %q", f.ChatIdentifier())
	}

	h := NewChatHistory("hist")
	h.Parts = append(h.Parts, NewTextEntry(RoleUser, "a"))
	if err := f.PatchHistory(h); err != nil {
		t.Fatalf("PatchHistory() error = %v", err)
	}
	h.Parts[0].SetText("b")
	if f.Slots[1].History.Parts[0].Text() != "a" {
		t.Error("PatchHistory() should store a copy")
	}
}
