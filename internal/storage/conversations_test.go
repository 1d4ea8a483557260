// ABOUTME: Tests for the conversation repository over the in-memory blob store
// ABOUTME: Covers missing-entity semantics, idempotent delete and conversation listing
package storage

import (
	"errors"
	"testing"

	"github.com/harper/roleplay-core/internal/models"
)

func TestMemoryStore_Basics(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	value := []byte("v")
	if err := s.Set("a_history", value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'x'

	got, err := s.Get("a_history")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want stored copy %q", got, "v")
	}

	ok, _ := s.Exists("a_history")
	if !ok {
		t.Error("Exists() = false, want true")
	}

	if err := s.Delete("a_history"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete("a_history"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestConversations_MissingEntities(t *testing.T) {
	c := NewConversations(NewMemoryStore())

	card, err := c.LoadRoleCard("conv")
	if err != nil || card != nil {
		t.Errorf("LoadRoleCard() = %v, %v; want nil, nil", card, err)
	}

	history, err := c.LoadHistory("conv")
	if err != nil || history != nil {
		t.Errorf("LoadHistory() = %v, %v; want nil, nil", history, err)
	}

	book, err := c.LoadWorldBook("conv")
	if err != nil {
		t.Fatalf("LoadWorldBook() error = %v", err)
	}
	if book.Entries == nil || len(book.Entries) != 0 {
		t.Errorf("LoadWorldBook() = %+v, want empty entries", book)
	}

	preset, err := c.LoadPreset("conv")
	if err != nil || preset == nil {
		t.Errorf("LoadPreset() = %v, %v", preset, err)
	}

	persona, err := c.GlobalPersona()
	if err != nil || persona != nil {
		t.Errorf("GlobalPersona() = %v, %v", persona, err)
	}
}

func TestConversations_RoundTripAndDelete(t *testing.T) {
	store := NewMemoryStore()
	c := NewConversations(store)

	if err := c.SaveRoleCard("conv", &models.RoleCard{Name: "Ayla", FirstMes: "Hi!"}); err != nil {
		t.Fatalf("SaveRoleCard() error = %v", err)
	}
	h := models.NewChatHistory("chatHistory")
	h.Parts = append(h.Parts, models.NewTextEntry(models.RoleModel, "Hi!"))
	if err := c.SaveHistory("conv", h); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}
	if err := c.SaveAuthorNote("conv", &models.AuthorNote{Text: "n", Position: 2}); err != nil {
		t.Fatalf("SaveAuthorNote() error = %v", err)
	}
	if err := c.SavePersona("conv", &models.PersonaOverride{Enabled: true, Content: "bard"}); err != nil {
		t.Fatalf("SavePersona() error = %v", err)
	}
	if err := c.SavePersona("", &models.PersonaOverride{Enabled: true, Global: true, Content: "knight"}); err != nil {
		t.Fatalf("SavePersona(global) error = %v", err)
	}

	card, err := c.LoadRoleCard("conv")
	if err != nil || card.Name != "Ayla" {
		t.Errorf("LoadRoleCard() = %+v, %v", card, err)
	}
	loaded, err := c.LoadHistory("conv")
	if err != nil || len(loaded.Parts) != 1 || loaded.Parts[0].Text() != "Hi!" {
		t.Errorf("LoadHistory() = %+v, %v", loaded, err)
	}

	ids, err := c.List()
	if err != nil || len(ids) != 1 || ids[0] != "conv" {
		t.Errorf("List() = %v, %v", ids, err)
	}

	if err := c.Delete("conv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete("conv"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}

	keys, _ := store.Keys("conv")
	if len(keys) != 0 {
		t.Errorf("keys after Delete() = %v", keys)
	}
	if ok, _ := store.Exists(GlobalPersonaKey); !ok {
		t.Error("Delete() must not remove the global persona")
	}
}

func TestConversations_GlobalPreset(t *testing.T) {
	c := NewConversations(NewMemoryStore())

	p, err := c.LoadGlobalPreset()
	if err != nil || p != nil {
		t.Errorf("LoadGlobalPreset() = %v, %v", p, err)
	}

	if err := c.SaveGlobalPreset(&models.Preset{Prompts: []models.PromptSlot{{Identifier: "main"}}}); err != nil {
		t.Fatalf("SaveGlobalPreset() error = %v", err)
	}
	p, err = c.LoadGlobalPreset()
	if err != nil || len(p.Prompts) != 1 {
		t.Errorf("LoadGlobalPreset() = %+v, %v", p, err)
	}

	if err := c.SaveGlobalPreset(nil); err != nil {
		t.Fatalf("SaveGlobalPreset(nil) error = %v", err)
	}
	if p, _ := c.LoadGlobalPreset(); p != nil {
		t.Error("global preset should be removed")
	}
}

func TestKey(t *testing.T) {
	if got := Key("abc", SuffixHistory); got != "abc_history" {
		t.Errorf("Key() = %q", got)
	}
}
