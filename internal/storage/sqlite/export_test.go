// ABOUTME: Tests for conversation export
// ABOUTME: Verifies YAML and Markdown output and that dynamic entries are skipped
package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/harper/roleplay-core/internal/models"
	"github.com/harper/roleplay-core/internal/storage"
)

func seedConversation(t *testing.T, s *Storage) {
	t.Helper()
	conversations := storage.NewConversations(s.Blobs())

	if err := conversations.SaveRoleCard("conv1", &models.RoleCard{Name: "Ayla", Description: "A ranger"}); err != nil {
		t.Fatalf("SaveRoleCard() error = %v", err)
	}

	history := models.NewChatHistory("")
	first := models.NewTextEntry(models.RoleModel, "Hi!")
	first.IsFirstMes = true
	history.Parts = append(history.Parts,
		first,
		models.DynamicEntry{Role: models.RoleUser, Text: "lore", Position: 4, Constant: true}.Entry(),
		models.NewTextEntry(models.RoleUser, "Where is the dragon?"),
		models.NewTextEntry(models.RoleModel, "North."),
	)
	if err := conversations.SaveHistory("conv1", history); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}

	m, _ := models.NewMemory("conv1", "conv1", "The dragon sleeps north")
	if err := s.Memories().Save(m); err != nil {
		t.Fatalf("Save memory error = %v", err)
	}
	table := models.FactTable{Name: "inventory", Headers: []string{"item"}, Rows: [][]string{{"sword"}}}
	if err := s.Facts().Save("conv1", "", table); err != nil {
		t.Fatalf("Save table error = %v", err)
	}
}

func TestExport(t *testing.T) {
	store, err := NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	seedConversation(t, store)

	data, err := store.Export(context.Background(), "conv1")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if data.Tool != "roleplay" {
		t.Errorf("Tool = %v, want roleplay", data.Tool)
	}
	if data.Character == nil || data.Character.Name != "Ayla" {
		t.Errorf("Character = %+v", data.Character)
	}
	if len(data.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3 (dynamic entry skipped)", len(data.Messages))
	}
	if !data.Messages[0].FirstMes {
		t.Error("first message flag lost")
	}
	for _, msg := range data.Messages {
		if msg.Text == "lore" {
			t.Error("dynamic entry should not be exported")
		}
	}
	if len(data.Memories) != 1 {
		t.Errorf("len(Memories) = %d, want 1", len(data.Memories))
	}
	if len(data.Tables) != 1 || data.Tables[0].Name != "inventory" {
		t.Errorf("Tables = %+v", data.Tables)
	}
}

func TestExportMissingConversation(t *testing.T) {
	store, err := NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.Export(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Export() error = %v, want ErrNotFound", err)
	}
}

func TestExportToYAML(t *testing.T) {
	store, err := NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	seedConversation(t, store)

	outputPath := filepath.Join(t.TempDir(), "nested", "export.yaml")
	if err := store.ExportToYAML(context.Background(), "conv1", outputPath); err != nil {
		t.Fatalf("ExportToYAML() error = %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}

	var parsed ExportData
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		t.Fatalf("Failed to parse YAML: %v", err)
	}
	if parsed.ConversationID != "conv1" {
		t.Errorf("ConversationID = %v, want conv1", parsed.ConversationID)
	}
	if len(parsed.Messages) != 3 {
		t.Errorf("len(Messages) = %d, want 3", len(parsed.Messages))
	}
}

func TestExportToMarkdown(t *testing.T) {
	store, err := NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	seedConversation(t, store)

	outputPath := filepath.Join(t.TempDir(), "export.md")
	if err := store.ExportToMarkdown(context.Background(), "conv1", outputPath); err != nil {
		t.Fatalf("ExportToMarkdown() error = %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	text := string(content)

	for _, want := range []string{"# Ayla", "**User:** Where is the dragon?", "**Ayla:** North.", "## Memories"} {
		if !strings.Contains(text, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
}
