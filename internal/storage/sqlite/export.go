// ABOUTME: Export functionality for a single conversation
// ABOUTME: Supports YAML and Markdown export formats; dynamic entries are never exported
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/roleplay-core/internal/models"
	"github.com/harper/roleplay-core/internal/storage"
)

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version        string             `yaml:"version" json:"version"`
	ExportedAt     string             `yaml:"exported_at" json:"exported_at"`
	Tool           string             `yaml:"tool" json:"tool"`
	ConversationID string             `yaml:"conversation_id" json:"conversation_id"`
	Character      *ExportCharacter   `yaml:"character,omitempty" json:"character,omitempty"`
	Messages       []ExportMessage    `yaml:"messages" json:"messages"`
	Memories       []ExportMemory     `yaml:"memories,omitempty" json:"memories,omitempty"`
	Tables         []models.FactTable `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// ExportCharacter represents the role card for export
type ExportCharacter struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Personality string `yaml:"personality,omitempty" json:"personality,omitempty"`
	Scenario    string `yaml:"scenario,omitempty" json:"scenario,omitempty"`
}

// ExportMessage represents one chat turn for export
type ExportMessage struct {
	Role      string `yaml:"role" json:"role"`
	Text      string `yaml:"text" json:"text"`
	FirstMes  bool   `yaml:"first_mes,omitempty" json:"first_mes,omitempty"`
	Summary   bool   `yaml:"summary,omitempty" json:"summary,omitempty"`
	Timestamp string `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
}

// ExportMemory represents a recall memory for export
type ExportMemory struct {
	ID        string `yaml:"id" json:"id"`
	Memory    string `yaml:"memory" json:"memory"`
	CreatedAt string `yaml:"created_at" json:"created_at"`
}

// Export collects everything stored for one conversation
func (s *Storage) Export(ctx context.Context, conversationID string) (*ExportData, error) {
	conversations := storage.NewConversations(s.source)

	history, err := conversations.LoadHistory(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if history == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, storage.ErrNotFound)
	}

	data := &ExportData{
		Version:        "1.0",
		ExportedAt:     time.Now().Format(time.RFC3339),
		Tool:           "roleplay",
		ConversationID: conversationID,
		Messages:       make([]ExportMessage, 0, len(history.Parts)),
	}

	card, err := conversations.LoadRoleCard(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role card: %w", err)
	}
	if card != nil {
		data.Character = &ExportCharacter{
			Name:        card.Name,
			Description: card.Description,
			Personality: card.Personality,
			Scenario:    card.Scenario,
		}
	}

	for _, entry := range history.Parts {
		if entry.IsDEntry {
			continue
		}
		msg := ExportMessage{
			Role:     string(entry.Role),
			Text:     entry.Text(),
			FirstMes: entry.IsFirstMes,
			Summary:  entry.IsSummary,
		}
		if entry.Timestamp > 0 {
			msg.Timestamp = time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC3339)
		}
		data.Messages = append(data.Messages, msg)
	}

	memories, err := s.memories.ListByCharacter(ctx, conversationID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	for _, m := range memories {
		data.Memories = append(data.Memories, ExportMemory{
			ID:        m.ID,
			Memory:    m.Text,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}

	tables, err := s.facts.GetCharacterTables(ctx, conversationID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fact tables: %w", err)
	}
	data.Tables = tables

	return data, nil
}

// ExportToYAML exports a conversation to a YAML file
func (s *Storage) ExportToYAML(ctx context.Context, conversationID, outputPath string) error {
	data, err := s.Export(ctx, conversationID)
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}

// ExportToMarkdown exports a conversation transcript to a Markdown file
func (s *Storage) ExportToMarkdown(ctx context.Context, conversationID, outputPath string) error {
	data, err := s.Export(ctx, conversationID)
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	name := conversationID
	if data.Character != nil && data.Character.Name != "" {
		name = data.Character.Name
	}

	_, _ = fmt.Fprintf(file, "# %s\n\n", name)
	_, _ = fmt.Fprintf(file, "Generated: %s\n\n", data.ExportedAt)

	for _, msg := range data.Messages {
		speaker := "User"
		if msg.Role == string(models.RoleModel) {
			speaker = name
		}
		if msg.Summary {
			speaker = "Summary"
		}
		_, _ = fmt.Fprintf(file, "**%s:** %s\n\n", speaker, msg.Text)
	}

	if len(data.Memories) > 0 {
		_, _ = fmt.Fprintln(file, "## Memories")
		_, _ = fmt.Fprintln(file)
		for _, m := range data.Memories {
			_, _ = fmt.Fprintf(file, "- %s\n", m.Memory)
		}
		_, _ = fmt.Fprintln(file)
	}

	return nil
}

func createOutput(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}
