// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Output formatting, index parsing and transcript rendering
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/models"
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		mins := int(diff.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	} else if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%dh ago", hours)
	} else if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("2006-01-02")
}

// parseIndex parses a 1-based AI message index argument
func parseIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("index must be an integer, got %q", arg)
	}
	if err := validatePositiveInt(n, "index"); err != nil {
		return 0, err
	}
	return n, nil
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// printTranscript renders messages as speaker-prefixed lines
func printTranscript(w io.Writer, charName string, messages []core.Message) {
	for _, m := range messages {
		switch {
		case m.Summary:
			fmt.Fprintf(w, "[summary] %s\n\n", m.Text)
		case m.Role == models.RoleModel && m.Index > 0:
			fmt.Fprintf(w, "[%d] %s: %s\n\n", m.Index, charName, m.Text)
		case m.Role == models.RoleModel:
			fmt.Fprintf(w, "%s: %s\n\n", charName, m.Text)
		default:
			fmt.Fprintf(w, "You: %s\n\n", m.Text)
		}
	}
}
