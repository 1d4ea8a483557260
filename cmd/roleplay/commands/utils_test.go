// ABOUTME: Tests for shared utility functions used by CLI commands
// ABOUTME: Verifies truncate, formatTime, index parsing and transcript rendering

package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/models"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"very short maxLen", "hello", 2, "he"},
		{"empty string", "", 10, ""},
		{"runes are not split", "你好世界朋友", 5, "你好..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-2 * 24 * time.Hour), "2d ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTime(tt.t); got != tt.want {
				t.Errorf("formatTime() = %q, want %q", got, tt.want)
			}
		})
	}

	old := now.Add(-30 * 24 * time.Hour)
	if got := formatTime(old); got != old.Format("2006-01-02") {
		t.Errorf("formatTime(old) = %q, want date", got)
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"12", 12, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"two", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseIndex(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIndex(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseIndex(%q) = %d, want %d", tt.arg, got, tt.want)
			}
		})
	}
}

func TestPrintTranscript(t *testing.T) {
	var buf bytes.Buffer
	printTranscript(&buf, "Ayla", []core.Message{
		{Role: models.RoleModel, Text: "Greetings.", FirstMes: true},
		{Role: models.RoleUser, Text: "hello"},
		{Role: models.RoleModel, Text: "Well met.", Index: 1},
		{Role: models.RoleModel, Text: "Earlier they met.", Summary: true},
	})

	out := buf.String()
	for _, want := range []string{
		"Ayla: Greetings.",
		"You: hello",
		"[1] Ayla: Well met.",
		"[summary] Earlier they met.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestSplitCells(t *testing.T) {
	got := splitCells(" rope , 1 ")
	if len(got) != 2 || got[0] != "rope" || got[1] != "1" {
		t.Errorf("splitCells() = %q", got)
	}
}
