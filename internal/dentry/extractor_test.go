// ABOUTME: Tests for dynamic entry extraction order, author note gating and persona overrides
// ABOUTME: Malformed persona records must be skipped without dropping other entries
package dentry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/roleplay-core/internal/models"
)

func TestExtract_Order(t *testing.T) {
	preset := &models.Preset{Prompts: []models.PromptSlot{
		{Name: "static", Identifier: "main", Content: "not dynamic"},
		{Name: "depth prompt", Identifier: "d", Content: "inject me", InjectionPosition: 1, InjectionDepth: 2, Role: "system"},
		{Name: "disabled", Identifier: "x", Content: "off", InjectionPosition: 1, Enable: models.BoolPtr(false)},
	}}
	world := &models.WorldBook{Entries: map[string]models.WorldEntry{
		"1": {Comment: "dragons", Content: "Dragons breathe fire", Key: []string{"dragon"}, Position: 4, Depth: 1},
		"2": {Comment: "before note", Content: "b", Position: 2, Constant: true},
		"3": {Comment: "description adjacent", Content: "ignored", Position: 0},
		"4": {Comment: "disabled", Content: "x", Position: 4, Disable: true},
	}}
	note := &models.AuthorNote{Text: "keep it short", Position: 3, InjectionDepth: 0}

	entries := Extract(preset, world, note, PersonaRecords{})

	require.Len(t, entries, 4)

	assert.Equal(t, "depth prompt", entries[0].Name)
	assert.Equal(t, models.RoleSystem, entries[0].Role)
	assert.Equal(t, models.PositionAtDepth, entries[0].Position)
	assert.Equal(t, 2, entries[0].InjectionDepth)
	assert.True(t, entries[0].Constant)

	assert.True(t, entries[1].IsAuthorNote)
	assert.Equal(t, models.PositionAfterAuthorNote, entries[1].Position)
	assert.Equal(t, models.RoleUser, entries[1].Role)

	assert.Equal(t, "dragons", entries[2].Name)
	assert.False(t, entries[2].Constant)
	assert.Equal(t, []string{"dragon"}, entries[2].Key)

	assert.Equal(t, "before note", entries[3].Name)
}

func TestExtract_NoAuthorNoteSkipsNoteRelativeEntries(t *testing.T) {
	world := &models.WorldBook{Entries: map[string]models.WorldEntry{
		"1": {Content: "b", Position: 2, Constant: true},
		"2": {Content: "c", Position: 3, Constant: true},
		"3": {Content: "d", Position: 4, Constant: true},
	}}

	entries := Extract(nil, world, &models.AuthorNote{Text: "x", Disabled: true}, PersonaRecords{})

	require.Len(t, entries, 1)
	assert.Equal(t, "d", entries[0].Text)
	assert.Equal(t, "3", entries[0].Name)
}

func TestExtract_Personas(t *testing.T) {
	tests := []struct {
		name      string
		records   PersonaRecords
		wantTexts []string
	}{
		{
			name:      "none",
			records:   PersonaRecords{},
			wantTexts: nil,
		},
		{
			name: "global and character",
			records: PersonaRecords{
				Global:    []byte(`{"enabled":true,"global":true,"content":"a tall knight"}`),
				Character: []byte(`{"enabled":true,"content":"a bard","comment":"bard","depth":3}`),
			},
			wantTexts: []string{"a tall knight", "a bard"},
		},
		{
			name: "character marked global is ignored",
			records: PersonaRecords{
				Character: []byte(`{"enabled":true,"global":true,"content":"a bard"}`),
			},
			wantTexts: nil,
		},
		{
			name: "disabled global",
			records: PersonaRecords{
				Global:    []byte(`{"enabled":false,"content":"x"}`),
				Character: []byte(`{"enabled":true,"content":"a bard"}`),
			},
			wantTexts: []string{"a bard"},
		},
		{
			name: "malformed global skipped",
			records: PersonaRecords{
				Global:    []byte(`{not json`),
				Character: []byte(`{"enabled":true,"content":"a bard"}`),
			},
			wantTexts: []string{"a bard"},
		},
		{
			name: "empty content skipped",
			records: PersonaRecords{
				Global:    []byte(`{"enabled":true,"content":"   "}`),
				Character: []byte(`{"enabled":true,"content":"a bard"}`),
			},
			wantTexts: []string{"a bard"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := Extract(nil, nil, nil, tt.records)
			require.Len(t, entries, len(tt.wantTexts))
			for i, want := range tt.wantTexts {
				e := entries[i]
				assert.True(t, strings.Contains(e.Text, "<{{user}}'s_info>"+want+"</{{user}}'s_info>"), e.Text)
				assert.True(t, e.Constant)
				assert.Equal(t, models.PositionAtDepth, e.Position)
				assert.Equal(t, models.RoleUser, e.Role)
			}
		})
	}
}

func TestExtract_PersonaDefaults(t *testing.T) {
	entries := Extract(nil, nil, nil, PersonaRecords{
		Character: []byte(`{"enabled":true,"content":"a bard","comment":"bard","depth":3}`),
		Global:    []byte(`{"enabled":true,"content":"knight"}`),
	})

	require.Len(t, entries, 2)
	assert.Equal(t, models.PersonaDefaultName, entries[0].Name)
	assert.Equal(t, 1, entries[0].InjectionDepth)
	assert.Equal(t, "bard", entries[1].Name)
	assert.Equal(t, 3, entries[1].InjectionDepth)
}

func TestExtract_PromptOrderGatesChatRelativePrompts(t *testing.T) {
	preset := &models.Preset{
		Prompts: []models.PromptSlot{
			{Name: "JB", Identifier: "jb", Content: "INJECT", InjectionPosition: 1, InjectionDepth: 2},
			{Name: "On", Identifier: "on", Content: "kept", InjectionPosition: 1, Enable: models.BoolPtr(false)},
			{Name: "Unlisted", Identifier: "unlisted", Content: "dropped", InjectionPosition: 1},
		},
		PromptOrder: []models.PromptOrder{{Order: []models.OrderItem{
			{Identifier: "jb", Enabled: false},
			{Identifier: "on", Enabled: true},
		}}},
	}

	entries := Extract(preset, nil, nil, PersonaRecords{})

	require.Len(t, entries, 1)
	assert.Equal(t, "On", entries[0].Name)
	assert.Equal(t, "kept", entries[0].Text)
}

func TestExtract_PromptOrderAllDisabled(t *testing.T) {
	preset := &models.Preset{
		Prompts: []models.PromptSlot{
			{Name: "JB", Identifier: "jb", Content: "INJECT", InjectionPosition: 1},
		},
		PromptOrder: []models.PromptOrder{{Order: []models.OrderItem{{Identifier: "jb", Enabled: false}}}},
	}

	assert.Empty(t, Extract(preset, nil, nil, PersonaRecords{}))
}
