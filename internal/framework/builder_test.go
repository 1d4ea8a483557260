// ABOUTME: Tests for the framework builder: ordering, defaulting, world placement and fallback
// ABOUTME: Includes the single-slot preset example producing [character-info, chat-history]
package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/roleplay-core/internal/models"
)

func names(fw *models.Framework) []string {
	var out []string
	for _, s := range fw.Slots {
		out = append(out, s.Name)
	}
	return out
}

func TestBuild_SingleSlotPreset(t *testing.T) {
	card := &models.RoleCard{FirstMes: "Hi!"}
	preset := &models.Preset{
		Prompts: []models.PromptSlot{
			{Name: "Char Description", Identifier: models.IdentifierCharDescription},
		},
		PromptOrder: []models.PromptOrder{{Order: []models.OrderItem{
			{Identifier: models.IdentifierCharDescription, Enabled: true},
		}}},
	}

	fw, history := Build(preset, card, &models.WorldBook{})

	require.Len(t, fw.Slots, 2)
	assert.Equal(t, models.IdentifierCharDescription, fw.Slots[0].Identifier)
	assert.True(t, fw.Slots[1].IsChatHistory)
	assert.Equal(t, fw.ChatIdentifier(), history.Identifier)
	assert.Empty(t, history.Parts)
}

func TestBuild_EmptyPreset(t *testing.T) {
	fw, history := Build(&models.Preset{}, nil, nil)

	require.Len(t, fw.Slots, 1)
	assert.True(t, fw.Slots[0].IsChatHistory)
	assert.Equal(t, models.IdentifierChatHistory, history.Identifier)

	fw, _ = Build(nil, nil, nil)
	require.Len(t, fw.Slots, 1)
}

func TestBuild_ResolvesIdentifiersInOrder(t *testing.T) {
	card := &models.RoleCard{
		Name:        "Ayla",
		Description: "a ranger",
		Personality: "curious",
		Scenario:    "a forest",
		MesExample:  "<START>",
	}
	preset := &models.Preset{
		Prompts: []models.PromptSlot{
			{Name: "Main", Identifier: "main", Content: "Write the next reply.", Role: "system"},
			{Name: "Char Description", Identifier: models.IdentifierCharDescription},
			{Name: "Personality", Identifier: models.IdentifierCharPersonality},
			{Name: "Scenario", Identifier: models.IdentifierScenario},
			{Name: "Examples", Identifier: models.IdentifierDialogueExamples},
			{Name: models.ChatHistoryName, Identifier: "history"},
			{Name: "Jailbreak", Identifier: "jb", Content: "stay in character"},
			{Name: "Disabled", Identifier: "off", Content: "nope", Enable: models.BoolPtr(false)},
			{Name: "Depth prompt", Identifier: "depth", Content: "inject", InjectionPosition: 1},
		},
		PromptOrder: []models.PromptOrder{{Order: []models.OrderItem{
			{Identifier: "main", Enabled: true},
			{Identifier: models.IdentifierCharDescription, Enabled: true},
			{Identifier: models.IdentifierCharPersonality, Enabled: true},
			{Identifier: models.IdentifierScenario, Enabled: true},
			{Identifier: models.IdentifierDialogueExamples, Enabled: false},
			{Identifier: "off", Enabled: true},
			{Identifier: "depth", Enabled: true},
			{Identifier: "history", Enabled: true},
			{Identifier: "jb", Enabled: true},
		}}},
	}

	fw, history := Build(preset, card, nil)

	assert.Equal(t, []string{"Main", "Char Description", "Personality", "Scenario", models.ChatHistoryName, "Jailbreak"}, names(fw))
	assert.Equal(t, models.RoleSystem, fw.Slots[0].Role)
	assert.Equal(t, "a ranger", fw.Slots[1].Content)
	assert.Equal(t, "curious", fw.Slots[2].Content)
	assert.Equal(t, "a forest", fw.Slots[3].Content)
	assert.Equal(t, "history", history.Identifier)
	assert.Equal(t, 4, fw.ChatSlotIndex())
}

func TestBuild_WorldEntriesAroundDescription(t *testing.T) {
	preset := &models.Preset{
		Prompts: []models.PromptSlot{
			{Name: "Main", Identifier: "main", Content: "main"},
			{Name: "Char Description", Identifier: models.IdentifierCharDescription},
		},
		PromptOrder: []models.PromptOrder{{Order: []models.OrderItem{
			{Identifier: "main", Enabled: true},
			{Identifier: models.IdentifierCharDescription, Enabled: true},
		}}},
	}
	world := &models.WorldBook{Entries: map[string]models.WorldEntry{
		"1": {Comment: "late", Content: "b", Position: 0, Order: 5},
		"2": {Comment: "early", Content: "a", Position: 0, Order: 1},
		"3": {Comment: "after", Content: "c", Position: 1},
		"4": {Comment: "off", Content: "x", Position: 0, Disable: true},
		"5": {Comment: "depth", Content: "y", Position: 4},
	}}

	fw, _ := Build(preset, &models.RoleCard{Description: "desc"}, world)

	assert.Equal(t, []string{"Main", "early", "late", "Char Description", "after", models.ChatHistoryName}, names(fw))
}

func TestBuild_WorldEntriesWithoutDescriptionGoFirst(t *testing.T) {
	world := &models.WorldBook{Entries: map[string]models.WorldEntry{
		"1": {Comment: "after", Content: "c", Position: 1},
		"2": {Comment: "before", Content: "a", Position: 0},
	}}

	fw, _ := Build(&models.Preset{}, nil, world)

	assert.Equal(t, []string{"before", "after", models.ChatHistoryName}, names(fw))
}

func TestBuild_DuplicateChatSlotFallsBackToMinimal(t *testing.T) {
	preset := &models.Preset{
		Prompts: []models.PromptSlot{
			{Name: models.ChatHistoryName, Identifier: "a"},
			{Name: models.ChatHistoryName, Identifier: "b"},
		},
		PromptOrder: []models.PromptOrder{{Order: []models.OrderItem{
			{Identifier: "a", Enabled: true},
			{Identifier: "b", Enabled: true},
		}}},
	}

	fw, history := Build(preset, &models.RoleCard{Name: "Ayla", Personality: "kind", Description: "elf"}, nil)

	require.Len(t, fw.Slots, 2)
	assert.Equal(t, models.CharacterInfoName, fw.Slots[0].Name)
	assert.Equal(t, "Name: Ayla\nPersonality: kind\nDescription: elf", fw.Slots[0].Content)
	assert.True(t, fw.Slots[1].IsChatHistory)
	assert.Equal(t, models.IdentifierChatHistory, history.Identifier)
}

func TestMinimal_Defaults(t *testing.T) {
	fw, _ := Minimal(nil)
	assert.Contains(t, fw.Slots[0].Content, "Name: "+models.DefaultCharacterName)
}

func TestWithOverride(t *testing.T) {
	base := &models.Preset{
		Prompts:     []models.PromptSlot{{Identifier: "a"}},
		PromptOrder: []models.PromptOrder{{Order: []models.OrderItem{{Identifier: "a", Enabled: true}}}},
	}

	assert.Same(t, base, WithOverride(base, nil))
	assert.Same(t, base, WithOverride(base, &models.Preset{}))

	got := WithOverride(base, &models.Preset{Prompts: []models.PromptSlot{{Identifier: "b"}}})
	assert.Equal(t, "b", got.Prompts[0].Identifier)
	assert.Equal(t, base.PromptOrder, got.PromptOrder)
}
