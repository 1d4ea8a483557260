// ABOUTME: Framework builder turning preset + role card + world book into a prompt skeleton
// ABOUTME: Pure function with defaulting; falls back to a two-slot minimal framework on failure
package framework

import (
	"errors"
	"fmt"
	"sort"

	"github.com/harper/roleplay-core/internal/models"
)

var errDuplicateChatSlot = errors.New("preset names more than one chat history slot")

// Build resolves the preset's ordered slots against the role card and world book.
// The returned history is an empty template sharing the framework's chat identifier.
func Build(preset *models.Preset, card *models.RoleCard, world *models.WorldBook) (fw *models.Framework, history *models.ChatHistory) {
	rc := card.WithDefaults()

	defer func() {
		if r := recover(); r != nil {
			fw, history = Minimal(&rc)
		}
	}()

	built, err := build(preset, &rc, world)
	if err != nil {
		return Minimal(&rc)
	}
	return built, templateFor(built)
}

// Minimal returns the fallback framework: character info followed by chat history
func Minimal(card *models.RoleCard) (*models.Framework, *models.ChatHistory) {
	rc := card.WithDefaults()
	fw := &models.Framework{Slots: []models.FrameworkSlot{
		{
			Name:       models.CharacterInfoName,
			Role:       models.RoleUser,
			Identifier: models.CharacterInfoName,
			Content:    fmt.Sprintf("Name: %s\nPersonality: %s\nDescription: %s", rc.Name, rc.Personality, rc.Description),
		},
		chatSlot(models.ChatHistoryName, models.IdentifierChatHistory),
	}}
	return fw, templateFor(fw)
}

func build(preset *models.Preset, card *models.RoleCard, world *models.WorldBook) (*models.Framework, error) {
	if preset == nil {
		preset = &models.Preset{}
	}

	order := preset.EnabledOrder()
	if len(preset.PromptOrder) == 0 {
		for _, p := range preset.Prompts {
			order = append(order, p.Identifier)
		}
	}

	fw := &models.Framework{}
	descIndex := -1
	hasChat := false

	for _, id := range order {
		slot, ok := preset.Lookup(id)
		if isChatPlaceholder(id, slot, ok) {
			if hasChat {
				return nil, errDuplicateChatSlot
			}
			hasChat = true
			name := slot.Name
			if name == "" {
				name = models.ChatHistoryName
			}
			fw.Slots = append(fw.Slots, chatSlot(name, id))
			continue
		}
		if !ok || !slot.Enabled() || slot.InjectionPosition == models.InjectionChatRelative {
			continue
		}

		if id == models.IdentifierCharDescription && descIndex < 0 {
			descIndex = len(fw.Slots)
		}
		fw.Slots = append(fw.Slots, models.FrameworkSlot{
			Name:       slot.Name,
			Role:       models.NormalizeRole(slot.Role),
			Identifier: id,
			Content:    resolveContent(id, slot, card),
		})
	}

	if !hasChat {
		fw.Slots = append(fw.Slots, chatSlot(models.ChatHistoryName, chatIdentifier(preset)))
	}

	fw.Slots = insertWorldEntries(fw.Slots, descIndex, world)
	return fw, nil
}

// resolveContent maps well-known identifiers onto role card fields
func resolveContent(id string, slot models.PromptSlot, card *models.RoleCard) string {
	switch id {
	case models.IdentifierCharDescription:
		return card.Description
	case models.IdentifierCharPersonality:
		return card.Personality
	case models.IdentifierScenario:
		return card.Scenario
	case models.IdentifierDialogueExamples:
		return card.MesExample
	}
	return slot.Content
}

func isChatPlaceholder(id string, slot models.PromptSlot, found bool) bool {
	if found && slot.Name == models.ChatHistoryName {
		return true
	}
	return id == models.IdentifierChatHistory
}

// chatIdentifier finds the identifier of a "Chat History" prompt even if it is not ordered
func chatIdentifier(preset *models.Preset) string {
	for _, p := range preset.Prompts {
		if p.Name == models.ChatHistoryName && p.Identifier != "" {
			return p.Identifier
		}
	}
	return models.IdentifierChatHistory
}

func chatSlot(name, identifier string) models.FrameworkSlot {
	return models.FrameworkSlot{
		Name:          name,
		Role:          models.RoleSystem,
		Identifier:    identifier,
		IsChatHistory: true,
	}
}

// insertWorldEntries places position 0/1 world entries around the description slot
func insertWorldEntries(slots []models.FrameworkSlot, descIndex int, world *models.WorldBook) []models.FrameworkSlot {
	type ordered struct {
		entry models.WorldEntry
		id    string
	}
	var before, after []ordered
	for _, id := range world.IDs() {
		e := world.Entries[id]
		if e.Disable {
			continue
		}
		switch e.Position {
		case models.PositionBeforeDescription:
			before = append(before, ordered{e, id})
		case models.PositionAfterDescription:
			after = append(after, ordered{e, id})
		}
	}
	if len(before) == 0 && len(after) == 0 {
		return slots
	}

	byOrder := func(list []ordered) []models.FrameworkSlot {
		sort.SliceStable(list, func(i, j int) bool { return list[i].entry.Order < list[j].entry.Order })
		out := make([]models.FrameworkSlot, 0, len(list))
		for _, o := range list {
			name := o.entry.Comment
			if name == "" {
				name = o.id
			}
			out = append(out, models.FrameworkSlot{
				Name:       name,
				Role:       models.RoleUser,
				Identifier: "world:" + o.id,
				Content:    o.entry.Content,
			})
		}
		return out
	}

	pre := byOrder(before)
	post := byOrder(after)

	var out []models.FrameworkSlot
	if descIndex < 0 {
		out = append(out, pre...)
		out = append(out, post...)
		return append(out, slots...)
	}
	out = append(out, slots[:descIndex]...)
	out = append(out, pre...)
	out = append(out, slots[descIndex])
	out = append(out, post...)
	return append(out, slots[descIndex+1:]...)
}

func templateFor(fw *models.Framework) *models.ChatHistory {
	h := models.NewChatHistory(fw.ChatIdentifier())
	if i := fw.ChatSlotIndex(); i >= 0 && fw.Slots[i].Name != "" {
		h.Name = fw.Slots[i].Name
	}
	return h
}

// WithOverride returns preset with its prompts replaced by the override's, when given
func WithOverride(preset, override *models.Preset) *models.Preset {
	if override == nil || len(override.Prompts) == 0 {
		return preset
	}
	out := &models.Preset{Prompts: append([]models.PromptSlot(nil), override.Prompts...)}
	if len(override.PromptOrder) > 0 {
		out.PromptOrder = override.PromptOrder
	} else if preset != nil {
		out.PromptOrder = preset.PromptOrder
	}
	return out
}
