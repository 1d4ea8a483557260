// ABOUTME: History merge engine: strips dynamic entries and re-inserts the eligible ones
// ABOUTME: around an anchor message using position/depth rules, never mutating its input
package merge

import (
	"strings"

	"github.com/harper/roleplay-core/internal/models"
)

// Anchor identifies the message that depth-relative entries are measured from
type Anchor struct {
	Role models.Role
	Text string
}

// UserAnchor anchors on a user message
func UserAnchor(text string) Anchor {
	return Anchor{Role: models.RoleUser, Text: text}
}

// Strip returns a copy of entries without any dynamic entries
func Strip(entries []models.ChatMessageEntry) []models.ChatMessageEntry {
	out := make([]models.ChatMessageEntry, 0, len(entries))
	for _, e := range models.CloneEntries(entries) {
		if !e.IsDEntry {
			out = append(out, e)
		}
	}
	return out
}

// HistoryText is the lowercased, space-joined text of the non-dynamic entries
func HistoryText(entries []models.ChatMessageEntry) string {
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDEntry {
			texts = append(texts, e.Text())
		}
	}
	return strings.ToLower(strings.Join(texts, " "))
}

// ShouldInclude applies the eligibility rule against pre-lowercased history text.
// Author notes and constant entries always pass; keyed entries need one key present.
func ShouldInclude(entry models.DynamicEntry, historyText string) bool {
	if entry.IsAuthorNote || entry.Constant {
		return true
	}
	for _, key := range entry.Key {
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" && strings.Contains(historyText, key) {
			return true
		}
	}
	return false
}

// Insert strips history and re-inserts eligible entries around the newest entry matching anchor.
// When the anchor is missing the stripped history is returned unchanged.
func Insert(history *models.ChatHistory, anchor Anchor, entries []models.DynamicEntry) *models.ChatHistory {
	out := shell(history)
	cleaned := Strip(parts(history))

	anchorIdx := findAnchor(cleaned, anchor)
	if anchorIdx < 0 {
		out.Parts = cleaned
		return out
	}

	text := HistoryText(cleaned)
	var eligible []models.DynamicEntry
	for _, e := range entries {
		if ShouldInclude(e, text) {
			eligible = append(eligible, e)
		}
	}

	byDepth := make(map[int][]models.ChatMessageEntry)
	var relative []models.DynamicEntry
	for _, e := range eligible {
		if e.Position == models.PositionAtDepth {
			depth := max(e.InjectionDepth, 0)
			byDepth[depth] = append(byDepth[depth], e.Entry())
			continue
		}
		relative = append(relative, e)
	}

	merged := make([]models.ChatMessageEntry, 0, len(cleaned)+len(eligible))
	for i, e := range cleaned {
		switch {
		case i < anchorIdx:
			merged = append(merged, byDepth[anchorIdx-i]...)
			merged = append(merged, e)
		case i == anchorIdx:
			merged = append(merged, e)
			merged = append(merged, byDepth[0]...)
		default:
			merged = append(merged, e)
		}
	}

	out.Parts = placeAroundNote(merged, relative)
	return out
}

// placeAroundNote appends the author note once, then splices position 2 entries
// before it and position 3 entries after it, keeping extraction order.
func placeAroundNote(merged []models.ChatMessageEntry, relative []models.DynamicEntry) []models.ChatMessageEntry {
	noteIdx := authorNoteIndex(merged)
	for _, e := range relative {
		if e.IsAuthorNote && noteIdx < 0 {
			merged = append(merged, e.Entry())
			noteIdx = len(merged) - 1
		}
	}
	if noteIdx < 0 {
		return merged
	}

	after := 0
	for _, e := range relative {
		if e.IsAuthorNote {
			continue
		}
		switch e.Position {
		case models.PositionBeforeAuthorNote:
			merged = insertAt(merged, noteIdx, e.Entry())
			noteIdx++
		case models.PositionAfterAuthorNote:
			merged = insertAt(merged, noteIdx+1+after, e.Entry())
			after++
		}
	}
	return merged
}

// UpdateChatHistory strips history, appends userText and modelText without duplicating
// an identical tail, then re-inserts entries anchored on userText.
func UpdateChatHistory(history *models.ChatHistory, userText, modelText string, entries []models.DynamicEntry) *models.ChatHistory {
	working := shell(history)
	working.Parts = Strip(parts(history))

	if userText != "" && !userAlreadyAppended(working.Parts, userText, modelText) {
		working.Parts = append(working.Parts, models.NewTextEntry(models.RoleUser, userText))
	}
	if modelText != "" && !tailMatches(working.Parts, models.RoleModel, modelText) {
		working.Parts = append(working.Parts, models.NewTextEntry(models.RoleModel, modelText))
	}

	return Insert(working, UserAnchor(userText), entries)
}

// userAlreadyAppended reports whether the tail already ends with this user turn,
// optionally followed by this exact model reply.
func userAlreadyAppended(entries []models.ChatMessageEntry, userText, modelText string) bool {
	if tailMatches(entries, models.RoleUser, userText) {
		return true
	}
	n := len(entries)
	if modelText == "" || n < 2 {
		return false
	}
	return tailMatches(entries, models.RoleModel, modelText) && matches(entries[n-2], models.RoleUser, userText)
}

func tailMatches(entries []models.ChatMessageEntry, role models.Role, text string) bool {
	return len(entries) > 0 && matches(entries[len(entries)-1], role, text)
}

func matches(e models.ChatMessageEntry, role models.Role, text string) bool {
	return e.Role == role && e.Text() == text
}

func findAnchor(entries []models.ChatMessageEntry, anchor Anchor) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if matches(entries[i], anchor.Role, anchor.Text) {
			return i
		}
	}
	return -1
}

func authorNoteIndex(entries []models.ChatMessageEntry) int {
	for i, e := range entries {
		if e.IsDEntry && e.IsAuthorNote {
			return i
		}
	}
	return -1
}

func insertAt(entries []models.ChatMessageEntry, i int, e models.ChatMessageEntry) []models.ChatMessageEntry {
	entries = append(entries, models.ChatMessageEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}

func shell(history *models.ChatHistory) *models.ChatHistory {
	if history == nil {
		return models.NewChatHistory("")
	}
	out := *history
	out.Parts = nil
	return &out
}

func parts(history *models.ChatHistory) []models.ChatMessageEntry {
	if history == nil {
		return nil
	}
	return history.Parts
}
