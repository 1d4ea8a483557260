// ABOUTME: Dynamic entry extractor normalizing preset prompts, author notes, world entries
// ABOUTME: and persona overrides into one DynamicEntry list in a fixed emission order
package dentry

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/models"
)

// PersonaTemplate wraps persona text; {{user}} is substituted at prompt hydration
const PersonaTemplate = "The following are some information about the character {{user}} I will be playing.\n\n<{{user}}'s_info>%s</{{user}}'s_info>"

// AuthorNoteName labels the author note entry
const AuthorNoteName = "Author's Note"

// PersonaRecords carries the raw persona override blobs, either of which may be absent
type PersonaRecords struct {
	Global    []byte
	Character []byte
}

// Extractor converts persisted character data into dynamic entries
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an Extractor; a nil logger disables logging
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract emits preset prompts, then the author note, then world entries, then personas
func (x *Extractor) Extract(preset *models.Preset, world *models.WorldBook, note *models.AuthorNote, personas PersonaRecords) []models.DynamicEntry {
	var entries []models.DynamicEntry

	if preset != nil {
		ordered := len(preset.PromptOrder) > 0
		inOrder := make(map[string]bool)
		for _, id := range preset.EnabledOrder() {
			inOrder[id] = true
		}
		for _, p := range preset.Prompts {
			if p.InjectionPosition != models.InjectionChatRelative {
				continue
			}
			// prompt_order decides when present; the slot flag only applies without one
			if (ordered && !inOrder[p.Identifier]) || (!ordered && !p.Enabled()) {
				continue
			}
			entries = append(entries, models.DynamicEntry{
				Role:           models.NormalizeRole(p.Role),
				Text:           p.Content,
				Name:           p.Name,
				Position:       models.PositionAtDepth,
				InjectionDepth: max(p.InjectionDepth, 0),
				Constant:       true,
			})
		}
	}

	hasNote := note.Active()
	if hasNote {
		position := note.Position
		if position != models.PositionAfterAuthorNote {
			position = models.PositionBeforeAuthorNote
		}
		entries = append(entries, models.DynamicEntry{
			Role:           models.NormalizeRole(note.Role),
			Text:           note.Text,
			Name:           AuthorNoteName,
			Position:       position,
			InjectionDepth: note.InjectionDepth,
			Constant:       true,
			IsAuthorNote:   true,
		})
	}

	for _, id := range world.IDs() {
		e := world.Entries[id]
		if e.Disable {
			continue
		}
		switch e.Position {
		case models.PositionBeforeAuthorNote, models.PositionAfterAuthorNote:
			if !hasNote {
				continue
			}
		case models.PositionAtDepth:
		default:
			continue
		}
		name := e.Comment
		if name == "" {
			name = id
		}
		entries = append(entries, models.DynamicEntry{
			Role:           models.RoleUser,
			Text:           e.Content,
			Name:           name,
			Position:       e.Position,
			InjectionDepth: max(e.Depth, 0),
			Constant:       e.Constant,
			Key:            append([]string(nil), e.Key...),
		})
	}

	if d, err := decodePersona(personas.Global); err != nil {
		x.logger.Warn("skipping malformed global persona", zap.Error(err))
	} else if d != nil && d.Enabled {
		entries = append(entries, personaEntry(d))
	}

	if d, err := decodePersona(personas.Character); err != nil {
		x.logger.Warn("skipping malformed character persona", zap.Error(err))
	} else if d != nil && d.Enabled && !d.Global {
		entries = append(entries, personaEntry(d))
	}

	return entries
}

// Extract is a convenience wrapper using a silent extractor
func Extract(preset *models.Preset, world *models.WorldBook, note *models.AuthorNote, personas PersonaRecords) []models.DynamicEntry {
	return NewExtractor(nil).Extract(preset, world, note, personas)
}

func decodePersona(raw []byte) (*models.PersonaOverride, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var p models.PersonaOverride
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding persona: %w", err)
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("persona has no content")
	}
	return &p, nil
}

func personaEntry(p *models.PersonaOverride) models.DynamicEntry {
	name := p.Comment
	if name == "" {
		name = models.PersonaDefaultName
	}
	position := p.Position
	if position == 0 {
		position = models.PositionAtDepth
	}
	depth := p.Depth
	if depth == 0 {
		depth = 1
	}
	return models.DynamicEntry{
		Role:           models.RoleUser,
		Text:           fmt.Sprintf(PersonaTemplate, p.Content),
		Name:           name,
		Position:       position,
		InjectionDepth: depth,
		Constant:       true,
	}
}
