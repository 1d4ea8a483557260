// ABOUTME: Typed conversation repository over a BlobStore
// ABOUTME: Loads and saves role cards, world books, presets, notes, histories and frameworks
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/harper/roleplay-core/internal/models"
)

// Conversations persists every entity of a conversation as JSON blobs
type Conversations struct {
	store BlobStore
}

// NewConversations wraps a BlobStore
func NewConversations(store BlobStore) *Conversations {
	return &Conversations{store: store}
}

// Store returns the underlying blob store
func (c *Conversations) Store() BlobStore {
	return c.store
}

// getJSON decodes key into dest, returning false when the key is missing
func (c *Conversations) getJSON(key string, dest interface{}) (bool, error) {
	data, err := c.store.Get(key)
	if errors.Is(err, ErrNotFound) || (err == nil && data == nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Conversations) setJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.store.Set(key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// raw returns the stored bytes for key, or nil when missing
func (c *Conversations) raw(key string) ([]byte, error) {
	data, err := c.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// LoadRoleCard returns nil, nil when the conversation has no role card
func (c *Conversations) LoadRoleCard(id string) (*models.RoleCard, error) {
	var card models.RoleCard
	found, err := c.getJSON(Key(id, SuffixRole), &card)
	if err != nil || !found {
		return nil, err
	}
	return &card, nil
}

// SaveRoleCard stores the role card
func (c *Conversations) SaveRoleCard(id string, card *models.RoleCard) error {
	return c.setJSON(Key(id, SuffixRole), card)
}

// LoadWorldBook returns an empty book when none is stored
func (c *Conversations) LoadWorldBook(id string) (*models.WorldBook, error) {
	book := &models.WorldBook{Entries: map[string]models.WorldEntry{}}
	if _, err := c.getJSON(Key(id, SuffixWorld), book); err != nil {
		return nil, err
	}
	if book.Entries == nil {
		book.Entries = map[string]models.WorldEntry{}
	}
	return book, nil
}

// SaveWorldBook stores the world book
func (c *Conversations) SaveWorldBook(id string, book *models.WorldBook) error {
	return c.setJSON(Key(id, SuffixWorld), book)
}

// LoadPreset returns an empty preset when none is stored
func (c *Conversations) LoadPreset(id string) (*models.Preset, error) {
	preset := &models.Preset{}
	if _, err := c.getJSON(Key(id, SuffixPreset), preset); err != nil {
		return nil, err
	}
	return preset, nil
}

// SavePreset stores the preset
func (c *Conversations) SavePreset(id string, preset *models.Preset) error {
	return c.setJSON(Key(id, SuffixPreset), preset)
}

// LoadAuthorNote returns nil, nil when no note is stored
func (c *Conversations) LoadAuthorNote(id string) (*models.AuthorNote, error) {
	var note models.AuthorNote
	found, err := c.getJSON(Key(id, SuffixNote), &note)
	if err != nil || !found {
		return nil, err
	}
	return &note, nil
}

// SaveAuthorNote stores the author note; a nil note deletes it
func (c *Conversations) SaveAuthorNote(id string, note *models.AuthorNote) error {
	if note == nil {
		return c.store.Delete(Key(id, SuffixNote))
	}
	return c.setJSON(Key(id, SuffixNote), note)
}

// LoadHistory returns nil, nil when the conversation has no history
func (c *Conversations) LoadHistory(id string) (*models.ChatHistory, error) {
	var history models.ChatHistory
	found, err := c.getJSON(Key(id, SuffixHistory), &history)
	if err != nil || !found {
		return nil, err
	}
	if history.Parts == nil {
		history.Parts = []models.ChatMessageEntry{}
	}
	return &history, nil
}

// SaveHistory stores the chat history
func (c *Conversations) SaveHistory(id string, history *models.ChatHistory) error {
	return c.setJSON(Key(id, SuffixHistory), history)
}

// LoadFramework returns nil, nil when no framework is cached
func (c *Conversations) LoadFramework(id string) (*models.Framework, error) {
	var fw models.Framework
	found, err := c.getJSON(Key(id, SuffixFramework), &fw)
	if err != nil || !found {
		return nil, err
	}
	return &fw, nil
}

// SaveFramework caches the framework
func (c *Conversations) SaveFramework(id string, fw *models.Framework) error {
	return c.setJSON(Key(id, SuffixFramework), fw)
}

// CharacterPersona returns the raw per-character persona record, or nil
func (c *Conversations) CharacterPersona(id string) ([]byte, error) {
	return c.raw(Key(id, SuffixPersona))
}

// GlobalPersona returns the raw global persona record, or nil
func (c *Conversations) GlobalPersona() ([]byte, error) {
	return c.raw(GlobalPersonaKey)
}

// SavePersona stores a persona override; an empty id stores the global one
func (c *Conversations) SavePersona(id string, persona *models.PersonaOverride) error {
	if id == "" {
		return c.setJSON(GlobalPersonaKey, persona)
	}
	return c.setJSON(Key(id, SuffixPersona), persona)
}

// LoadGlobalPreset returns nil, nil when no global preset override exists
func (c *Conversations) LoadGlobalPreset() (*models.Preset, error) {
	var preset models.Preset
	found, err := c.getJSON(GlobalPresetKey, &preset)
	if err != nil || !found {
		return nil, err
	}
	return &preset, nil
}

// SaveGlobalPreset stores the global preset override; nil removes it
func (c *Conversations) SaveGlobalPreset(preset *models.Preset) error {
	if preset == nil {
		return c.store.Delete(GlobalPresetKey)
	}
	return c.setJSON(GlobalPresetKey, preset)
}

// LoadGlobalRegex returns the global regex scripts
func (c *Conversations) LoadGlobalRegex() ([]models.RegexScript, error) {
	var scripts []models.RegexScript
	if _, err := c.getJSON(GlobalRegexKey, &scripts); err != nil {
		return nil, err
	}
	return scripts, nil
}

// SaveGlobalRegex stores the global regex scripts
func (c *Conversations) SaveGlobalRegex(scripts []models.RegexScript) error {
	return c.setJSON(GlobalRegexKey, scripts)
}

// Exists reports whether the conversation has a stored history
func (c *Conversations) Exists(id string) (bool, error) {
	return c.store.Exists(Key(id, SuffixHistory))
}

// Delete removes every entity of the conversation; missing keys are ignored
func (c *Conversations) Delete(id string) error {
	var errs []error
	for _, suffix := range ConversationSuffixes {
		if err := c.store.Delete(Key(id, suffix)); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the ids of every conversation that has a history
func (c *Conversations) List() ([]string, error) {
	keys, err := c.store.Keys("")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	var ids []string
	for _, k := range keys {
		if id, ok := strings.CutSuffix(k, SuffixHistory); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
