// ABOUTME: BlobStore contract for opaque keyed JSON blobs plus the conversation key scheme
// ABOUTME: Keys are {conversationId}{suffix}; backends are sqlite, charm KV, or in-memory
package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when a key does not exist
var ErrNotFound = errors.New("key not found")

// Blob key suffixes for per-conversation entities
const (
	SuffixRole      = "_role"
	SuffixWorld     = "_world"
	SuffixPreset    = "_preset"
	SuffixNote      = "_note"
	SuffixHistory   = "_history"
	SuffixFramework = "_contents"
	SuffixPersona   = "_persona"
)

// Global keys shared across conversations
const (
	GlobalPersonaKey = "global_user_custom_setting"
	GlobalPresetKey  = "global_preset"
	GlobalRegexKey   = "global_regex_scripts"
)

// ConversationSuffixes lists every suffix deleted with a conversation
var ConversationSuffixes = []string{
	SuffixRole, SuffixWorld, SuffixPreset, SuffixNote, SuffixHistory, SuffixFramework, SuffixPersona,
}

// BlobStore is whole-blob, last-writer-wins keyed storage
type BlobStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Exists(key string) (bool, error)
	Keys(prefix string) ([]string, error)
	Close() error
}

// Key builds a conversation-scoped key
func Key(conversationID, suffix string) string {
	return conversationID + suffix
}

// MemoryStore is an in-process BlobStore used by tests and ephemeral sessions
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value
func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Exists reports whether key is present
func (m *MemoryStore) Exists(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.data[key]
	return ok, nil
}

// Keys returns sorted keys with the given prefix
func (m *MemoryStore) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
