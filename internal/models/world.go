// ABOUTME: WorldBook and WorldEntry model the keyword-triggered lore for a character
// ABOUTME: Entries are keyed by id and iterated in a stable order
package models

import (
	"sort"
	"strconv"
)

// Insertion positions shared by world entries, preset prompts and author notes
const (
	PositionBeforeDescription = 0
	PositionAfterDescription  = 1
	PositionBeforeAuthorNote  = 2
	PositionAfterAuthorNote   = 3
	PositionAtDepth           = 4
)

// WorldEntry is a single lore fragment
type WorldEntry struct {
	Comment  string   `json:"comment" yaml:"comment" toml:"comment"`
	Content  string   `json:"content" yaml:"content" toml:"content"`
	Key      []string `json:"key,omitempty" yaml:"key,omitempty" toml:"key"`
	Constant bool     `json:"constant" yaml:"constant" toml:"constant"`
	Position int      `json:"position" yaml:"position" toml:"position"`
	Depth    int      `json:"depth,omitempty" yaml:"depth,omitempty" toml:"depth"`
	Disable  bool     `json:"disable,omitempty" yaml:"disable,omitempty" toml:"disable"`
	Order    int      `json:"order,omitempty" yaml:"order,omitempty" toml:"order"`
}

// WorldBook is the full lore collection for a character
type WorldBook struct {
	Entries map[string]WorldEntry `json:"entries" yaml:"entries" toml:"entries"`
}

// IDs returns entry ids in ascending order. Numeric ids sort numerically
// and come before non-numeric ones.
func (w *WorldBook) IDs() []string {
	if w == nil {
		return nil
	}
	ids := make([]string, 0, len(w.Entries))
	for id := range w.Entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Ordered returns the entries in IDs() order
func (w *WorldBook) Ordered() []WorldEntry {
	ids := w.IDs()
	out := make([]WorldEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.Entries[id])
	}
	return out
}
