// ABOUTME: Memory recall and fact table structures for tool-augmented generation
// ABOUTME: Produced by the sqlite stores and consumed by the gateway
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Memory is a stored recollection for a character
type Memory struct {
	ID             string    `json:"id"`
	CharacterID    string    `json:"character_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Text           string    `json:"memory"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMemory creates a Memory with a fresh id
func NewMemory(characterID, conversationID, text string) (*Memory, error) {
	if strings.TrimSpace(characterID) == "" {
		return nil, errors.New("characterID cannot be empty")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("memory text cannot be empty")
	}
	return &Memory{
		ID:             "mem_" + uuid.New().String(),
		CharacterID:    characterID,
		ConversationID: conversationID,
		Text:           strings.TrimSpace(text),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// MemoryResult is one recalled memory with its relevance score
type MemoryResult struct {
	Memory string  `json:"memory"`
	Score  float64 `json:"score"`
}

// FactTable is a long-term tabular memory for a character
type FactTable struct {
	Name    string     `json:"name" yaml:"name"`
	Headers []string   `json:"headers" yaml:"headers"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}
