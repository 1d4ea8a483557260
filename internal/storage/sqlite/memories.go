// ABOUTME: Recall memory storage and search for SQLite
// ABOUTME: Scores memories by token overlap blended with normalized Levenshtein similarity
package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/harper/roleplay-core/internal/models"
)

// Score weights for memory recall
const (
	overlapWeight    = 0.7
	similarityWeight = 0.3
)

// MemoryStore handles recall memory persistence
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Save saves a memory
func (s *MemoryStore) Save(m *models.Memory) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO memories (id, character_id, conversation_id, memory, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			character_id = excluded.character_id,
			conversation_id = excluded.conversation_id,
			memory = excluded.memory
	`, m.ID, m.CharacterID, nullString(m.ConversationID), m.Text, createdAt)

	return err
}

// ListByCharacter returns memories for a character, newest first.
// A non-empty conversationID also admits memories with no conversation.
func (s *MemoryStore) ListByCharacter(ctx context.Context, characterID, conversationID string) ([]models.Memory, error) {
	query := `
		SELECT id, character_id, conversation_id, memory, created_at
		FROM memories
		WHERE character_id = ?`
	args := []interface{}{characterID}
	if conversationID != "" {
		query += ` AND (conversation_id = ? OR conversation_id IS NULL)`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var memories []models.Memory
	for rows.Next() {
		var (
			m              models.Memory
			conversationID sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.CharacterID, &conversationID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		if conversationID.Valid {
			m.ConversationID = conversationID.String
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// SearchMemories returns up to limit memories relevant to query, best first.
// Memories sharing no token with the query are never returned.
func (s *MemoryStore) SearchMemories(ctx context.Context, query, characterID, conversationID string, limit int) ([]models.MemoryResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	memories, err := s.ListByCharacter(ctx, characterID, conversationID)
	if err != nil {
		return nil, err
	}

	var results []models.MemoryResult
	for _, m := range memories {
		if score := Score(query, m.Text); score > 0 {
			results = append(results, models.MemoryResult{Memory: m.Text, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByConversation removes every memory tied to a conversation
func (s *MemoryStore) DeleteByConversation(conversationID string) (int64, error) {
	result, err := s.db.Exec("DELETE FROM memories WHERE conversation_id = ?", conversationID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Score rates how well text answers query, in [0, 1]
func Score(query, text string) float64 {
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return 0
	}
	tTokens := make(map[string]bool)
	for _, tok := range tokenize(text) {
		tTokens[tok] = true
	}

	hits := 0
	for _, tok := range qTokens {
		if tTokens[tok] {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	overlap := float64(hits) / float64(len(qTokens))

	return overlapWeight*overlap + similarityWeight*similarity(query, text)
}

// similarity is 1 minus the normalized Levenshtein distance of the lowercased strings
func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// tokenize lowercases and splits on anything that is not a letter or digit, deduplicating
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
