// ABOUTME: Fact table storage operations for SQLite
// ABOUTME: Long-term tabular character memory rendered into prompts by the gateway
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harper/roleplay-core/internal/models"
)

// FactTableStore handles fact table persistence
type FactTableStore struct {
	db *DB
}

// NewFactTableStore creates a new FactTableStore
func NewFactTableStore(db *DB) *FactTableStore {
	return &FactTableStore{db: db}
}

// Save upserts a table for a character, optionally scoped to one conversation
func (s *FactTableStore) Save(characterID, conversationID string, table models.FactTable) error {
	if strings.TrimSpace(characterID) == "" || strings.TrimSpace(table.Name) == "" {
		return fmt.Errorf("characterID and table name cannot be empty")
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(table.Headers))
		}
	}

	headers, err := json.Marshal(table.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	rows, err := json.Marshal(table.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO fact_tables (character_id, conversation_id, name, headers, cells, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(character_id, conversation_id, name) DO UPDATE SET
			headers = excluded.headers,
			cells = excluded.cells,
			updated_at = excluded.updated_at
	`, characterID, conversationID, table.Name, string(headers), string(rows))

	return err
}

// GetCharacterTables returns a character's tables. Conversation-scoped tables are
// included when conversationID matches; unscoped tables are always included.
func (s *FactTableStore) GetCharacterTables(ctx context.Context, characterID, conversationID string) ([]models.FactTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, headers, cells
		FROM fact_tables
		WHERE character_id = ? AND (conversation_id = '' OR conversation_id = ?)
		ORDER BY name
	`, characterID, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanTables(rows)
}

// Delete removes a named table
func (s *FactTableStore) Delete(characterID, conversationID, name string) error {
	_, err := s.db.Exec(`DELETE FROM fact_tables WHERE character_id = ? AND conversation_id = ? AND name = ?`,
		characterID, conversationID, name)
	return err
}

// DeleteByConversation removes every table scoped to a conversation
func (s *FactTableStore) DeleteByConversation(conversationID string) (int64, error) {
	if conversationID == "" {
		return 0, nil
	}
	result, err := s.db.Exec("DELETE FROM fact_tables WHERE conversation_id = ?", conversationID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// scanTables scans rows into a slice of FactTable
func (s *FactTableStore) scanTables(rows *sql.Rows) ([]models.FactTable, error) {
	var tables []models.FactTable

	for rows.Next() {
		var (
			table   models.FactTable
			headers string
			cells   string
		)
		if err := rows.Scan(&table.Name, &headers, &cells); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headers), &table.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode headers of %s: %w", table.Name, err)
		}
		if err := json.Unmarshal([]byte(cells), &table.Rows); err != nil {
			return nil, fmt.Errorf("failed to decode rows of %s: %w", table.Name, err)
		}
		tables = append(tables, table)
	}

	return tables, rows.Err()
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
