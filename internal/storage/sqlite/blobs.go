// ABOUTME: SQLite-backed BlobStore for conversation entities
// ABOUTME: Upserts whole blobs; last writer wins
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/harper/roleplay-core/internal/storage"
)

// BlobStore persists opaque blobs in the blobs table
type BlobStore struct {
	db *DB
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a new BlobStore
func NewBlobStore(db *DB) *BlobStore {
	return &BlobStore{db: db}
}

// Get returns storage.ErrNotFound when key is missing
func (s *BlobStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the blob
func (s *BlobStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO blobs (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes key; missing keys are not an error
func (s *BlobStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present
func (s *BlobStore) Exists(key string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM blobs WHERE key = ?`, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys returns sorted keys starting with prefix
func (s *BlobStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM blobs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

// Close closes the underlying database
func (s *BlobStore) Close() error {
	return s.db.Close()
}
