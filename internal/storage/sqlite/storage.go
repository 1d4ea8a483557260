// ABOUTME: Unified Storage layer that wraps all SQLite stores
// ABOUTME: One database file backs conversation blobs, recall memories and fact tables
package sqlite

import (
	"fmt"

	"github.com/harper/roleplay-core/internal/storage"
)

// Storage manages all persistent roleplay data in one SQLite database
type Storage struct {
	db       *DB
	blobs    *BlobStore
	memories *MemoryStore
	facts    *FactTableStore
	source   storage.BlobStore
}

// NewStorage initializes storage at the default database path
func NewStorage() (*Storage, error) {
	return NewStorageWithPath(DefaultDBPath())
}

// NewStorageWithPath initializes storage with a custom database path
func NewStorageWithPath(dbPath string) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db), nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory() (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStorage(db), nil
}

func newStorage(db *DB) *Storage {
	blobs := NewBlobStore(db)
	return &Storage{
		db:       db,
		blobs:    blobs,
		memories: NewMemoryStore(db),
		facts:    NewFactTableStore(db),
		source:   blobs,
	}
}

// UseBlobStore makes Export read conversations from another backend
func (s *Storage) UseBlobStore(b storage.BlobStore) {
	if b != nil {
		s.source = b
	}
}

// Blobs returns the conversation blob store
func (s *Storage) Blobs() *BlobStore {
	return s.blobs
}

// Memories returns the recall memory store
func (s *Storage) Memories() *MemoryStore {
	return s.memories
}

// Facts returns the fact table store
func (s *Storage) Facts() *FactTableStore {
	return s.facts
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
