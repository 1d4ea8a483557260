// ABOUTME: SQLite schema for conversation blobs, recall memories and fact tables
// ABOUTME: Applied idempotently on every open
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Opaque conversation blobs ({conversationId}{suffix} -> JSON)
CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Recall memories per character
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    character_id TEXT NOT NULL,
    conversation_id TEXT,
    memory TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Long-term fact tables per character (headers and cells stored as JSON)
CREATE TABLE IF NOT EXISTS fact_tables (
    character_id TEXT NOT NULL,
    conversation_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    headers TEXT NOT NULL,
    cells TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (character_id, conversation_id, name)
);

CREATE INDEX IF NOT EXISTS idx_memories_character ON memories(character_id);
CREATE INDEX IF NOT EXISTS idx_memories_conversation ON memories(conversation_id);
CREATE INDEX IF NOT EXISTS idx_fact_tables_character ON fact_tables(character_id);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 2
