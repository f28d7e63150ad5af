// Package store provides SQLite-backed conversation persistence for the chat
// front end. Conversations are named records of ordered {role, content}
// turns; a conversation comes into existence on its first appended message
// and survives restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the human operator.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// Conversation is a named thread summary.
type Conversation struct {
	// Name identifies the conversation.
	Name string
	// Messages is the number of turns stored.
	Messages int
	// UpdatedAt is when the last message was persisted.
	UpdatedAt time.Time
}

// ConversationStore persists and retrieves conversation history keyed by
// conversation name. Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Append persists a single message, creating the conversation if needed.
	Append(ctx context.Context, conversation string, role Role, content string) error
	// Recent returns the most recent n messages for the conversation, ordered
	// oldest-first so they can be rendered as a transcript directly.
	// If fewer than n messages exist, all are returned.
	Recent(ctx context.Context, conversation string, n int) ([]Message, error)
	// List returns all conversations, most recently updated first.
	List(ctx context.Context) ([]Conversation, error)
	// Delete removes a conversation and all its messages.
	Delete(ctx context.Context, conversation string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a ConversationStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the conversation database.
// It resolves to ~/.profilebot/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".profilebot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS messages (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation  TEXT    NOT NULL,
    role          TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content       TEXT    NOT NULL,
    created_at    INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
    ON messages (conversation, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single message for the given conversation.
func (s *SQLiteStore) Append(ctx context.Context, conversation string, role Role, content string) error {
	if conversation == "" {
		return fmt.Errorf("store: conversation name must not be empty")
	}
	const q = `INSERT INTO messages (conversation, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, conversation, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n messages for the conversation, ordered
// oldest-first. Uses a subquery to select the tail then re-order for display.
func (s *SQLiteStore) Recent(ctx context.Context, conversation string, n int) ([]Message, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   messages
    WHERE  conversation = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, conversation, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return msgs, nil
}

// List returns all conversations with their message counts, most recently
// updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Conversation, error) {
	const q = `
SELECT conversation, COUNT(*), MAX(created_at)
FROM   messages
GROUP  BY conversation
ORDER  BY MAX(created_at) DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var ts int64
		if err := rows.Scan(&c.Name, &c.Messages, &ts); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		c.UpdatedAt = time.Unix(ts, 0)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return convs, nil
}

// Delete removes a conversation and all its messages. Deleting a
// conversation that does not exist is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, conversation string) error {
	const q = `DELETE FROM messages WHERE conversation = ?`
	if _, err := s.db.ExecContext(ctx, q, conversation); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
