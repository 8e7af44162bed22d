package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"discord-gpt-bot/internal/completion"
)

type MessageDB struct {
	db *sql.DB
}

// New creates a new MessageDB instance
func New(dbPath string) (*MessageDB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".", "messages.db")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS thread_messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_thread_messages_thread_id ON thread_messages(thread_id);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &MessageDB{db: db}, nil
}

// Close closes the database connection
func (m *MessageDB) Close() error {
	return m.db.Close()
}

// SaveMessage stores one conversational turn of a thread.
func (m *MessageDB) SaveMessage(threadID string, messageID string, authorID string, msg completion.Message) error {
	_, err := m.db.Exec(
		`INSERT OR REPLACE INTO thread_messages
		(id, thread_id, author_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		messageID,
		threadID,
		authorID,
		msg.User,
		msg.Text,
		time.Now(),
	)
	return err
}

// GetThreadHistory returns the thread's turns in conversation order.
func (m *MessageDB) GetThreadHistory(threadID string) ([]completion.Message, error) {
	rows, err := m.db.Query(
		`SELECT role, content FROM thread_messages
		WHERE thread_id = ?
		ORDER BY created_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []completion.Message
	for rows.Next() {
		var msg completion.Message
		if err = rows.Scan(&msg.User, &msg.Text); err != nil {
			return nil, err
		}

		history = append(history, msg)
	}

	return history, rows.Err()
}

// GetMessage retrieves a single stored turn by message ID.
func (m *MessageDB) GetMessage(id string) (*completion.Message, error) {
	var msg completion.Message
	err := m.db.QueryRow(
		`SELECT role, content FROM thread_messages WHERE id = ?`,
		id,
	).Scan(&msg.User, &msg.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message not found: %s", id)
		}
		return nil, err
	}

	return &msg, nil
}

// DeleteThread drops all turns of a closed thread.
func (m *MessageDB) DeleteThread(threadID string) error {
	_, err := m.db.Exec(`DELETE FROM thread_messages WHERE thread_id = ?`, threadID)
	return err
}
