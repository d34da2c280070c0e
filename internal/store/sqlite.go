package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"gwi.com/kb-console/internal/chat"
)

// SQLiteStore keeps chat history on disk for backends that have no history service.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY, -- UUID
        title TEXT NOT NULL DEFAULT '',
        knowledge_base_ids TEXT NOT NULL DEFAULT '[]', -- JSON array
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        FOREIGN KEY (session_id) REFERENCES sessions (id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, position);
    `
	_, err := s.db.Exec(schema)
	return err
}

// SaveSession upserts the session row and replaces its messages in one transaction.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec chat.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	kbJSON, err := json.Marshal(nonNil(rec.KnowledgeBaseIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base ids: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO sessions (id, title, knowledge_base_ids, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            knowledge_base_ids = excluded.knowledge_base_ids,
            updated_at = excluded.updated_at`,
		rec.ID, rec.Title, string(kbJSON), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", rec.ID); err != nil {
		return fmt.Errorf("failed to clear session messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO messages (id, session_id, position, role, content, timestamp) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range rec.Messages {
		id := msg.ID
		if id == "" {
			id = uuid.NewString()
		}
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err = stmt.ExecContext(ctx, id, rec.ID, i, string(msg.Role), msg.Content, ts.UTC()); err != nil {
			return fmt.Errorf("failed to execute message insert: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session save: %w", err)
	}
	return nil
}

// LoadSession returns nil, nil when the session does not exist.
func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*chat.Record, error) {
	var rec chat.Record
	var kbJSON string
	err := s.db.QueryRowContext(ctx, "SELECT id, title, knowledge_base_ids, created_at, updated_at FROM sessions WHERE id = ?", id).
		Scan(&rec.ID, &rec.Title, &kbJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if err := json.Unmarshal([]byte(kbJSON), &rec.KnowledgeBaseIDs); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge base ids for session %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, role, content, timestamp FROM messages WHERE session_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	rec.Messages = []chat.Message{}
	for rows.Next() {
		var msg chat.Message
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Role = chat.Role(role)
		rec.Messages = append(rec.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return &rec, nil
}

// ListSessions returns summaries, most recently updated first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]chat.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT s.id, s.title, s.updated_at, COUNT(m.id)
        FROM sessions s
        LEFT JOIN messages m ON m.session_id = s.id
        GROUP BY s.id
        ORDER BY s.updated_at DESC, s.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []chat.Summary{}
	for rows.Next() {
		var sum chat.Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.UpdatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return summaries, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session delete: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return tx.Commit()
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
