// Package sqlite provides a durable gateway.MessageStore backed by SQLite
// through the pure-Go modernc.org/sqlite driver, so it builds without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Store persists conversation turns in a SQLite database. Deduplication on
// message identity happens in SQL (INSERT ... ON CONFLICT(id) DO NOTHING),
// so double persistence never duplicates history, and reads return
// first-persisted order.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection; WAL keeps
	// readers concurrent with it.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite takes pragmas as SQL statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			seq          INTEGER  PRIMARY KEY AUTOINCREMENT,
			id           TEXT     NOT NULL UNIQUE,
			session_id   TEXT     NOT NULL,
			role         TEXT     NOT NULL,
			content      TEXT     NOT NULL,
			tool_calls   TEXT,
			tool_call_id TEXT     NOT NULL DEFAULT '',
			name         TEXT     NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, seq)`)
	if err != nil {
		return fmt.Errorf("create session index: %w", err)
	}
	return nil
}

// SaveMessages stores the given turns in one transaction, skipping message
// IDs the store has already seen. Messages without an ID are assigned one on
// their stored copy.
func (s *Store) SaveMessages(ctx context.Context, sessionID string, messages []gateway.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, tool_calls, tool_call_id, name)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		stored := m.Clone()
		stored.EnsureID()

		toolCalls, err := encodeToolCalls(stored.ToolCalls)
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx,
			stored.ID, sessionID, string(stored.Role), stored.Content,
			toolCalls, stored.ToolCallID, stored.Name,
		)
		if err != nil {
			return fmt.Errorf("insert message %s: %w", stored.ID, err)
		}
	}

	return tx.Commit()
}

// Messages returns the session's stored turns in first-persisted order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]gateway.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_calls, tool_call_id, name
		FROM messages
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []gateway.Message
	for rows.Next() {
		var (
			m         gateway.Message
			role      string
			toolCalls sql.NullString
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &toolCalls, &m.ToolCallID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = gateway.Role(role)
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls for %s: %w", m.ID, err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Count returns how many distinct messages the session has stored.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeToolCalls(calls []gateway.ToolCall) (interface{}, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("encode tool calls: %w", err)
	}
	return string(data), nil
}

var _ gateway.MessageStore = (*Store)(nil)
