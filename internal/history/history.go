// Package history persists conversation turns in SQLite.
// If the database is unavailable or a query fails, the store falls back to
// in-memory storage.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/logger"
)

// Store keeps conversation turns. A Store with a nil database works purely in
// memory.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	messages []Message // in-memory fallback
}

// New creates the messages table on db. When db is nil or the table cannot be
// created the store runs in memory.
func New(ctx context.Context, db *sql.DB) *Store {
	s := &Store{db: db}
	if db == nil {
		logger.L.Warn("no sqlite database; using in-memory history")
		return s
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS messages (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL,
        conversation_id TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        sources TEXT,
        created_at DATETIME NOT NULL
    );`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		s.db = nil
		return s
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS messages_conversation ON messages (conversation_id, seq);`); err != nil {
		logger.L.Warn("sqlite index creation failed", "error", err)
	}
	logger.L.Info("sqlite history initialized")
	return s
}

// Save persists msg. The in-memory copy is always kept so reads survive a
// failing database.
func (s *Store) Save(ctx context.Context, msg Message) {
	if s.db != nil {
		var sources []byte
		if len(msg.Sources) > 0 {
			sources, _ = json.Marshal(msg.Sources)
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, sources, created_at) VALUES (?,?,?,?,?,?);`,
			msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(sources), msg.CreatedAt.UTC())
		if err != nil {
			logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// List returns the turns of a conversation in chronological order. Unknown
// conversations yield an empty, non-nil slice.
func (s *Store) List(ctx context.Context, conversationID string) []Message {
	if s.db != nil {
		out, err := s.query(ctx, conversationID)
		if err == nil {
			return out
		}
		logger.L.Error("sqlite history query failed; reading from memory", "error", err)
	}

	out := []Message{}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) query(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, sources, created_at FROM messages WHERE conversation_id = ? ORDER BY seq ASC;`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var (
			m       Message
			role    string
			sources sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = api.Role(role)
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &m.Sources); err != nil {
				logger.L.Warn("dropping unreadable sources", "id", m.ID, "error", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Clear removes a conversation and reports whether it existed.
func (s *Store) Clear(ctx context.Context, conversationID string) bool {
	found := false
	if s.db != nil {
		res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?;`, conversationID)
		if err != nil {
			logger.L.Error("failed to clear conversation in sqlite", "error", err)
		} else if n, _ := res.RowsAffected(); n > 0 {
			found = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	return found
}
