package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"noelle/internal/domain"
)

var _ domain.MessageStore = (*SQLite)(nil)

const messageCols = "id, conversation_id, type, content, status, created_at, updated_at"

func (s *SQLite) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages ("+messageCols+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.ConversationID, string(m.Type), m.Content, string(m.Status), formatTime(now), formatTime(now),
	)
	return err
}

func (s *SQLite) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+messageCols+" FROM messages WHERE id = ?", id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	return m, err
}

func (s *SQLite) UpdateMessageContent(ctx context.Context, id, content string, status domain.MessageStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET content = ?, status = ?, updated_at = ? WHERE id = ?",
		content, string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrMessageNotFound)
}

func (s *SQLite) UpdateMessageStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrMessageNotFound)
}

func (s *SQLite) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrMessageNotFound)
}

// ListMessages returns a conversation's messages oldest first.
func (s *SQLite) ListMessages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+messageCols+" FROM messages WHERE conversation_id = ? ORDER BY created_at, id", conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row scanner) (*domain.Message, error) {
	var m domain.Message
	var typ, status, created, updated string
	if err := row.Scan(&m.ID, &m.ConversationID, &typ, &m.Content, &status, &created, &updated); err != nil {
		return nil, err
	}
	m.Type = domain.MessageType(typ)
	m.Status = domain.MessageStatus(status)
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}
