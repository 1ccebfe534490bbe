package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"noelle/internal/domain"
)

var _ domain.ConversationStore = (*SQLite)(nil)

const conversationCols = "id, title, provider_id, selected_model, pinned, created_at, updated_at"

func (s *SQLite) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations ("+conversationCols+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.Title, c.ProviderID, c.SelectedModel, c.Pinned, formatTime(now), formatTime(now),
	)
	return err
}

func (s *SQLite) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+conversationCols+" FROM conversations WHERE id = ?", id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	return c, err
}

func (s *SQLite) UpdateConversation(ctx context.Context, c *domain.Conversation) error {
	now := time.Now().UTC()
	c.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET title = ?, provider_id = ?, selected_model = ?, pinned = ?, updated_at = ? WHERE id = ?",
		c.Title, c.ProviderID, c.SelectedModel, c.Pinned, formatTime(now), c.ID,
	)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrConversationNotFound)
}

// TouchConversation bumps updated_at only.
func (s *SQLite) TouchConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?", formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrConversationNotFound)
}

// DeleteConversation removes the conversation and its messages.
func (s *SQLite) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affected(res, domain.ErrConversationNotFound)
}

// ListConversations returns pinned conversations first, then most recently
// updated.
func (s *SQLite) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+conversationCols+" FROM conversations ORDER BY pinned DESC, updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConversation(row scanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var created, updated string
	if err := row.Scan(&c.ID, &c.Title, &c.ProviderID, &c.SelectedModel, &c.Pinned, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}
