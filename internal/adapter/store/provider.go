package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"noelle/internal/domain"
)

var _ domain.ProviderStore = (*SQLite)(nil)

var errProviderRecordNotFound = fmt.Errorf("provider %w", domain.ErrNotFound)

const providerCols = "id, name, title, description, models, created_at, updated_at"

func (s *SQLite) CreateProvider(ctx context.Context, p *domain.Provider) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	models, err := json.Marshal(nonNil(p.Models))
	if err != nil {
		return fmt.Errorf("marshal provider models: %w", err)
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO providers ("+providerCols+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Title, p.Description, string(models), formatTime(now), formatTime(now),
	)
	return err
}

func (s *SQLite) GetProvider(ctx context.Context, id string) (*domain.Provider, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+providerCols+" FROM providers WHERE id = ?", id)
	p, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errProviderRecordNotFound
	}
	return p, err
}

func (s *SQLite) UpdateProvider(ctx context.Context, p *domain.Provider) error {
	models, err := json.Marshal(nonNil(p.Models))
	if err != nil {
		return fmt.Errorf("marshal provider models: %w", err)
	}
	now := time.Now().UTC()
	p.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		"UPDATE providers SET name = ?, title = ?, description = ?, models = ?, updated_at = ? WHERE id = ?",
		p.Name, p.Title, p.Description, string(models), formatTime(now), p.ID,
	)
	if err != nil {
		return err
	}
	return affected(res, errProviderRecordNotFound)
}

func (s *SQLite) DeleteProvider(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM providers WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affected(res, errProviderRecordNotFound)
}

func (s *SQLite) ListProviders(ctx context.Context) ([]*domain.Provider, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+providerCols+" FROM providers ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProvider(row scanner) (*domain.Provider, error) {
	var p domain.Provider
	var models, created, updated string
	if err := row.Scan(&p.ID, &p.Name, &p.Title, &p.Description, &models, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(models), &p.Models); err != nil {
		return nil, fmt.Errorf("unmarshal provider models: %w", err)
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
