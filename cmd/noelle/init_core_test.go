package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

type memProviders struct {
	list      []*domain.Provider
	createErr error
}

func (m *memProviders) CreateProvider(_ context.Context, p *domain.Provider) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.list = append(m.list, p)
	return nil
}

func (m *memProviders) GetProvider(context.Context, string) (*domain.Provider, error) {
	return nil, domain.ErrNotFound
}
func (m *memProviders) UpdateProvider(context.Context, *domain.Provider) error { return nil }
func (m *memProviders) DeleteProvider(context.Context, string) error           { return nil }
func (m *memProviders) ListProviders(context.Context) ([]*domain.Provider, error) {
	return m.list, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSeedProvidersAddsMissingOnly(t *testing.T) {
	store := &memProviders{list: []*domain.Provider{{Name: "openai", Title: "OpenAI"}}}
	seed := []config.ProviderConfig{
		{Name: "openai", Models: []string{"gpt-4o"}},
		{Name: "deepseek", Models: []string{"deepseek-chat"}},
		{Name: "gemini", Disabled: true},
		{Name: "deepseek"},
	}

	if err := seedProviders(context.Background(), store, seed, quietLogger()); err != nil {
		t.Fatalf("seedProviders: %v", err)
	}
	if len(store.list) != 2 {
		t.Fatalf("providers = %d, want 2", len(store.list))
	}
	if store.list[0].Title != "OpenAI" {
		t.Errorf("existing provider overwritten: %+v", store.list[0])
	}
	added := store.list[1]
	if added.Name != "deepseek" || len(added.Models) != 1 || added.Models[0] != "deepseek-chat" {
		t.Errorf("seeded provider = %+v", added)
	}
}

func TestSeedProvidersReportsStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	store := &memProviders{createErr: boom}
	err := seedProviders(context.Background(), store, []config.ProviderConfig{{Name: "openai"}}, quietLogger())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
