package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"noelle/internal/adapter/llm"
	"noelle/internal/adapter/settings"
	"noelle/internal/adapter/store"
	"noelle/internal/domain"
	"noelle/internal/infra/config"
	"noelle/internal/usecase/dialogue"
)

// CoreComponents holds settings, persistence and the dialogue pipeline.
type CoreComponents struct {
	Settings  *settings.Store
	Store     *store.SQLite
	Factory   *llm.Factory
	Dialogues *dialogue.Manager
	Recorder  *dialogue.Recorder
	Messenger *dialogue.Messenger
}

func initCore(ctx context.Context, cfg *config.Config, bus domain.EventBus, log *slog.Logger) (*CoreComponents, func(), error) {
	if err := os.MkdirAll(cfg.App.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("data dir: %w", err)
	}

	prefs := settings.New(cfg.App.SettingsPath(), log, bus)

	db, err := store.Open(cfg.App.DatabasePath())
	if err != nil {
		return nil, nil, err
	}

	if err := seedProviders(ctx, db, cfg.LLM.Providers, log); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("seed providers: %w", err)
	}

	factory := llm.NewFactory(prefs, cfg.LLM, llm.NewHTTPClient(cfg.LLM), log)
	sessions := dialogue.NewManager(factory, bus, log)
	recorder := dialogue.NewRecorder(sessions, db, log)
	messenger := dialogue.NewMessenger(dialogue.MessengerConfig{
		Sessions:      sessions,
		Recorder:      recorder,
		Messages:      db,
		Conversations: db,
		Providers:     db,
		Logger:        log,
	})

	failInterrupted(ctx, db, messenger, log)

	cleanup := func() {
		sessions.Close()
		if err := db.Close(); err != nil {
			log.Warn("store close", "error", err)
		}
	}
	return &CoreComponents{
		Settings:  prefs,
		Store:     db,
		Factory:   factory,
		Dialogues: sessions,
		Recorder:  recorder,
		Messenger: messenger,
	}, cleanup, nil
}

// seedProviders stores a descriptor for every configured provider the
// database does not know yet, so conversations can reference it.
func seedProviders(ctx context.Context, providers domain.ProviderStore, seed []config.ProviderConfig, log *slog.Logger) error {
	existing, err := providers.ListProviders(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.Name] = true
	}
	for _, pc := range seed {
		if known[pc.Name] || pc.Disabled {
			continue
		}
		p := &domain.Provider{Name: pc.Name, Title: pc.Name, Models: pc.Models}
		if err := providers.CreateProvider(ctx, p); err != nil {
			return err
		}
		known[pc.Name] = true
		log.Info("provider seeded", "name", pc.Name, "models", len(pc.Models))
	}
	return nil
}

// failInterrupted marks answers left loading by a previous run as errors;
// their streams died with that process.
func failInterrupted(ctx context.Context, db *store.SQLite, messenger *dialogue.Messenger, log *slog.Logger) {
	convs, err := db.ListConversations(ctx)
	if err != nil {
		log.Warn("scan interrupted messages", "error", err)
		return
	}
	for _, c := range convs {
		ids, err := messenger.LoadingIDs(ctx, c.ID)
		if err != nil {
			log.Warn("scan interrupted messages", "conversation_id", c.ID, "error", err)
			continue
		}
		for _, id := range ids {
			if err := db.UpdateMessageStatus(ctx, id, domain.StatusError); err != nil {
				log.Warn("mark interrupted message", "message_id", id, "error", err)
			}
		}
		if len(ids) > 0 {
			log.Info("interrupted answers marked failed", "conversation_id", c.ID, "count", len(ids))
		}
	}
}
