package main

import (
	"log/slog"

	"github.com/google/uuid"

	"noelle/internal/adapter/gateway"
	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

func initGateway(cfg *config.Config, core *CoreComponents, desk *DesktopComponents, bus domain.EventBus, log *slog.Logger) (*gateway.Server, func()) {
	tokens := cfg.Gateway.Auth.Tokens
	if len(tokens) == 0 {
		// Renderers launched by this process receive the token on their URL.
		token := uuid.NewString()
		tokens = []config.TokenConfig{{Token: token, Name: "renderer"}}
		log.Info("gateway token generated", "token", token)
	}

	server := gateway.NewServer(bus, gateway.NewStaticTokenAuth(tokens), cfg.Gateway, log)
	desk.Backend.SetSink(server)

	deps := gateway.HandlerDeps{
		Windows:       desk.Windows,
		Scenes:        desk.Scenes,
		Dialog:        desk.Scenes.Dialog,
		Theme:         desk.Theme,
		Menus:         desk.Menus,
		MenuChooser:   desk.Backend.Menus,
		Dialogues:     core.Dialogues,
		Messages:      core.Messenger,
		Settings:      core.Settings,
		Conversations: core.Store,
		History:       core.Store,
		Providers:     core.Store,
		Bus:           bus,
		Logger:        log,
		Version:       version,
	}
	flush := gateway.RegisterDefaultHandlers(server, deps)
	gateway.RegisterRESTHandlers(server, deps)
	return server, flush
}
