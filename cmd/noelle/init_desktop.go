package main

import (
	"context"
	"fmt"
	"log/slog"

	"noelle/internal/adapter/desktop"
	"noelle/internal/domain"
	"noelle/internal/infra/config"
	"noelle/internal/infra/i18n"
	"noelle/internal/usecase/menu"
	"noelle/internal/usecase/shortcut"
	"noelle/internal/usecase/theme"
	"noelle/internal/usecase/tray"
	"noelle/internal/usecase/window"
	"noelle/internal/usecase/wins"
)

// DesktopComponents holds the windowing side of the app.
type DesktopComponents struct {
	Backend    *desktop.Backend
	Theme      *theme.Service
	Windows    *window.Manager
	Shortcuts  *shortcut.Registry
	Menus      *menu.Registry
	Tray       *tray.Service
	Scenes     *wins.Scenes
	Translator *i18n.Translator
}

func initDesktop(cfg *config.Config, core *CoreComponents, bus domain.EventBus, log *slog.Logger, quit context.CancelFunc) (*DesktopComponents, func(), error) {
	backend := desktop.New(cfg.Display, cfg.App.Packaged, log)

	lang, _ := core.Settings.Get(domain.KeyLanguage)
	langStr, _ := lang.(string)
	translator, err := i18n.New(langStr)
	if err != nil {
		return nil, nil, fmt.Errorf("i18n: %w", err)
	}

	themes := theme.NewService(backend.Theme, core.Settings, bus, log)
	themes.Init()

	policy := window.SettingsPolicy{Settings: core.Settings}
	windows := window.NewManager(window.Config{
		Desktop:    backend,
		Policy:     policy,
		Appearance: themes,
		Bus:        bus,
		Logger:     log,
	})

	shortcuts := shortcut.NewRegistry(backend.Shortcuts, log)
	menus := menu.NewRegistry(backend.Menus, translator, bus, log)

	scenes := &wins.Scenes{
		Setting: wins.NewSetting(windows, shortcuts, log),
		Dialog:  wins.NewDialog(windows, shortcuts, log),
	}
	trays := tray.NewService(backend.Trays, shortcuts, translator, tray.Actions{
		ShowWindow: func() { scenes.Main.ShowWindow() },
		OpenSetting: func() {
			if _, err := scenes.Setting.Open(); err != nil {
				log.Error("open setting window from tray", "error", err)
			}
		},
		Quit: quit,
	}, log)
	scenes.Main = wins.NewMain(wins.MainConfig{
		Windows:   windows,
		Tray:      trays,
		Menus:     menus,
		Shortcuts: shortcuts,
		Settings:  core.Settings,
		Language:  translator,
		Bus:       bus,
		Platform:  backend.Platform(),
		Logger:    log,
	})
	scenes.Main.Start()

	// With minimize-to-tray on, closing the last window leaves the app in
	// the tray.
	stopAllClosed := windows.OnAllClosed(func() {
		if policy.MinimizeToTray() {
			return
		}
		log.Info("all windows closed, quitting")
		quit()
	})

	cleanup := func() {
		stopAllClosed()
		scenes.Main.Stop()
		trays.Destroy()
		windows.CloseAll()
		shortcuts.UnregisterAll()
		themes.Close()
	}
	return &DesktopComponents{
		Backend:    backend,
		Theme:      themes,
		Windows:    windows,
		Shortcuts:  shortcuts,
		Menus:      menus,
		Tray:       trays,
		Scenes:     scenes,
		Translator: translator,
	}, cleanup, nil
}
