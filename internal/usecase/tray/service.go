// Package tray manages the system tray icon that keeps the app reachable
// while the main window is hidden.
package tray

import (
	"log/slog"
	"sync"

	"noelle/internal/domain"
)

// ShowWindowID is the shortcut id of the global show-window accelerator.
const ShowWindowID = "tray.showWindow"

// ShowWindowAccelerator brings the main window back from anywhere.
const ShowWindowAccelerator = "CmdOrCtrl+N"

// Menu item ids.
const (
	ItemShowWindow = "showWindow"
	ItemSettings   = "settings"
	ItemQuit       = "quit"
)

// Shortcuts binds global accelerators by id.
type Shortcuts interface {
	Register(accelerator, id string, fn func()) bool
	Unregister(id string)
}

// Translator resolves i18n keys.
type Translator interface {
	T(key string) string
}

// Actions are the app operations reachable from the tray.
type Actions struct {
	ShowWindow  func()
	OpenSetting func()
	Quit        func()
}

// Service owns at most one tray icon.
type Service struct {
	factory    domain.TrayFactory
	shortcuts  Shortcuts
	translator Translator
	actions    Actions
	logger     *slog.Logger

	mu       sync.Mutex
	tray     domain.Tray
	unbindFn func()
}

// NewService creates a tray service with no icon.
func NewService(factory domain.TrayFactory, shortcuts Shortcuts, translator Translator, actions Actions, logger *slog.Logger) *Service {
	return &Service{
		factory:    factory,
		shortcuts:  shortcuts,
		translator: translator,
		actions:    actions,
		logger:     logger,
	}
}

// Create shows the tray icon, bound to the lifetime of owner. It does nothing
// when the icon already exists.
func (s *Service) Create(owner domain.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tray != nil {
		return nil
	}

	t, err := s.factory.NewTray()
	if err != nil {
		return domain.WrapOp("tray.Create", err)
	}
	s.tray = t
	s.buildLocked()
	t.OnClick(s.showWindow)
	if !s.shortcuts.Register(ShowWindowAccelerator, ShowWindowID, s.showWindow) {
		s.logger.Warn("tray shortcut unavailable", "accelerator", ShowWindowAccelerator)
	}
	if owner != nil {
		s.unbindFn = owner.OnClosed(s.Destroy)
	}
	s.logger.Info("tray created")
	return nil
}

// Destroy removes the icon and its global shortcut. Safe to call repeatedly.
func (s *Service) Destroy() {
	s.mu.Lock()
	t, unbind := s.tray, s.unbindFn
	s.tray, s.unbindFn = nil, nil
	s.mu.Unlock()
	if t == nil {
		return
	}
	t.Destroy()
	s.shortcuts.Unregister(ShowWindowID)
	if unbind != nil {
		unbind()
	}
	s.logger.Info("tray destroyed")
}

// Active reports whether the icon exists.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tray != nil
}

// Relabel rebuilds the tooltip and menu in the current language.
func (s *Service) Relabel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tray != nil {
		s.buildLocked()
	}
}

func (s *Service) buildLocked() {
	s.tray.SetToolTip(s.translator.T("tray.tooltip"))
	s.tray.SetMenu([]domain.MenuItem{
		{ID: ItemShowWindow, Label: s.translator.T("tray.showWindow"), Accelerator: ShowWindowAccelerator},
		{Type: domain.MenuSeparator},
		{ID: ItemSettings, Label: s.translator.T("settings.title")},
		{ID: ItemQuit, Label: s.translator.T("tray.exit")},
	}, s.onSelect)
}

func (s *Service) onSelect(id string) {
	s.logger.Info("user operation", "op", "tray:"+id)
	switch id {
	case ItemShowWindow:
		s.showWindow()
	case ItemSettings:
		call(s.actions.OpenSetting)
	case ItemQuit:
		call(s.actions.Quit)
	}
}

func (s *Service) showWindow() { call(s.actions.ShowWindow) }

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
