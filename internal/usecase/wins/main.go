package wins

import (
	"context"
	"log/slog"
	"sync"

	"noelle/internal/domain"
	"noelle/internal/usecase/menu"
	"noelle/internal/usecase/shortcut"
	"noelle/internal/usecase/window"
)

// TrayController is the tray as seen by the main scene.
type TrayController interface {
	Create(owner domain.Window) error
	Destroy()
	Relabel()
}

// MenuRegistrar stores context-menu templates.
type MenuRegistrar interface {
	Register(menuID string, items []domain.MenuItem, onClick menu.ClickFunc)
}

// Language switches the active UI catalog.
type Language interface {
	SetLanguage(lang string)
	Language() string
}

// MainConfig wires the main scene.
type MainConfig struct {
	Windows   Windows
	Tray      TrayController
	Menus     MenuRegistrar
	Shortcuts WindowShortcuts
	Settings  domain.SettingsStore
	Language  Language
	Bus       domain.EventBus
	Platform  string
	Logger    *slog.Logger
}

// Main is the main window scene: tray, context menus and keyboard handling.
type Main struct {
	cfg MainConfig

	mu       sync.Mutex
	win      domain.Window
	tray     bool
	language string
	unsub    func()
}

// NewMain creates the main scene. Call Start before Open.
func NewMain(cfg MainConfig) *Main {
	return &Main{cfg: cfg}
}

// Start registers the context menus and follows settings changes.
func (m *Main) Start() {
	for id, items := range menu.Templates() {
		m.cfg.Menus.Register(id, items, m.menuClick(id))
	}
	all := m.cfg.Settings.All()
	lang := all.String(domain.KeyLanguage)
	m.mu.Lock()
	m.tray = all.Bool(domain.KeyMinimizeToTray)
	m.language = lang
	m.unsub = m.cfg.Settings.OnChange(m.onSettings)
	m.mu.Unlock()
	if lang != "" {
		m.cfg.Language.SetLanguage(lang)
	}
}

// Stop detaches from settings changes.
func (m *Main) Stop() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Open creates or reveals the main window.
func (m *Main) Open() (domain.Window, error) {
	win, err := m.cfg.Windows.Create(domain.WindowMain, MainSize, window.CreateOptions{})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	fresh := m.win != win
	m.win = win
	tray := m.tray
	m.mu.Unlock()

	if fresh {
		m.cfg.Shortcuts.RegisterForWindow(win, domain.WindowMain, m.onInput(win))
		win.OnClosed(func() { m.cfg.Shortcuts.ReleaseWindow(win) })
		m.applyTray(tray, win)
	}
	return win, nil
}

// Window returns the live main window, or nil.
func (m *Main) Window() domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.win == nil || m.win.IsDestroyed() {
		return nil
	}
	return m.win
}

// ShowWindow focuses the main window when it is on screen and brings it
// back otherwise.
func (m *Main) ShowWindow() {
	if win := m.cfg.Windows.Get(domain.WindowMain); win != nil && win.IsVisible() {
		m.cfg.Windows.Focus(win)
		return
	}
	if _, err := m.Open(); err != nil {
		m.cfg.Logger.Error("show main window failed", "error", err)
	}
}

func (m *Main) onInput(win domain.Window) func(domain.KeyInput) bool {
	return func(in domain.KeyInput) bool {
		if in.Type != "keyDown" {
			return false
		}
		if in.Alt && in.Key == "F4" && m.cfg.Platform != "darwin" {
			m.closeWindow(win)
			return true
		}
		if closeKey(in) {
			m.closeWindow(win)
			return true
		}
		if in.Control && in.Key == "Enter" {
			win.Send(ChannelShortcutCalled, shortcut.SendMessage)
		}
		return false
	}
}

func (m *Main) closeWindow(win domain.Window) {
	m.mu.Lock()
	tray := m.tray
	m.mu.Unlock()
	m.cfg.Windows.Close(win, !tray)
}

func (m *Main) menuClick(menuID string) menu.ClickFunc {
	return func(itemID string) {
		win := m.Window()
		if win == nil {
			return
		}
		win.Send(ChannelShowContextMenu+":"+menuID, itemID)
	}
}

func (m *Main) onSettings(s domain.Settings) {
	tray := s.Bool(domain.KeyMinimizeToTray)
	lang := s.String(domain.KeyLanguage)

	m.mu.Lock()
	trayChanged := tray != m.tray
	langChanged := lang != "" && lang != m.language
	m.tray = tray
	if langChanged {
		m.language = lang
	}
	win := m.win
	m.mu.Unlock()

	if trayChanged && win != nil && !win.IsDestroyed() {
		m.applyTray(tray, win)
	}
	if langChanged {
		m.cfg.Language.SetLanguage(lang)
		m.cfg.Tray.Relabel()
		m.cfg.Logger.Info("language changed", "language", m.cfg.Language.Language())
		if m.cfg.Bus != nil {
			m.cfg.Bus.Publish(context.Background(), domain.NewEvent(domain.EventLanguageChanged, map[string]string{
				"language": m.cfg.Language.Language(),
			}))
		}
	}
}

func (m *Main) applyTray(want bool, win domain.Window) {
	if !want {
		m.cfg.Tray.Destroy()
		return
	}
	if err := m.cfg.Tray.Create(win); err != nil {
		m.cfg.Logger.Error("tray create failed", "error", err)
	}
}
