package desktop

import (
	"log/slog"
	"slices"
	"sync"

	"noelle/internal/domain"
)

// TrayFactory implements domain.TrayFactory and remembers the live tray.
type TrayFactory struct {
	logger *slog.Logger

	mu      sync.Mutex
	current *Tray
}

func (f *TrayFactory) NewTray() (domain.Tray, error) {
	t := &Tray{factory: f}
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
	f.logger.Debug("tray created")
	return t, nil
}

// Current returns the live tray, or nil.
func (f *TrayFactory) Current() *Tray {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Tray is an in-memory tray icon.
type Tray struct {
	factory *TrayFactory

	mu        sync.Mutex
	tooltip   string
	items     []domain.MenuItem
	onSelect  func(id string)
	onClick   func()
	destroyed bool
}

func (t *Tray) SetToolTip(text string) {
	t.mu.Lock()
	t.tooltip = text
	t.mu.Unlock()
}

func (t *Tray) SetMenu(items []domain.MenuItem, onClick func(id string)) {
	t.mu.Lock()
	t.items = slices.Clone(items)
	t.onSelect = onClick
	t.mu.Unlock()
}

func (t *Tray) OnClick(fn func()) {
	t.mu.Lock()
	t.onClick = fn
	t.mu.Unlock()
}

func (t *Tray) Destroy() {
	t.mu.Lock()
	t.destroyed = true
	t.mu.Unlock()

	t.factory.mu.Lock()
	if t.factory.current == t {
		t.factory.current = nil
	}
	t.factory.mu.Unlock()
}

// ToolTip returns the tooltip text.
func (t *Tray) ToolTip() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tooltip
}

// Items returns the current menu.
func (t *Tray) Items() []domain.MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.items)
}

// Destroyed reports whether the tray was removed.
func (t *Tray) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// Click simulates clicking the icon.
func (t *Tray) Click() {
	t.mu.Lock()
	fn := t.onClick
	dead := t.destroyed
	t.mu.Unlock()
	if fn != nil && !dead {
		fn()
	}
}

// Select simulates choosing a menu item.
func (t *Tray) Select(id string) {
	t.mu.Lock()
	fn := t.onSelect
	dead := t.destroyed
	t.mu.Unlock()
	if fn != nil && !dead {
		fn(id)
	}
}
