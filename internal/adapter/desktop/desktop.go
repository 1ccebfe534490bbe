// Package desktop is a headless windowing backend. Windows, tray, menus and
// global shortcuts are kept in memory and their content is pushed to
// renderers through a Sink, typically the IPC gateway.
package desktop

import (
	"log/slog"
	"runtime"
	"sync"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

// Sink delivers events to renderer content.
type Sink interface {
	SendTo(contentID, channel string, payload any)
	Broadcast(channel string, payload any)
}

// Backend implements domain.Desktop.
type Backend struct {
	display  domain.Bounds
	platform string
	packaged bool
	logger   *slog.Logger

	Theme     *Theme
	Shortcuts *Shortcuts
	Trays     *TrayFactory
	Menus     *Presenter

	mu      sync.Mutex
	sink    Sink
	windows map[string]*Window
	focused string
}

// New creates a backend simulating the configured display.
func New(cfg config.DisplayConfig, packaged bool, logger *slog.Logger) *Backend {
	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	platform := cfg.Platform
	if platform == "" {
		platform = runtime.GOOS
	}
	b := &Backend{
		display:  domain.Bounds{Width: width, Height: height},
		platform: platform,
		packaged: packaged,
		logger:   logger,
		windows:  make(map[string]*Window),
	}
	b.Theme = NewTheme(cfg.Dark)
	b.Shortcuts = NewShortcuts()
	b.Trays = &TrayFactory{logger: logger}
	b.Menus = NewPresenter(b)
	return b
}

// SetSink routes window and menu output. A nil sink drops it.
func (b *Backend) SetSink(s Sink) {
	b.mu.Lock()
	b.sink = s
	b.mu.Unlock()
}

// NewWindow implements domain.Desktop.
func (b *Backend) NewWindow(opts domain.WindowOptions) (domain.Window, error) {
	w := newWindow(b, opts)
	b.mu.Lock()
	b.windows[w.id] = w
	b.mu.Unlock()
	b.logger.Debug("native window created", "name", opts.Name, "content_id", w.id)
	return w, nil
}

// PrimaryDisplay implements domain.Desktop.
func (b *Backend) PrimaryDisplay() domain.Bounds { return b.display }

// Platform implements domain.Desktop.
func (b *Backend) Platform() string { return b.platform }

// Packaged implements domain.Desktop.
func (b *Backend) Packaged() bool { return b.packaged }

// Window returns the live window hosting contentID.
func (b *Backend) Window(contentID string) (*Window, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[contentID]
	return w, ok
}

// Windows returns every live window.
func (b *Backend) Windows() []*Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Window, 0, len(b.windows))
	for _, w := range b.windows {
		out = append(out, w)
	}
	return out
}

func (b *Backend) send(contentID, channel string, payload any) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink == nil {
		b.logger.Debug("event dropped, no sink", "content_id", contentID, "channel", channel)
		return
	}
	sink.SendTo(contentID, channel, payload)
}

func (b *Backend) broadcast(channel string, payload any) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink != nil {
		sink.Broadcast(channel, payload)
	}
}

func (b *Backend) focus(contentID string) {
	b.mu.Lock()
	prev := b.focused
	b.focused = contentID
	var old *Window
	if prev != contentID {
		old = b.windows[prev]
	}
	b.mu.Unlock()
	if old != nil {
		old.blur()
	}
}

func (b *Backend) forget(contentID string) {
	b.mu.Lock()
	delete(b.windows, contentID)
	if b.focused == contentID {
		b.focused = ""
	}
	b.mu.Unlock()
}
