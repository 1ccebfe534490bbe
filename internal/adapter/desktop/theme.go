package desktop

import (
	"sync"

	"noelle/internal/domain"
)

// Theme implements domain.NativeTheme over a simulated system appearance.
type Theme struct {
	mu        sync.Mutex
	source    string
	systemDk  bool
	nextID    int
	listeners map[int]func()
}

// NewTheme starts in system mode with the given system appearance.
func NewTheme(systemDark bool) *Theme {
	return &Theme{source: domain.ThemeSystem, systemDk: systemDark, listeners: make(map[int]func())}
}

func (t *Theme) SetSource(mode string) {
	t.mu.Lock()
	t.source = mode
	t.mu.Unlock()
}

func (t *Theme) Source() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source
}

func (t *Theme) ShouldUseDarkColors() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.source {
	case domain.ThemeDark:
		return true
	case domain.ThemeLight:
		return false
	default:
		return t.systemDk
	}
}

func (t *Theme) OnUpdated(fn func()) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// SetSystemDark simulates the OS appearance changing.
func (t *Theme) SetSystemDark(dark bool) {
	t.mu.Lock()
	if t.systemDk == dark {
		t.mu.Unlock()
		return
	}
	t.systemDk = dark
	fns := make([]func(), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
