package wins

import (
	"log/slog"
	"sync"

	"noelle/internal/domain"
	"noelle/internal/usecase/window"
)

// Setting is the preferences window scene.
type Setting struct {
	windows   Windows
	shortcuts WindowShortcuts
	logger    *slog.Logger

	mu    sync.Mutex
	bound map[string]bool
}

func NewSetting(windows Windows, shortcuts WindowShortcuts, logger *slog.Logger) *Setting {
	return &Setting{windows: windows, shortcuts: shortcuts, logger: logger, bound: make(map[string]bool)}
}

// Open focuses the setting window when it is open, or opens it.
func (s *Setting) Open() (domain.Window, error) {
	if win := s.windows.Get(domain.WindowSetting); win != nil && !win.IsDestroyed() {
		s.windows.Focus(win)
		return win, nil
	}
	win, err := s.windows.Create(domain.WindowSetting, SettingSize, window.CreateOptions{})
	if err != nil {
		return nil, err
	}

	id := win.ContentID()
	s.mu.Lock()
	fresh := !s.bound[id]
	s.bound[id] = true
	s.mu.Unlock()
	if fresh {
		s.shortcuts.RegisterForWindow(win, domain.WindowSetting, func(in domain.KeyInput) bool {
			if !closeKey(in) {
				return false
			}
			if win.IsFocused() {
				s.windows.Close(win, false)
			}
			return true
		})
		win.OnClosed(func() {
			s.shortcuts.ReleaseWindow(win)
			s.mu.Lock()
			delete(s.bound, id)
			s.mu.Unlock()
		})
	}
	return win, nil
}
