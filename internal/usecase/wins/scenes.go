// Package wins holds the per-window scenes: what each named window does
// around the generic lifecycle of the window registry.
package wins

import (
	"context"
	"encoding/json"
	"fmt"

	"noelle/internal/domain"
	"noelle/internal/usecase/window"
)

// Window sizes.
var (
	MainSize    = domain.SizeSpec{Width: 1024, Height: 800, MinWidth: 1024, MinHeight: 800}
	SettingSize = domain.SizeSpec{Width: 800, Height: 600, MinWidth: 800, MinHeight: 600}
	DialogSize  = domain.SizeSpec{Width: 350, Height: 200, MinWidth: 350, MinHeight: 200, MaxWidth: 400, MaxHeight: 300}
)

// Renderer channels pushed by the scenes.
const (
	ChannelShortcutCalled  = "shortcut-called"
	ChannelShowContextMenu = "show-context-menu"
)

// Windows is the window registry as seen by the scenes.
type Windows interface {
	Create(name string, size domain.SizeSpec, opts window.CreateOptions) (domain.Window, error)
	Close(win domain.Window, reallyClose bool)
	Focus(win domain.Window)
	Get(name string) domain.Window
}

// WindowShortcuts binds key handlers to single windows.
type WindowShortcuts interface {
	RegisterForWindow(win domain.Window, id string, handler func(domain.KeyInput) bool)
	ReleaseWindow(win domain.Window)
}

// Scenes routes open requests to the scene owning the window name.
type Scenes struct {
	Main    *Main
	Setting *Setting
	Dialog  *Dialog
}

// Open opens name on behalf of requester. Only the dialog produces a result:
// the feedback its content gave before it closed.
func (s *Scenes) Open(ctx context.Context, name string, requester domain.Window, params json.RawMessage) (string, error) {
	switch name {
	case domain.WindowMain:
		s.Main.ShowWindow()
		return "", nil
	case domain.WindowSetting:
		_, err := s.Setting.Open()
		return "", err
	case domain.WindowDialog:
		return s.Dialog.Open(ctx, requester, params)
	default:
		return "", domain.NewDomainError("wins.Open", domain.ErrWindowNotFound, fmt.Sprintf("unknown window %q", name))
	}
}

func closeKey(in domain.KeyInput) bool {
	return in.Type == "keyDown" && in.Control && (in.Key == "w" || in.Key == "W")
}
