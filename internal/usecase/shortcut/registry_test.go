package shortcut

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noelle/internal/adapter/desktop"
	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

func newFixture(t *testing.T) (*Registry, *desktop.Backend) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := desktop.New(config.DisplayConfig{Platform: "linux"}, false, logger)
	return NewRegistry(b.Shortcuts, logger), b
}

func TestRegisterTracksID(t *testing.T) {
	r, b := newFixture(t)
	fired := 0
	require.True(t, r.Register(ShowWindow, "tray.showWindow", func() { fired++ }))

	assert.True(t, r.IsRegistered(ShowWindow))
	assert.Equal(t, map[string]string{"tray.showWindow": ShowWindow}, r.Registered())
	b.Shortcuts.Trigger(ShowWindow)
	assert.Equal(t, 1, fired)
}

func TestReRegisterReplacesBinding(t *testing.T) {
	r, b := newFixture(t)
	first, second := 0, 0
	require.True(t, r.Register(ShowWindow, "show", func() { first++ }))
	require.True(t, r.Register(ShowWindow, "show", func() { second++ }))

	b.Shortcuts.Trigger(ShowWindow)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	require.True(t, r.Register("CmdOrCtrl+M", "show", func() {}))
	assert.False(t, r.IsRegistered(ShowWindow))
}

func TestRegisterConflictFails(t *testing.T) {
	r, b := newFixture(t)
	require.True(t, b.Shortcuts.Register(ShowWindow, func() {}))

	assert.False(t, r.Register(ShowWindow, "show", func() {}))
	assert.Empty(t, r.Registered())
}

func TestRegisteredIsACopy(t *testing.T) {
	r, _ := newFixture(t)
	r.Register(ShowWindow, "show", func() {})
	got := r.Registered()
	got["other"] = "x"
	assert.Len(t, r.Registered(), 1)
}

func TestUnregister(t *testing.T) {
	r, _ := newFixture(t)
	r.Register(ShowWindow, "show", func() {})
	r.Unregister("show")
	r.Unregister("missing")
	assert.False(t, r.IsRegistered(ShowWindow))
	assert.Empty(t, r.Registered())
}

func TestWindowHandlers(t *testing.T) {
	r, b := newFixture(t)
	w, err := b.NewWindow(domain.WindowOptions{Name: domain.WindowMain})
	require.NoError(t, err)
	win := w.(*desktop.Window)

	hits := 0
	r.RegisterForWindow(win, "close", func(in domain.KeyInput) bool {
		if IsKeyDown(in, "w") && CmdOrCtrl(in, "linux") {
			hits++
			return true
		}
		return false
	})

	assert.True(t, win.Press(domain.KeyInput{Type: "keyDown", Key: "W", Control: true}))
	assert.False(t, win.Press(domain.KeyInput{Type: "keyUp", Key: "w", Control: true}))
	assert.Equal(t, 1, hits)

	r.UnregisterForWindow(win, "close")
	assert.False(t, win.Press(domain.KeyInput{Type: "keyDown", Key: "w", Control: true}))
}

func TestReleaseWindowAndUnregisterAll(t *testing.T) {
	r, b := newFixture(t)
	w, _ := b.NewWindow(domain.WindowOptions{Name: domain.WindowMain})
	win := w.(*desktop.Window)
	swallow := func(domain.KeyInput) bool { return true }

	r.RegisterForWindow(win, "a", swallow)
	r.RegisterForWindow(win, "b", swallow)
	r.ReleaseWindow(win)
	assert.False(t, win.Press(domain.KeyInput{Type: "keyDown", Key: "x"}))

	r.RegisterForWindow(win, "a", swallow)
	r.Register(ShowWindow, "show", func() {})
	r.UnregisterAll()
	assert.False(t, win.Press(domain.KeyInput{Type: "keyDown", Key: "x"}))
	assert.False(t, r.IsRegistered(ShowWindow))
}

func TestCmdOrCtrl(t *testing.T) {
	assert.True(t, CmdOrCtrl(domain.KeyInput{Meta: true}, "darwin"))
	assert.False(t, CmdOrCtrl(domain.KeyInput{Control: true}, "darwin"))
	assert.True(t, CmdOrCtrl(domain.KeyInput{Control: true}, "windows"))
}
