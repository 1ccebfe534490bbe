package wins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"noelle/internal/domain"
	"noelle/internal/usecase/window"
)

// Dialog feedback values.
const (
	FeedbackConfirm = "confirm"
	FeedbackCancel  = "cancel"
)

// Dialog is the modal dialog scene. Opening it blocks until the dialog window
// closes and yields the feedback its content gave.
type Dialog struct {
	windows   Windows
	shortcuts WindowShortcuts
	logger    *slog.Logger

	mu       sync.Mutex
	win      domain.Window
	params   map[string]any
	feedback string
	waiters  []chan string
}

func NewDialog(windows Windows, shortcuts WindowShortcuts, logger *slog.Logger) *Dialog {
	return &Dialog{windows: windows, shortcuts: shortcuts, logger: logger}
}

// Open shows the dialog owned by parent with params, and waits for it to
// close. The result is confirm, cancel or "" when the dialog was closed
// without feedback. A cancelled ctx stops the wait, not the dialog.
func (d *Dialog) Open(ctx context.Context, parent domain.Window, params json.RawMessage) (string, error) {
	p, err := decodeParams(params)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.params = p
	d.mu.Unlock()

	win, err := d.windows.Create(domain.WindowDialog, DialogSize, window.CreateOptions{Parent: parent, FixedSize: true})
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	fresh := d.win != win
	if fresh {
		d.win = win
		d.feedback = ""
	}
	d.mu.Unlock()

	if fresh {
		d.shortcuts.RegisterForWindow(win, domain.WindowDialog, func(in domain.KeyInput) bool {
			if !closeKey(in) || !win.IsFocused() {
				return false
			}
			d.windows.Close(win, true)
			return true
		})
		win.OnClosed(func() { d.onClosed(win) })
		if win.IsDestroyed() {
			d.onClosed(win)
		}
	}

	done := make(chan string, 1)
	d.mu.Lock()
	if d.win != win {
		d.mu.Unlock()
		return "", nil
	}
	d.waiters = append(d.waiters, done)
	d.mu.Unlock()

	select {
	case fb := <-done:
		return fb, nil
	case <-ctx.Done():
		d.dropWaiter(done)
		return "", ctx.Err()
	}
}

// Params returns the open parameters to the dialog's own content, with its
// window id under winId.
func (d *Dialog) Params(contentID string) (map[string]any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.win == nil || d.win.ContentID() != contentID {
		return nil, false
	}
	out := make(map[string]any, len(d.params)+1)
	for k, v := range d.params {
		out[k] = v
	}
	out["winId"] = contentID
	return out, true
}

// Feedback records confirm or cancel from the dialog's content and closes
// the dialog. winID must name the sender's own window.
func (d *Dialog) Feedback(contentID, winID, kind string) bool {
	if kind != FeedbackConfirm && kind != FeedbackCancel {
		return false
	}
	if winID != contentID {
		return false
	}
	d.mu.Lock()
	win := d.win
	if win == nil || win.ContentID() != contentID {
		d.mu.Unlock()
		return false
	}
	d.feedback = kind
	d.mu.Unlock()

	d.logger.Info("user operation", "op", fmt.Sprintf("%s:%s", domain.WindowDialog, kind))
	d.windows.Close(win, true)
	return true
}

func (d *Dialog) onClosed(win domain.Window) {
	d.shortcuts.ReleaseWindow(win)
	d.mu.Lock()
	if d.win != win {
		d.mu.Unlock()
		return
	}
	fb, waiters := d.feedback, d.waiters
	d.win, d.params, d.feedback, d.waiters = nil, nil, "", nil
	d.mu.Unlock()
	for _, w := range waiters {
		w <- fb
	}
}

func (d *Dialog) dropWaiter(done chan string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range d.waiters {
		if w == done {
			d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)
			return
		}
	}
}

func decodeParams(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	var p map[string]any
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, domain.NewDomainError("dialog.Open", domain.ErrInvalidInput, "params must be an object")
	}
	return p, nil
}
