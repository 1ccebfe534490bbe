// Package shortcut tracks global accelerators by logical id and binds
// window-local key handlers.
package shortcut

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"noelle/internal/domain"
)

// Registry maps shortcut ids to their registered accelerators.
type Registry struct {
	global domain.GlobalShortcuts
	logger *slog.Logger

	mu        sync.Mutex
	byID      map[string]string
	windowOff map[string]func()
}

// NewRegistry wraps the platform's global shortcut table.
func NewRegistry(global domain.GlobalShortcuts, logger *slog.Logger) *Registry {
	return &Registry{
		global:    global,
		logger:    logger,
		byID:      make(map[string]string),
		windowOff: make(map[string]func()),
	}
}

// Register binds accelerator to fn under id, replacing any earlier binding
// of the same id. It reports whether the platform accepted it.
func (r *Registry) Register(accelerator, id string, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byID[id]; ok {
		r.global.Unregister(prev)
		delete(r.byID, id)
	}
	if !r.global.Register(accelerator, fn) {
		r.logger.Warn("shortcut registration failed", "id", id, "accelerator", accelerator)
		return false
	}
	r.byID[id] = accelerator
	r.logger.Debug("shortcut registered", "id", id, "accelerator", accelerator)
	return true
}

// Unregister removes the binding for id, if any.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if accel, ok := r.byID[id]; ok {
		r.global.Unregister(accel)
		delete(r.byID, id)
	}
}

// UnregisterAll drops every global binding and window handler.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	offs := make([]func(), 0, len(r.windowOff))
	for _, off := range r.windowOff {
		offs = append(offs, off)
	}
	r.windowOff = make(map[string]func())
	r.byID = make(map[string]string)
	r.mu.Unlock()

	r.global.UnregisterAll()
	for _, off := range offs {
		off()
	}
}

// IsRegistered reports whether accelerator is currently bound.
func (r *Registry) IsRegistered(accelerator string) bool {
	return r.global.IsRegistered(accelerator)
}

// Registered returns a copy of the id to accelerator table.
func (r *Registry) Registered() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.byID)
}

// RegisterForWindow attaches a key handler to win under id, scoped to that
// window. A handler returning true swallows the input.
func (r *Registry) RegisterForWindow(win domain.Window, id string, handler func(domain.KeyInput) bool) {
	key := windowKey(win, id)
	off := win.OnInput(handler)

	r.mu.Lock()
	prev := r.windowOff[key]
	r.windowOff[key] = off
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// UnregisterForWindow removes the handler registered under id for win.
func (r *Registry) UnregisterForWindow(win domain.Window, id string) {
	key := windowKey(win, id)
	r.mu.Lock()
	off := r.windowOff[key]
	delete(r.windowOff, key)
	r.mu.Unlock()
	if off != nil {
		off()
	}
}

// ReleaseWindow removes every handler bound to win.
func (r *Registry) ReleaseWindow(win domain.Window) {
	prefix := windowKey(win, "")
	var offs []func()
	r.mu.Lock()
	for key, off := range r.windowOff {
		if strings.HasPrefix(key, prefix) {
			offs = append(offs, off)
			delete(r.windowOff, key)
		}
	}
	r.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

func windowKey(win domain.Window, id string) string {
	return fmt.Sprintf("window_%s_%s", win.ContentID(), id)
}
