// Package menu keeps the context-menu templates and pops them up on request,
// with per-call overrides merged into matching items.
package menu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"noelle/internal/domain"
)

// Translator resolves i18n keys.
type Translator interface {
	T(key string) string
}

// ClickFunc receives the id of the clicked item.
type ClickFunc func(itemID string)

// Override is a per-call change to one template item, addressed by id.
type Override struct {
	ID      string  `json:"id"`
	Label   *string `json:"label,omitempty"`
	Checked *bool   `json:"checked,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
	Visible *bool   `json:"visible,omitempty"`
}

type template struct {
	items   []domain.MenuItem
	onClick ClickFunc
}

// Registry holds menu templates by id. Only one menu is shown at a time.
type Registry struct {
	presenter  domain.MenuPresenter
	translator Translator
	bus        domain.EventBus
	logger     *slog.Logger

	mu        sync.Mutex
	templates map[string]template
	current   string
}

// NewRegistry creates an empty registry. bus may be nil.
func NewRegistry(presenter domain.MenuPresenter, translator Translator, bus domain.EventBus, logger *slog.Logger) *Registry {
	return &Registry{
		presenter:  presenter,
		translator: translator,
		bus:        bus,
		logger:     logger,
		templates:  make(map[string]template),
	}
}

// Register adds or replaces the template for menuID.
func (r *Registry) Register(menuID string, items []domain.MenuItem, onClick ClickFunc) {
	r.mu.Lock()
	r.templates[menuID] = template{items: cloneItems(items), onClick: onClick}
	r.mu.Unlock()
}

// Unregister drops the template for menuID.
func (r *Registry) Unregister(menuID string) {
	r.mu.Lock()
	delete(r.templates, menuID)
	r.mu.Unlock()
}

// Has reports whether menuID is registered.
func (r *Registry) Has(menuID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.templates[menuID]
	return ok
}

// Showing returns the id of the menu currently on screen, or "".
func (r *Registry) Showing() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Show pops up menuID and blocks until it is dismissed. It returns the clicked
// item id, or "" when the menu was dismissed or does not exist. overrides is
// a JSON array of Override, or a JSON string holding one.
func (r *Registry) Show(ctx context.Context, menuID string, overrides json.RawMessage) (string, error) {
	r.mu.Lock()
	if r.current != "" {
		r.mu.Unlock()
		return "", domain.NewDomainError("menu.Show", domain.ErrMenuBusy, r.current)
	}
	tpl, ok := r.templates[menuID]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("menu template not found", "menu", menuID)
		return "", nil
	}
	r.current = menuID
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.current = ""
		r.mu.Unlock()
	}()

	dyn, err := ParseOverrides(overrides)
	if err != nil {
		r.logger.Warn("menu overrides ignored", "menu", menuID, "error", err)
		dyn = nil
	}
	items := r.translate(Merge(cloneItems(tpl.items), dyn))

	clicked, err := r.presenter.Popup(ctx, items)
	if err != nil {
		return "", domain.WrapOp("menu.Show", err)
	}
	if clicked == "" {
		return "", nil
	}

	r.logger.Info("user operation", "op", fmt.Sprintf("show-context-menu:%s-%s", menuID, clicked))
	if r.bus != nil {
		r.bus.Publish(ctx, domain.NewEvent(domain.EventMenuClicked, domain.MenuClickedPayload{MenuID: menuID, ItemID: clicked}))
	}
	if tpl.onClick != nil {
		tpl.onClick(clicked)
	}
	return clicked, nil
}

// ParseOverrides decodes an override list. Empty input yields nil.
func ParseOverrides(raw json.RawMessage) ([]Override, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("parse overrides: %w", err)
		}
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}
	var out []Override
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	return out, nil
}

// Merge applies overrides to matching items at the top level, and to the
// children of submenus whose own id has no override.
func Merge(items []domain.MenuItem, overrides []Override) []domain.MenuItem {
	if len(overrides) == 0 {
		return items
	}
	byID := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		byID[o.ID] = o
	}
	for i := range items {
		if o, ok := byID[items[i].ID]; ok && items[i].ID != "" {
			apply(&items[i], o)
			continue
		}
		for j := range items[i].Submenu {
			if o, ok := byID[items[i].Submenu[j].ID]; ok && items[i].Submenu[j].ID != "" {
				apply(&items[i].Submenu[j], o)
			}
		}
	}
	return items
}

func apply(item *domain.MenuItem, o Override) {
	if o.Label != nil {
		item.Label = *o.Label
	}
	if o.Checked != nil {
		item.Checked = *o.Checked
	}
	if o.Enabled != nil {
		item.Disabled = !*o.Enabled
	}
	if o.Visible != nil {
		item.Hidden = !*o.Visible
	}
}

func (r *Registry) translate(items []domain.MenuItem) []domain.MenuItem {
	for i := range items {
		if items[i].Label != "" {
			items[i].Label = r.translator.T(items[i].Label)
		}
		if len(items[i].Submenu) > 0 {
			items[i].Submenu = r.translate(items[i].Submenu)
		}
	}
	return items
}

func cloneItems(items []domain.MenuItem) []domain.MenuItem {
	if items == nil {
		return nil
	}
	out := make([]domain.MenuItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].Submenu = cloneItems(it.Submenu)
	}
	return out
}
