package desktop

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"noelle/internal/domain"
)

// PopupChannel carries a menu to the renderers, which draw it and answer
// through Choose.
const PopupChannel = "context-menu-popup"

// Popup is the payload pushed on PopupChannel.
type Popup struct {
	ID    string            `json:"id"`
	Items []domain.MenuItem `json:"items"`
}

var errPopupOpen = errors.New("popup already open")

// Presenter implements domain.MenuPresenter.
type Presenter struct {
	backend *Backend

	mu     sync.Mutex
	id     string
	items  []domain.MenuItem
	answer chan string
}

func NewPresenter(b *Backend) *Presenter {
	return &Presenter{backend: b}
}

// Popup shows items and blocks until an item is chosen, the popup is
// dismissed or ctx ends.
func (p *Presenter) Popup(ctx context.Context, items []domain.MenuItem) (string, error) {
	p.mu.Lock()
	if p.answer != nil {
		p.mu.Unlock()
		return "", errPopupOpen
	}
	id := uuid.NewString()
	answer := make(chan string, 1)
	p.id, p.items, p.answer = id, items, answer
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.id == id {
			p.id, p.items, p.answer = "", nil, nil
		}
		p.mu.Unlock()
	}()

	p.backend.broadcast(PopupChannel, Popup{ID: id, Items: items})

	select {
	case clicked := <-answer:
		return clicked, nil
	case <-ctx.Done():
		return "", nil
	}
}

// Open returns the visible popup, if any.
func (p *Presenter) Open() (Popup, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.answer == nil {
		return Popup{}, false
	}
	return Popup{ID: p.id, Items: p.items}, true
}

// Choose answers popup id with itemID. An empty itemID dismisses it. It
// reports whether the popup was still open and the item exists.
func (p *Presenter) Choose(popupID, itemID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.answer == nil || (popupID != "" && popupID != p.id) {
		return false
	}
	if itemID != "" && !selectable(p.items, itemID) {
		return false
	}
	p.answer <- itemID
	p.answer = nil
	return true
}

func selectable(items []domain.MenuItem, id string) bool {
	for _, it := range items {
		if it.ID == id && !it.Disabled && !it.Hidden && it.Type != domain.MenuSeparator && it.Type != domain.MenuSubmenu {
			return true
		}
		if selectable(it.Submenu, id) {
			return true
		}
	}
	return false
}
