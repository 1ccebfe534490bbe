package domain

import "context"

// MenuItemType mirrors native menu item kinds.
type MenuItemType string

const (
	MenuNormal    MenuItemType = "normal"
	MenuSeparator MenuItemType = "separator"
	MenuRadio     MenuItemType = "radio"
	MenuCheckbox  MenuItemType = "checkbox"
	MenuSubmenu   MenuItemType = "submenu"
)

// MenuItem is one entry of a context or tray menu. Label holds an i18n key in
// templates and the translated text once built.
type MenuItem struct {
	ID          string       `json:"id"`
	Type        MenuItemType `json:"type,omitempty"`
	Label       string       `json:"label,omitempty"`
	Accelerator string       `json:"accelerator,omitempty"`
	Checked     bool         `json:"checked,omitempty"`
	Disabled    bool         `json:"disabled,omitempty"`
	Hidden      bool         `json:"hidden,omitempty"`
	Submenu     []MenuItem   `json:"submenu,omitempty"`
}

// MenuPresenter pops up a built menu and blocks until it closes, returning the
// clicked item id or "" when dismissed.
type MenuPresenter interface {
	Popup(ctx context.Context, items []MenuItem) (string, error)
}

// Tray is a system tray icon.
type Tray interface {
	SetToolTip(text string)
	SetMenu(items []MenuItem, onClick func(id string))
	// OnClick replaces the icon click handler.
	OnClick(fn func())
	Destroy()
}

// TrayFactory creates tray icons.
type TrayFactory interface {
	NewTray() (Tray, error)
}

// GlobalShortcuts registers system-wide accelerators.
type GlobalShortcuts interface {
	Register(accelerator string, fn func()) bool
	Unregister(accelerator string)
	UnregisterAll()
	IsRegistered(accelerator string) bool
}
