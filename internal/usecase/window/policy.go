package window

import "noelle/internal/domain"

// ClosePolicy decides between hiding and destroying a window on a close
// request, and whether the app keeps running in the tray.
type ClosePolicy interface {
	MinimizeToTray() bool
	ReallyClose(name string) bool
}

// SettingsReader is the read side of the settings store.
type SettingsReader interface {
	Get(key string) (any, bool)
}

// SettingsPolicy derives the close policy from user settings: the main window
// is destroyed only when minimize-to-tray is off, the setting window is always
// hidden for reuse and anything else is destroyed.
type SettingsPolicy struct {
	Settings SettingsReader
}

func (p SettingsPolicy) MinimizeToTray() bool {
	v, _ := p.Settings.Get(domain.KeyMinimizeToTray)
	b, _ := v.(bool)
	return b
}

func (p SettingsPolicy) ReallyClose(name string) bool {
	switch name {
	case domain.WindowMain:
		return !p.MinimizeToTray()
	case domain.WindowSetting:
		return false
	default:
		return true
	}
}
