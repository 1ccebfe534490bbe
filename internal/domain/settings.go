package domain

// Recognized settings keys.
const (
	KeyThemeMode      = "themeMode"
	KeyPrimaryColor   = "primaryColor"
	KeyLanguage       = "language"
	KeyFontSize       = "fontSize"
	KeyMinimizeToTray = "minimizeToTray"
	KeyProvider       = "provider"
	KeyDefaultModel   = "defaultModel"
)

// Theme modes.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Settings is a snapshot of user preferences keyed by setting name.
type Settings map[string]any

// Settings store contract. Writes persist to disk before listeners run.
type SettingsStore interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Update(partial map[string]any) error
	All() Settings
	OnChange(fn func(Settings)) func()
}

// Bool reads a boolean setting, false when absent or mistyped.
func (s Settings) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// String reads a string setting, "" when absent or mistyped.
func (s Settings) String(key string) string {
	v, _ := s[key].(string)
	return v
}
