// Package theme resolves the user's theme mode against the platform
// appearance and announces effective light/dark flips.
package theme

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"noelle/internal/domain"
)

// DefaultPrimaryColor is the accent used when the setting is unset.
const DefaultPrimaryColor = "#BB5BE7"

// Settings is the subset of the settings store the service reads and writes.
type Settings interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
}

// Service owns the theme source of the desktop backend.
type Service struct {
	native   domain.NativeTheme
	settings Settings
	bus      domain.EventBus
	logger   *slog.Logger

	mu       sync.Mutex
	lastDark bool
	unhook   func()
}

// NewService creates a theme service. bus may be nil.
func NewService(native domain.NativeTheme, settings Settings, bus domain.EventBus, logger *slog.Logger) *Service {
	return &Service{native: native, settings: settings, bus: bus, logger: logger}
}

// Init applies the persisted mode and starts watching the platform.
func (s *Service) Init() {
	mode := ThemeModeOf(s.settings)
	s.native.SetSource(mode)

	s.mu.Lock()
	s.lastDark = s.native.ShouldUseDarkColors()
	if s.unhook == nil {
		s.unhook = s.native.OnUpdated(s.onNativeUpdated)
	}
	s.mu.Unlock()
	s.logger.Debug("theme initialized", "mode", mode, "dark", s.lastDark)
}

// Close stops watching the platform.
func (s *Service) Close() {
	s.mu.Lock()
	unhook := s.unhook
	s.unhook = nil
	s.mu.Unlock()
	if unhook != nil {
		unhook()
	}
}

// SetThemeMode switches the theme source, persists it and returns the
// resulting dark flag.
func (s *Service) SetThemeMode(mode string) (bool, error) {
	if !validMode(mode) {
		return false, domain.NewDomainError("theme.SetThemeMode", domain.ErrInvalidInput,
			fmt.Sprintf("unknown theme mode %q", mode))
	}
	s.native.SetSource(mode)
	if err := s.settings.Set(domain.KeyThemeMode, mode); err != nil {
		return s.native.ShouldUseDarkColors(), domain.WrapOp("theme.SetThemeMode", err)
	}
	// Platforms do not always raise an update for a source change.
	s.onNativeUpdated()
	return s.native.ShouldUseDarkColors(), nil
}

// ThemeMode returns the active theme source.
func (s *Service) ThemeMode() string { return s.native.Source() }

// IsDark reports whether dark colors are in effect.
func (s *Service) IsDark() bool { return s.native.ShouldUseDarkColors() }

// PrimaryColor returns the configured accent color.
func (s *Service) PrimaryColor() string {
	if v, ok := s.settings.Get(domain.KeyPrimaryColor); ok {
		if c, ok := v.(string); ok && c != "" {
			return c
		}
	}
	return DefaultPrimaryColor
}

// Background returns the window background for the effective theme.
func (s *Service) Background() string {
	if s.IsDark() {
		return domain.BackgroundDark
	}
	return domain.BackgroundLight
}

func (s *Service) onNativeUpdated() {
	dark := s.native.ShouldUseDarkColors()
	s.mu.Lock()
	changed := dark != s.lastDark
	s.lastDark = dark
	s.mu.Unlock()
	if !changed {
		return
	}
	s.logger.Info("theme changed", "dark", dark)
	if s.bus != nil {
		s.bus.Publish(context.Background(), domain.NewEvent(domain.EventThemeChanged, domain.ThemeChangedPayload{
			IsDark: dark,
			Mode:   s.native.Source(),
		}))
	}
}

// ThemeModeOf reads the persisted mode, falling back to system.
func ThemeModeOf(settings Settings) string {
	v, _ := settings.Get(domain.KeyThemeMode)
	if mode, ok := v.(string); ok && validMode(mode) {
		return mode
	}
	return domain.ThemeSystem
}

func validMode(mode string) bool {
	switch mode {
	case domain.ThemeSystem, domain.ThemeLight, domain.ThemeDark:
		return true
	}
	return false
}
