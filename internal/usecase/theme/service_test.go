package theme

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noelle/internal/domain"
)

type fakeNative struct {
	mu        sync.Mutex
	source    string
	systemDk  bool
	listeners []func()
}

func (f *fakeNative) SetSource(mode string) {
	f.mu.Lock()
	f.source = mode
	f.mu.Unlock()
}

func (f *fakeNative) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeNative) ShouldUseDarkColors() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.source {
	case domain.ThemeDark:
		return true
	case domain.ThemeLight:
		return false
	}
	return f.systemDk
}

func (f *fakeNative) OnUpdated(fn func()) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listeners = nil
		f.mu.Unlock()
	}
}

// flipSystem simulates the OS switching appearance.
func (f *fakeNative) flipSystem(dark bool) {
	f.mu.Lock()
	f.systemDk = dark
	ls := append([]func(){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range ls {
		fn()
	}
}

type memSettings struct {
	values map[string]any
	err    error
}

func (m *memSettings) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *memSettings) Set(key string, value any) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}
func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func newService(mode any) (*Service, *fakeNative, *memSettings, *recordingBus) {
	native := &fakeNative{}
	settings := &memSettings{values: map[string]any{}}
	if mode != nil {
		settings.values[domain.KeyThemeMode] = mode
	}
	bus := &recordingBus{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(native, settings, bus, logger), native, settings, bus
}

func TestInitAppliesPersistedMode(t *testing.T) {
	s, native, _, _ := newService(domain.ThemeDark)
	s.Init()
	defer s.Close()

	assert.Equal(t, domain.ThemeDark, native.Source())
	assert.True(t, s.IsDark())
	assert.Equal(t, domain.BackgroundDark, s.Background())
}

func TestInitFallsBackToSystem(t *testing.T) {
	for _, mode := range []any{nil, "sepia", 3} {
		s, native, _, _ := newService(mode)
		s.Init()
		assert.Equal(t, domain.ThemeSystem, native.Source(), "mode %v", mode)
		s.Close()
	}
}

func TestSetThemeModePersistsAndReturnsDark(t *testing.T) {
	s, _, settings, bus := newService(nil)
	s.Init()
	defer s.Close()

	dark, err := s.SetThemeMode(domain.ThemeDark)
	require.NoError(t, err)
	assert.True(t, dark)
	assert.Equal(t, domain.ThemeDark, settings.values[domain.KeyThemeMode])
	assert.Equal(t, domain.ThemeDark, s.ThemeMode())
	assert.Equal(t, 1, bus.count())

	dark, err = s.SetThemeMode(domain.ThemeLight)
	require.NoError(t, err)
	assert.False(t, dark)
	assert.Equal(t, domain.BackgroundLight, s.Background())
	assert.Equal(t, 2, bus.count())
}

func TestSetThemeModeRejectsUnknown(t *testing.T) {
	s, _, _, _ := newService(nil)
	_, err := s.SetThemeMode("sepia")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetThemeModeSurfacesWriteFailure(t *testing.T) {
	s, _, settings, _ := newService(nil)
	settings.err = errors.New("disk full")
	_, err := s.SetThemeMode(domain.ThemeDark)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSystemFlipPublishesOnlyOnChange(t *testing.T) {
	s, native, _, bus := newService(domain.ThemeSystem)
	s.Init()
	defer s.Close()

	native.flipSystem(false)
	assert.Equal(t, 0, bus.count())

	native.flipSystem(true)
	require.Equal(t, 1, bus.count())
	assert.Equal(t, domain.EventThemeChanged, bus.events[0].Type)
	assert.JSONEq(t, `{"isDark":true,"mode":"system"}`, string(bus.events[0].Payload))
}

func TestPrimaryColor(t *testing.T) {
	s, _, settings, _ := newService(nil)
	assert.Equal(t, DefaultPrimaryColor, s.PrimaryColor())
	settings.values[domain.KeyPrimaryColor] = "#123456"
	assert.Equal(t, "#123456", s.PrimaryColor())
}
