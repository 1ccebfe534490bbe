// Package settings persists user preferences as a JSON file and broadcasts
// every change.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"noelle/internal/domain"
)

// Defaults returns the preferences used for missing keys.
func Defaults() domain.Settings {
	return domain.Settings{
		domain.KeyThemeMode:      domain.ThemeSystem,
		domain.KeyPrimaryColor:   "#BB5BE7",
		domain.KeyLanguage:       "zh",
		domain.KeyFontSize:       float64(14),
		domain.KeyMinimizeToTray: false,
		domain.KeyProvider:       "",
		domain.KeyDefaultModel:   nil,
	}
}

// Store is a file-backed domain.SettingsStore. Every successful write is
// persisted before listeners run.
type Store struct {
	path   string
	logger *slog.Logger
	bus    domain.EventBus

	mu          sync.RWMutex
	data        domain.Settings
	lastWritten []byte

	lmu       sync.Mutex
	listeners map[uint64]func(domain.Settings)
	nextID    uint64
}

var _ domain.SettingsStore = (*Store)(nil)

// New loads path, falling back to defaults when the file is missing or
// corrupt. bus may be nil.
func New(path string, logger *slog.Logger, bus domain.EventBus) *Store {
	s := &Store{
		path:      path,
		logger:    logger,
		bus:       bus,
		listeners: make(map[uint64]func(domain.Settings)),
	}
	s.data = s.load()
	return s
}

func (s *Store) load() domain.Settings {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("settings file not found, using defaults", "path", s.path)
		} else {
			s.logger.Error("failed to read settings", "path", s.path, "error", err)
		}
		return Defaults()
	}
	merged, err := parse(data)
	if err != nil {
		s.logger.Error("failed to parse settings, using defaults", "path", s.path, "error", err)
		return Defaults()
	}
	s.lastWritten = data
	s.logger.Info("settings loaded", "path", s.path)
	return merged
}

func parse(data []byte) (domain.Settings, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	merged := Defaults()
	for k, v := range raw {
		merged[k] = v
	}
	return merged, nil
}

// Get returns one value.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under a known key. Unknown keys and unchanged values are
// ignored; a value of the wrong shape is rejected with ErrInvalidInput.
func (s *Store) Set(key string, value any) error {
	value, err := normalize(value)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}

	s.mu.Lock()
	old, known := s.data[key]
	if !known {
		s.mu.Unlock()
		return nil
	}
	if reflect.DeepEqual(old, value) {
		s.mu.Unlock()
		return nil
	}
	next := s.copyLocked()
	next[key] = value
	if err := validate(next); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot, err := s.commitLocked(next)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("setting updated", "key", key, "from", old, "to", value)
	s.notify(snapshot)
	return nil
}

// Update merges partial into the current settings. Unknown keys are ignored.
func (s *Store) Update(partial map[string]any) error {
	norm, err := normalize(partial)
	if err != nil {
		return fmt.Errorf("settings: update: %w", err)
	}
	values, _ := norm.(map[string]any)

	s.mu.Lock()
	next := s.copyLocked()
	for k, v := range values {
		if _, known := next[k]; known {
			next[k] = v
		}
	}
	if err := validate(next); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot, err := s.commitLocked(next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(snapshot)
	return nil
}

// Reset restores every key to its default.
func (s *Store) Reset() error {
	s.mu.Lock()
	snapshot, err := s.commitLocked(Defaults())
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.Info("settings reset to defaults")
	s.notify(snapshot)
	return nil
}

// All returns a deep copy of the current settings.
func (s *Store) All() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// OnChange registers fn for every committed change and returns its remover.
func (s *Store) OnChange(fn func(domain.Settings)) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) copyLocked() domain.Settings {
	out, _ := deepCopy(s.data)
	return out
}

// commitLocked writes next to disk and swaps it in. On failure the in-memory
// state is left untouched.
func (s *Store) commitLocked(next domain.Settings) (domain.Settings, error) {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("settings: encode: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		s.logger.Error("failed to save settings", "path", s.path, "error", err)
		return nil, fmt.Errorf("settings: save: %w", err)
	}
	s.data = next
	s.lastWritten = data
	s.logger.Info("settings saved", "path", s.path)
	snapshot, _ := deepCopy(next)
	return snapshot, nil
}

func (s *Store) notify(snapshot domain.Settings) {
	s.lmu.Lock()
	fns := make([]func(domain.Settings), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		copied, _ := deepCopy(snapshot)
		s.invoke(fn, copied)
	}
	if s.bus != nil {
		s.bus.Publish(context.Background(), domain.NewEvent(domain.EventConfigChanged, snapshot))
	}
}

func (s *Store) invoke(fn func(domain.Settings), snapshot domain.Settings) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("settings listener panicked", "panic", r)
		}
	}()
	fn(snapshot)
}

// reloadFromDisk picks up an external edit. Content identical to the last
// write is ignored.
func (s *Store) reloadFromDisk() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	s.mu.Lock()
	if bytes.Equal(data, s.lastWritten) {
		s.mu.Unlock()
		return
	}
	merged, err := parse(data)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("ignoring unparseable settings edit", "path", s.path, "error", err)
		return
	}
	s.data = merged
	s.lastWritten = data
	snapshot, _ := deepCopy(merged)
	s.mu.Unlock()

	s.logger.Info("settings reloaded after external edit", "path", s.path)
	s.notify(snapshot)
}

// normalize converts v to the shapes encoding/json produces so that equality
// checks compare like with like.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func deepCopy(in domain.Settings) (domain.Settings, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out domain.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
