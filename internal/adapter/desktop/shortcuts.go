package desktop

import "sync"

// Shortcuts implements domain.GlobalShortcuts as an in-memory table.
type Shortcuts struct {
	mu    sync.Mutex
	table map[string]func()
}

func NewShortcuts() *Shortcuts {
	return &Shortcuts{table: make(map[string]func())}
}

// Register fails when accelerator is already taken, as the OS would.
func (s *Shortcuts) Register(accelerator string, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.table[accelerator]; taken || accelerator == "" {
		return false
	}
	s.table[accelerator] = fn
	return true
}

func (s *Shortcuts) Unregister(accelerator string) {
	s.mu.Lock()
	delete(s.table, accelerator)
	s.mu.Unlock()
}

func (s *Shortcuts) UnregisterAll() {
	s.mu.Lock()
	s.table = make(map[string]func())
	s.mu.Unlock()
}

func (s *Shortcuts) IsRegistered(accelerator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.table[accelerator]
	return ok
}

// Trigger fires the handler bound to accelerator and reports whether one was.
func (s *Shortcuts) Trigger(accelerator string) bool {
	s.mu.Lock()
	fn := s.table[accelerator]
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
