// Package window owns the named-window table and choreographs window
// construction, open and close transitions, and app-wide shutdown policy.
package window

import (
	"context"
	"log/slog"
	"sync"

	"noelle/internal/domain"
	"noelle/internal/infra/clock"
	"noelle/internal/infra/debounce"
	"noelle/internal/usecase/animation"
)

// Phase is the lifecycle position of a named window.
type Phase string

const (
	PhaseAbsent       Phase = "absent"
	PhaseConstructing Phase = "constructing"
	PhaseLoading      Phase = "loading"
	PhaseOpening      Phase = "opening"
	PhaseSettled      Phase = "settled"
	PhaseClosing      Phase = "closing"
	PhaseHidden       Phase = "hidden"
)

// Appearance supplies theme colors to new windows.
type Appearance interface {
	IsDark() bool
	PrimaryColor() string
}

// CreateOptions are per-call overrides on top of the shared base options.
type CreateOptions struct {
	// Parent centers the open transition on this window and owns the new one.
	Parent domain.Window
	// FixedSize disables user resizing.
	FixedSize bool
	// Content names the document to load. Defaults to the window name.
	Content string
}

// slot is the registry entry for one window name.
type slot struct {
	win    domain.Window
	hidden bool
	phase  Phase
}

// tracked is per-instance choreography state keyed by content id.
type tracked struct {
	name     string
	win      domain.Window
	anim     *animation.Animator
	splash   domain.Splash
	gen      uint64
	maxState *debounce.Debouncer
	unhook   []func()
}

// Config wires a Manager.
type Config struct {
	Desktop    domain.Desktop
	Policy     ClosePolicy
	Appearance Appearance
	Clock      clock.Clock
	Bus        domain.EventBus
	Logger     *slog.Logger
}

// Manager is the window registry. It is the only writer of the name table.
type Manager struct {
	desktop    domain.Desktop
	policy     ClosePolicy
	appearance Appearance
	clock      clock.Clock
	bus        domain.EventBus
	logger     *slog.Logger

	createMu sync.Mutex

	mu         sync.Mutex
	slots      map[string]*slot
	byContent  map[string]*tracked
	allClosed  map[int]func()
	nextHookID int
}

// NewManager creates an empty registry.
func NewManager(cfg Config) *Manager {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		desktop:    cfg.Desktop,
		policy:     cfg.Policy,
		appearance: cfg.Appearance,
		clock:      c,
		bus:        cfg.Bus,
		logger:     logger,
		slots:      make(map[string]*slot),
		byContent:  make(map[string]*tracked),
		allClosed:  make(map[int]func()),
	}
}

// Create opens the named window. A hidden instance is revealed again instead
// of constructing a new one, and an open instance is focused and returned.
func (m *Manager) Create(name string, size domain.SizeSpec, opts CreateOptions) (domain.Window, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	m.mu.Lock()
	s := m.slotLocked(name)
	existing := s.win
	if existing != nil && existing.IsDestroyed() {
		existing = nil
		s.win, s.hidden, s.phase = nil, false, PhaseAbsent
	}
	reuse := existing != nil && s.hidden
	if existing != nil && !reuse {
		m.mu.Unlock()
		m.logger.Debug("window already open", "name", name)
		m.Focus(existing)
		return existing, nil
	}
	parent := opts.Parent
	if parent == nil && name != domain.WindowMain {
		if main := m.slots[domain.WindowMain]; main != nil && main.win != nil && !main.hidden {
			parent = main.win
		}
	}
	m.mu.Unlock()

	cx, cy := m.centerFor(parent)
	plan := planOpen(name, size, cx, cy)

	if reuse {
		m.mu.Lock()
		s.hidden = false
		m.mu.Unlock()
		m.logger.Debug("window reused", "name", name, "content_id", existing.ContentID())
		m.reveal(name, existing, plan, size)
		return existing, nil
	}

	m.setPhase(name, nil, PhaseConstructing)
	win, err := m.desktop.NewWindow(domain.WindowOptions{
		Name:            name,
		Bounds:          plan.To,
		Frameless:       true,
		Opacity:         0,
		Show:            false,
		Resizable:       !opts.FixedSize,
		Background:      m.background(),
		ContextIsolated: true,
		Sandbox:         true,
		Parent:          opts.Parent,
	})
	if err != nil {
		m.setPhase(name, nil, PhaseAbsent)
		return nil, domain.WrapOp("window.create", err)
	}

	t := &tracked{name: name, win: win, maxState: debounce.NewWithClock(MaximizedDebounce, m.clock)}
	t.unhook = append(t.unhook,
		win.OnClosed(func() { m.onDestroyed(name, win) }),
		win.OnResize(func() { m.onResize(t) }),
	)

	splash := win.AttachSplash(domain.SplashOptions{
		Bounds:     domain.Bounds{Width: plan.To.Width, Height: plan.To.Height},
		Background: m.background(),
		Accent:     m.accent(),
	})
	t.splash = splash

	m.mu.Lock()
	s.win, s.hidden, s.phase = win, false, PhaseLoading
	m.byContent[win.ContentID()] = t
	m.mu.Unlock()

	content := opts.Content
	if content == "" {
		content = name
	}
	if err := win.LoadContent(content); err != nil {
		m.logger.Warn("window content failed to load", "name", name, "error", err)
	}
	m.logger.Debug("window created", "name", name, "content_id", win.ContentID())
	m.publish(domain.EventWindowOpened, domain.WindowEventPayload{Name: name, ContentID: win.ContentID()})

	splash.OnLoaded(func() { m.reveal(name, win, plan, size) })
	return win, nil
}

// RendererReady dismisses the splash of the window hosting contentID. It
// reports whether a pending splash matched.
func (m *Manager) RendererReady(contentID string) bool {
	m.mu.Lock()
	t := m.byContent[contentID]
	if t == nil || t.splash == nil {
		m.mu.Unlock()
		return false
	}
	splash := t.splash
	t.splash = nil
	m.mu.Unlock()

	splash.Dismiss()
	m.logger.Debug("splash dismissed", "name", t.name, "content_id", contentID)
	return true
}

// Close runs the shrink-and-fade transition, updates bookkeeping and then
// destroys (reallyClose) or hides the window once the transition has ended.
func (m *Manager) Close(win domain.Window, reallyClose bool) {
	if win == nil || win.IsDestroyed() {
		return
	}
	win.SetMinimumSize(0, 0)
	win.SetMaximumSize(0, 0)

	from := win.Bounds()
	anim := animation.New(animation.Options{
		Target:      win,
		From:        from,
		To:          planClose(from),
		FromOpacity: win.Opacity(),
		ToOpacity:   0,
		Duration:    CloseDuration,
		Clock:       m.clock,
	})

	m.mu.Lock()
	name := m.nameLocked(win)
	if name != "" {
		s := m.slots[name]
		if reallyClose {
			s.win, s.hidden, s.phase = nil, false, PhaseAbsent
		} else {
			s.hidden, s.phase = true, PhaseClosing
		}
	}
	gen := m.swapAnimLocked(win, anim)
	m.mu.Unlock()

	m.logger.Debug("window closing", "name", name, "really", reallyClose)
	anim.Start(animation.CloseBezier)

	m.clock.AfterFunc(CloseActionDelay, func() {
		if !m.current(win, gen) {
			return
		}
		if !win.IsDestroyed() {
			if reallyClose {
				win.Close()
			} else {
				win.Hide()
				m.setPhase(name, win, PhaseHidden)
			}
		}
		m.checkAndCloseAll()
	})
}

// CloseByPolicy closes win the way the close policy prescribes for its name.
func (m *Manager) CloseByPolicy(win domain.Window) {
	m.Close(win, m.policy.ReallyClose(m.Name(win)))
}

// Focus restores a minimized window and focuses it.
func (m *Manager) Focus(win domain.Window) {
	if win == nil || win.IsDestroyed() {
		return
	}
	if win.IsMinimized() {
		win.Restore()
	}
	win.Focus()
}

// ToggleMax restores a maximized window or maximizes it.
func (m *Manager) ToggleMax(win domain.Window) {
	if win == nil || win.IsDestroyed() {
		return
	}
	if win.IsMaximized() {
		win.Restore()
		return
	}
	win.Maximize()
}

// Minimize minimizes win.
func (m *Manager) Minimize(win domain.Window) {
	if win == nil || win.IsDestroyed() {
		return
	}
	win.Minimize()
}

// Get returns the open window registered under name, or nil when it is absent
// or hidden.
func (m *Manager) Get(name string) domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[name]
	if s == nil || s.hidden || s.win == nil {
		return nil
	}
	return s.win
}

// Name is the reverse lookup of Get by handle identity.
func (m *Manager) Name(win domain.Window) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nameLocked(win)
}

// ByContent returns the live window hosting contentID.
func (m *Manager) ByContent(contentID string) (domain.Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.byContent[contentID]
	if t == nil || t.win.IsDestroyed() {
		return nil, false
	}
	return t.win, true
}

// State reports the lifecycle phase of name.
func (m *Manager) State(name string) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[name]
	if s == nil {
		return PhaseAbsent
	}
	return s.phase
}

// OnAllClosed registers fn to run whenever the last tracked window is destroyed.
func (m *Manager) OnAllClosed(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHookID
	m.nextHookID++
	m.allClosed[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.allClosed, id)
	}
}

// CloseAll destroys every tracked window immediately, without transitions.
func (m *Manager) CloseAll() {
	for _, w := range m.trackedWindows() {
		if !w.IsDestroyed() {
			w.Close()
		}
	}
}

func (m *Manager) reveal(name string, win domain.Window, plan openPlan, size domain.SizeSpec) {
	if win.IsDestroyed() {
		return
	}
	anim := animation.New(animation.Options{
		Target:      win,
		From:        plan.From,
		To:          plan.To,
		FromOpacity: 0,
		ToOpacity:   1,
		Duration:    plan.Duration,
		Clock:       m.clock,
	})

	m.mu.Lock()
	gen := m.swapAnimLocked(win, anim)
	if s := m.slots[name]; s != nil && s.win == win {
		s.phase = PhaseOpening
	}
	m.mu.Unlock()

	win.SetOpacity(0)
	win.SetBounds(plan.From)
	win.Show()

	m.clock.AfterFunc(plan.Duration+ConstraintGrace, func() {
		if !m.current(win, gen) || win.IsDestroyed() {
			return
		}
		if size.HasMax() {
			win.SetMaximumSize(size.MaxWidth, size.MaxHeight)
		}
		if size.HasMin() {
			win.SetMinimumSize(size.MinWidth, size.MinHeight)
		}
		m.setPhase(name, win, PhaseSettled)
	})
	anim.Start(plan.Easing)
}

func (m *Manager) onDestroyed(name string, win domain.Window) {
	m.mu.Lock()
	if s := m.slots[name]; s != nil && s.win == win {
		s.win, s.hidden, s.phase = nil, false, PhaseAbsent
	}
	var unhook []func()
	if t := m.byContent[win.ContentID()]; t != nil && t.win == win {
		if t.anim != nil {
			t.anim.Stop()
		}
		t.maxState.Stop()
		unhook = t.unhook
		delete(m.byContent, win.ContentID())
	}
	m.mu.Unlock()

	for _, fn := range unhook {
		fn()
	}
	m.logger.Debug("window destroyed", "name", name, "content_id", win.ContentID())
	m.publish(domain.EventWindowClosed, domain.WindowEventPayload{Name: name, ContentID: win.ContentID()})

	m.checkAndCloseAll()
	m.notifyIfAllClosed()
}

func (m *Manager) onResize(t *tracked) {
	t.maxState.Do(func() {
		if t.win.IsDestroyed() {
			return
		}
		t.win.Send("window-maximized", t.win.IsMaximized())
	})
}

// checkAndCloseAll enforces that no window outlives the main window and that
// no invisible window lingers when the app does not live in the tray.
func (m *Manager) checkAndCloseAll() {
	m.mu.Lock()
	var main domain.Window
	if s := m.slots[domain.WindowMain]; s != nil && s.win != nil && !s.hidden {
		main = s.win
	}
	mainTracked := false
	if s := m.slots[domain.WindowMain]; s != nil && s.win != nil && !s.win.IsDestroyed() {
		mainTracked = true
	}
	m.mu.Unlock()
	wins := m.trackedWindows()

	if !mainTracked {
		for _, w := range wins {
			if !w.IsDestroyed() {
				w.Close()
			}
		}
		return
	}
	if !m.policy.MinimizeToTray() && (main == nil || !main.IsVisible()) {
		for _, w := range wins {
			if !w.IsDestroyed() && !w.IsVisible() {
				w.Close()
			}
		}
	}
}

func (m *Manager) notifyIfAllClosed() {
	m.mu.Lock()
	for _, s := range m.slots {
		if s.win != nil {
			m.mu.Unlock()
			return
		}
	}
	hooks := make([]func(), 0, len(m.allClosed))
	for _, fn := range m.allClosed {
		hooks = append(hooks, fn)
	}
	m.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (m *Manager) trackedWindows() []domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	wins := make([]domain.Window, 0, len(m.slots))
	for _, s := range m.slots {
		if s.win != nil {
			wins = append(wins, s.win)
		}
	}
	return wins
}

// swapAnimLocked replaces the running transition of win and returns the new
// choreography generation. Deferred steps from older generations are dropped.
func (m *Manager) swapAnimLocked(win domain.Window, anim *animation.Animator) uint64 {
	t := m.byContent[win.ContentID()]
	if t == nil {
		t = &tracked{name: m.nameLocked(win), win: win, maxState: debounce.NewWithClock(MaximizedDebounce, m.clock)}
		m.byContent[win.ContentID()] = t
	}
	if t.anim != nil {
		t.anim.Stop()
	}
	t.anim = anim
	t.gen++
	return t.gen
}

func (m *Manager) current(win domain.Window, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.byContent[win.ContentID()]
	return t == nil || t.gen == gen
}

func (m *Manager) setPhase(name string, win domain.Window, p Phase) {
	if name == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slotLocked(name)
	if win != nil && s.win != win {
		return
	}
	s.phase = p
}

func (m *Manager) slotLocked(name string) *slot {
	s := m.slots[name]
	if s == nil {
		s = &slot{phase: PhaseAbsent}
		m.slots[name] = s
	}
	return s
}

func (m *Manager) nameLocked(win domain.Window) string {
	if win == nil {
		return ""
	}
	for name, s := range m.slots {
		if s.win == win {
			return name
		}
	}
	return ""
}

func (m *Manager) centerFor(parent domain.Window) (int, int) {
	if parent != nil && !parent.IsDestroyed() {
		return parent.Bounds().Center()
	}
	return m.desktop.PrimaryDisplay().Center()
}

func (m *Manager) background() string {
	if m.appearance != nil && m.appearance.IsDark() {
		return DarkBackground
	}
	return LightBackground
}

func (m *Manager) accent() string {
	if m.appearance == nil {
		return ""
	}
	return m.appearance.PrimaryColor()
}

func (m *Manager) publish(typ domain.EventType, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(context.Background(), domain.NewEvent(typ, payload))
}
