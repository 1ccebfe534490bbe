package desktop

import (
	"sync"

	"github.com/google/uuid"

	"noelle/internal/domain"
)

// Window is an in-memory window. Every call on a destroyed window is a no-op.
type Window struct {
	backend *Backend
	id      string
	opts    domain.WindowOptions

	mu        sync.Mutex
	bounds    domain.Bounds
	opacity   float64
	min, max  domain.Size
	content   string
	visible   bool
	minimized bool
	maximized bool
	focused   bool
	destroyed bool
	restore   domain.Bounds
	splash    *splash

	nextID   int
	onClosed map[int]func()
	onResize map[int]func()
	onInput  map[int]func(domain.KeyInput) bool
}

func newWindow(b *Backend, opts domain.WindowOptions) *Window {
	return &Window{
		backend:  b,
		id:       uuid.NewString(),
		opts:     opts,
		bounds:   opts.Bounds,
		opacity:  opts.Opacity,
		visible:  opts.Show,
		onClosed: make(map[int]func()),
		onResize: make(map[int]func()),
		onInput:  make(map[int]func(domain.KeyInput) bool),
	}
}

func (w *Window) ContentID() string { return w.id }

// Name is the window name the backend was asked to build.
func (w *Window) Name() string { return w.opts.Name }

// Parent returns the owning window, if any.
func (w *Window) Parent() domain.Window { return w.opts.Parent }

// Resizable reports whether the user may resize the window.
func (w *Window) Resizable() bool { return w.opts.Resizable }

func (w *Window) Bounds() domain.Bounds {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func (w *Window) SetBounds(b domain.Bounds) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.destroyed {
		w.bounds = b
	}
}

func (w *Window) Opacity() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opacity
}

func (w *Window) SetOpacity(o float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.destroyed {
		w.opacity = o
	}
}

func (w *Window) SetMinimumSize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.min = domain.Size{Width: width, Height: height}
}

func (w *Window) SetMaximumSize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.max = domain.Size{Width: width, Height: height}
}

// Constraints returns the minimum and maximum sizes.
func (w *Window) Constraints() (min, max domain.Size) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.min, w.max
}

func (w *Window) LoadContent(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.destroyed {
		w.content = name
	}
	return nil
}

// Content is the document loaded into the window.
func (w *Window) Content() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.content
}

func (w *Window) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.destroyed {
		w.visible = true
		w.minimized = false
	}
}

func (w *Window) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.destroyed {
		w.visible = false
		w.focused = false
	}
}

func (w *Window) Close() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	w.visible = false
	w.focused = false
	fns := make([]func(), 0, len(w.onClosed))
	for _, fn := range w.onClosed {
		fns = append(fns, fn)
	}
	w.onClosed = map[int]func(){}
	w.onResize = map[int]func(){}
	w.onInput = map[int]func(domain.KeyInput) bool{}
	w.mu.Unlock()

	w.backend.forget(w.id)
	for _, fn := range fns {
		fn()
	}
}

func (w *Window) Focus() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.focused = true
	w.visible = true
	w.minimized = false
	w.mu.Unlock()
	w.backend.focus(w.id)
}

func (w *Window) blur() {
	w.mu.Lock()
	w.focused = false
	w.mu.Unlock()
}

func (w *Window) Minimize() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.minimized = true
	w.focused = false
	w.mu.Unlock()
}

func (w *Window) Maximize() {
	w.mu.Lock()
	if w.destroyed || w.maximized {
		w.mu.Unlock()
		return
	}
	w.restore = w.bounds
	w.bounds = w.backend.display
	w.maximized = true
	w.mu.Unlock()
	w.fireResize()
}

func (w *Window) Restore() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	wasMax := w.maximized
	if wasMax {
		w.bounds = w.restore
	}
	w.maximized = false
	w.minimized = false
	w.mu.Unlock()
	if wasMax {
		w.fireResize()
	}
}

// Resize simulates a user resize, honoring the size constraints.
func (w *Window) Resize(width, height int) {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	if w.min.Width > 0 && w.min.Height > 0 {
		width, height = max(width, w.min.Width), max(height, w.min.Height)
	}
	if w.max.Width > 0 && w.max.Height > 0 {
		width, height = min(width, w.max.Width), min(height, w.max.Height)
	}
	w.bounds.Width, w.bounds.Height = width, height
	w.maximized = false
	w.mu.Unlock()
	w.fireResize()
}

func (w *Window) IsDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

func (w *Window) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *Window) IsMinimized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.minimized
}

func (w *Window) IsMaximized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maximized
}

func (w *Window) IsFocused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

func (w *Window) Send(channel string, payload any) {
	if w.IsDestroyed() {
		return
	}
	w.backend.send(w.id, channel, payload)
}

func (w *Window) AttachSplash(opts domain.SplashOptions) domain.Splash {
	s := &splash{opts: opts}
	w.mu.Lock()
	w.splash = s
	w.mu.Unlock()
	return s
}

// SplashShown reports whether a splash is attached and not yet dismissed.
func (w *Window) SplashShown() bool {
	w.mu.Lock()
	s := w.splash
	w.mu.Unlock()
	return s != nil && !s.dismissed()
}

func (w *Window) OnClosed(fn func()) func() {
	return w.listen(func(id int) { w.onClosed[id] = fn }, func(id int) { delete(w.onClosed, id) })
}

func (w *Window) OnResize(fn func()) func() {
	return w.listen(func(id int) { w.onResize[id] = fn }, func(id int) { delete(w.onResize, id) })
}

func (w *Window) OnInput(fn func(domain.KeyInput) bool) func() {
	return w.listen(func(id int) { w.onInput[id] = fn }, func(id int) { delete(w.onInput, id) })
}

func (w *Window) listen(add, remove func(id int)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return func() {}
	}
	w.nextID++
	id := w.nextID
	add(id)
	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			remove(id)
			w.mu.Unlock()
		})
	}
}

// Press delivers a key event to the input listeners. It reports whether any
// listener swallowed it.
func (w *Window) Press(in domain.KeyInput) bool {
	w.mu.Lock()
	fns := make([]func(domain.KeyInput) bool, 0, len(w.onInput))
	for _, fn := range w.onInput {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	swallowed := false
	for _, fn := range fns {
		if fn(in) {
			swallowed = true
		}
	}
	return swallowed
}

func (w *Window) fireResize() {
	w.mu.Lock()
	fns := make([]func(), 0, len(w.onResize))
	for _, fn := range w.onResize {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// splash has nothing to render headlessly and counts as loaded at once.
type splash struct {
	opts domain.SplashOptions

	mu   sync.Mutex
	gone bool
}

func (s *splash) OnLoaded(fn func()) { fn() }

func (s *splash) Dismiss() {
	s.mu.Lock()
	s.gone = true
	s.mu.Unlock()
}

func (s *splash) dismissed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gone
}
