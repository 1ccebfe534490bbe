package domain

// Window names tracked by the window registry.
const (
	WindowMain    = "main"
	WindowSetting = "setting"
	WindowDialog  = "dialog"
)

// Bounds is a window rectangle in screen coordinates.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the rectangle's center point.
func (b Bounds) Center() (x, y int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Size is a width/height pair.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizeSpec is the requested size of a window plus its optional constraints.
// Constraints are applied only when both dimensions of a pair are set.
type SizeSpec struct {
	Width     int
	Height    int
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// HasMin reports whether both minimum dimensions are set.
func (s SizeSpec) HasMin() bool { return s.MinWidth > 0 && s.MinHeight > 0 }

// HasMax reports whether both maximum dimensions are set.
func (s SizeSpec) HasMax() bool { return s.MaxWidth > 0 && s.MaxHeight > 0 }

// WindowOptions describes a window to construct.
type WindowOptions struct {
	Name            string
	Bounds          Bounds
	Frameless       bool
	Opacity         float64
	Show            bool
	Resizable       bool
	Background      string
	ContextIsolated bool
	Sandbox         bool
	Parent          Window
}

// KeyInput is a keyboard event delivered to a window before its content sees it.
type KeyInput struct {
	Type    string `json:"type"` // keyDown or keyUp
	Key     string `json:"key"`
	Control bool   `json:"control"`
	Meta    bool   `json:"meta"`
	Alt     bool   `json:"alt"`
	Shift   bool   `json:"shift"`
}

// Window is the handle to one OS-level window. Implementations must be safe
// for concurrent use and must treat every call on a destroyed window as a no-op.
type Window interface {
	// ContentID identifies the content hosted by this window.
	ContentID() string
	Bounds() Bounds
	SetBounds(b Bounds)
	Opacity() float64
	SetOpacity(o float64)
	SetMinimumSize(width, height int)
	SetMaximumSize(width, height int)

	LoadContent(name string) error
	Show()
	Hide()
	Close()
	Focus()
	Minimize()
	Maximize()
	Restore()

	IsDestroyed() bool
	IsVisible() bool
	IsMinimized() bool
	IsMaximized() bool
	IsFocused() bool

	// Send pushes an event to the hosted content.
	Send(channel string, payload any)
	// AttachSplash overlays a loading splash over the window.
	AttachSplash(opts SplashOptions) Splash

	// OnClosed, OnResize and OnInput register listeners and return an unsubscribe.
	// An input listener returning true swallows the input.
	OnClosed(fn func()) func()
	OnResize(fn func()) func()
	OnInput(fn func(KeyInput) bool) func()
}

// SplashOptions configures the loading overlay.
type SplashOptions struct {
	Bounds     Bounds
	Background string
	Accent     string
}

// Splash is the loading overlay attached to a freshly constructed window.
type Splash interface {
	// OnLoaded runs fn once the splash itself has rendered. If it already
	// has, fn runs immediately.
	OnLoaded(fn func())
	// Dismiss removes the overlay. Safe to call more than once.
	Dismiss()
}

// Desktop is the windowing backend.
type Desktop interface {
	NewWindow(opts WindowOptions) (Window, error)
	// PrimaryDisplay returns the work area of the primary display.
	PrimaryDisplay() Bounds
	Platform() string
	Packaged() bool
}
