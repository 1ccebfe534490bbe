package animation

import (
	"math"
	"sync"
	"time"

	"noelle/internal/domain"
	"noelle/internal/infra/clock"
)

// FrameInterval is the nominal tick spacing, 60 frames per second.
const FrameInterval = time.Second / 60

// Target is the animatable subset of a window handle.
type Target interface {
	SetBounds(b domain.Bounds)
	SetOpacity(o float64)
	IsDestroyed() bool
}

// Options describes one transition.
type Options struct {
	Target      Target
	From        domain.Bounds
	To          domain.Bounds
	FromOpacity float64
	ToOpacity   float64
	Duration    time.Duration
	Clock       clock.Clock
}

// Animator drives one bounds/opacity transition. At most one tick is pending
// at any time and the animator owns it.
type Animator struct {
	opts  Options
	clock clock.Clock

	mu      sync.Mutex
	begun   bool
	target  Target
	pending clock.Task
	started time.Time
	ease    EasingFunc
	done    chan struct{}
}

// New creates an idle animator.
func New(opts Options) *Animator {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Animator{opts: opts, clock: c, done: make(chan struct{})}
}

// Start records the start time and schedules the first tick immediately.
// An animator runs once; later calls do nothing.
func (a *Animator) Start(ease EasingFunc) {
	if ease == nil {
		ease = SoftStart
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.begun {
		return
	}
	a.begun = true
	if a.opts.Target == nil {
		a.stopLocked()
		return
	}
	a.target = a.opts.Target
	a.ease = ease
	a.started = a.clock.Now()
	a.pending = a.clock.AfterFunc(0, a.tick)
}

// Stop cancels the pending tick and releases the window handle. Idempotent.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Done is closed once the transition completes or is stopped.
func (a *Animator) Done() <-chan struct{} { return a.done }

// Running reports whether a tick is outstanding.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target != nil
}

func (a *Animator) stopLocked() {
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	a.target = nil
	if a.begun && !a.isDone() {
		close(a.done)
	}
}

func (a *Animator) isDone() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *Animator) tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target == nil {
		return
	}
	a.pending = nil

	elapsed := a.clock.Now().Sub(a.started)
	progress := 1.0
	if a.opts.Duration > 0 {
		progress = math.Min(float64(elapsed)/float64(a.opts.Duration), 1)
	}
	eased := 1.0
	if progress < 1 {
		eased = a.ease(progress)
	}

	if !a.target.IsDestroyed() {
		a.target.SetBounds(domain.Bounds{
			X:      lerpInt(a.opts.From.X, a.opts.To.X, eased),
			Y:      lerpInt(a.opts.From.Y, a.opts.To.Y, eased),
			Width:  lerpInt(a.opts.From.Width, a.opts.To.Width, eased),
			Height: lerpInt(a.opts.From.Height, a.opts.To.Height, eased),
		})
		a.target.SetOpacity(lerp(a.opts.FromOpacity, a.opts.ToOpacity, eased))
	}

	if progress >= 1 {
		a.stopLocked()
		return
	}
	// The last frame lands on the nominal end, not up to one interval past it.
	a.pending = a.clock.AfterFunc(min(FrameInterval, a.opts.Duration-elapsed), a.tick)
}

func lerp(from, to, t float64) float64 {
	if t >= 1 {
		return to
	}
	return from + (to-from)*t
}

func lerpInt(from, to int, t float64) int {
	return int(math.Round(lerp(float64(from), float64(to), t)))
}
