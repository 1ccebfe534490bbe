// Package debounce coalesces bursts of calls into the last one.
package debounce

import (
	"sync"
	"time"

	"noelle/internal/infra/clock"
)

// Debouncer runs only the most recent function handed to Do, once no newer
// call has arrived for the configured quiet window.
type Debouncer struct {
	delay time.Duration
	clock clock.Clock

	mu      sync.Mutex
	pending clock.Task
	fn      func()
	gen     uint64
}

// New returns a debouncer with the given quiet window on the real clock.
func New(delay time.Duration) *Debouncer {
	return NewWithClock(delay, clock.Real{})
}

// NewWithClock returns a debouncer scheduled on clock.
func NewWithClock(delay time.Duration, c clock.Clock) *Debouncer {
	return &Debouncer{delay: delay, clock: c}
}

// Do replaces the pending function and restarts the quiet window.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.fn = fn
	d.pending = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush runs the pending function now, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.takeLocked()
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop drops the pending function without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.takeLocked()
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	fn := d.takeLocked()
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *Debouncer) takeLocked() func() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	fn := d.fn
	d.fn = nil
	d.gen++
	return fn
}

// Group keeps one debouncer per key so unrelated keys do not cancel each other.
type Group struct {
	delay time.Duration
	clock clock.Clock

	mu    sync.Mutex
	byKey map[string]*Debouncer
}

// NewGroup returns an empty keyed group on the real clock.
func NewGroup(delay time.Duration) *Group {
	return &Group{delay: delay, clock: clock.Real{}, byKey: make(map[string]*Debouncer)}
}

// Do debounces fn under key.
func (g *Group) Do(key string, fn func()) {
	g.mu.Lock()
	d, ok := g.byKey[key]
	if !ok {
		d = NewWithClock(g.delay, g.clock)
		g.byKey[key] = d
	}
	g.mu.Unlock()
	d.Do(fn)
}

// Flush runs every pending function.
func (g *Group) Flush() {
	g.mu.Lock()
	all := make([]*Debouncer, 0, len(g.byKey))
	for _, d := range g.byKey {
		all = append(all, d)
	}
	g.mu.Unlock()
	for _, d := range all {
		d.Flush()
	}
}
