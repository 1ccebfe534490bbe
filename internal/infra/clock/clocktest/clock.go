// Package clocktest provides a manually advanced clock.
package clocktest

import (
	"sort"
	"sync"
	"time"

	"noelle/internal/infra/clock"
)

// Clock is a clock.Clock whose time only moves on Advance.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*task
}

var _ clock.Clock = (*Clock)(nil)

type task struct {
	owner *Clock
	at    time.Time
	seq   int
	fn    func()
	done  bool
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, fn func()) clock.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &task{owner: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.tasks = append(c.tasks, t)
	return t
}

func (t *task) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, running every callback that falls due in
// deadline order. Callbacks scheduled while advancing run too if they fall due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	deadline := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		next := c.nextDueLocked(deadline)
		if next == nil {
			c.now = deadline
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.done = true
		c.mu.Unlock()
		next.fn()
	}
}

// Pending returns the number of callbacks still scheduled.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

func (c *Clock) nextDueLocked(deadline time.Time) *task {
	live := c.tasks[:0]
	for _, t := range c.tasks {
		if !t.done {
			live = append(live, t)
		}
	}
	c.tasks = live
	sort.SliceStable(c.tasks, func(i, j int) bool {
		if c.tasks[i].at.Equal(c.tasks[j].at) {
			return c.tasks[i].seq < c.tasks[j].seq
		}
		return c.tasks[i].at.Before(c.tasks[j].at)
	})
	if len(c.tasks) == 0 || c.tasks[0].at.After(deadline) {
		return nil
	}
	return c.tasks[0]
}
