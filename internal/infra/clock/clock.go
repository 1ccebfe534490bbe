// Package clock abstracts timer scheduling so choreography can be driven
// deterministically in tests.
package clock

import "time"

// Task is a single scheduled callback.
type Task interface {
	// Stop cancels the callback. It reports whether the call prevented it from running.
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Task
}

// Real is backed by the runtime timer.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, fn func()) Task {
	return time.AfterFunc(d, fn)
}
