// internal/screen/debounce.go

// Package screen holds the shims between the guidance engine and the screen
// it watches: still-image sources, the change-notification feed, and the
// debouncer that keeps intermediate frames of a user interaction from
// triggering premature completion checks.
package screen

import (
	"sync"
	"time"
)

// Timer is the resettable handle a Clock hands out. Stop reports whether the
// call prevented the timer from firing.
type Timer interface {
	Stop() bool
}

// Clock abstracts timer creation so tests can drive the debouncer
// deterministically instead of sleeping.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealClock returns a Clock backed by the runtime timers.
func RealClock() Clock {
	return realClock{}
}

// Debouncer coalesces rapid events: the wrapped function runs only after the
// quiet period has elapsed with no new calls. Each call resets the timer.
type Debouncer struct {
	mu     sync.Mutex
	timer  Timer
	period time.Duration
	clock  Clock
}

// NewDebouncer creates a debouncer with the given quiet period. A nil clock
// falls back to the runtime clock.
func NewDebouncer(period time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = RealClock()
	}
	return &Debouncer{
		period: period,
		clock:  clock,
	}
}

// Debounce schedules fn to run after the quiet period. A call arriving before
// the period elapses cancels the previous schedule and starts a new one, so
// only the last fn of a burst ever runs.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.period, fn)
}

// Cancel drops any pending scheduled call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
