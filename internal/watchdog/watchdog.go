// Package watchdog implements the inactivity countdown that forces logout
// after a quiet period. One parameterized Watchdog type covers every role;
// timeouts and arming rules are injected per instance.
package watchdog

import (
	"sync"
	"time"

	"civita/internal/platform/clock"
)

// Watchdog is a resettable countdown. Arm schedules expiry after the
// configured timeout; Touch restarts the full timeout; Stop cancels.
// The armed predicate is consulted on every Arm and Touch, so an instance
// whose precondition no longer holds silently disarms instead of firing.
//
// Expiry fires onExpire exactly once per armed period. A generation counter
// makes Touch/Stop racing with an in-flight timer callback safe: a stale
// callback observes a newer generation and returns without firing.
type Watchdog struct {
	mu       sync.Mutex
	timeout  time.Duration
	armed    func() bool
	onExpire func()
	clock    clock.Clock

	timer  clock.Timer
	gen    uint64
	active bool
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithClock overrides the clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(w *Watchdog) {
		if c != nil {
			w.clock = c
		}
	}
}

// New constructs a disarmed Watchdog. A nil armed predicate arms
// unconditionally.
func New(timeout time.Duration, armed func() bool, onExpire func(), opts ...Option) *Watchdog {
	if armed == nil {
		armed = func() bool { return true }
	}
	w := &Watchdog{
		timeout:  timeout,
		armed:    armed,
		onExpire: onExpire,
		clock:    clock.System(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Arm starts the countdown if the arming precondition holds. Re-arming an
// active watchdog restarts the full timeout.
func (w *Watchdog) Arm() {
	if !w.armed() {
		w.Stop()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schedule()
}

// Touch restarts the countdown in response to user activity. Touching an
// inactive watchdog is a no-op.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	if !w.armed() {
		w.Stop()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return
	}
	w.schedule()
}

// Stop cancels the countdown. Expiry after Stop is impossible.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.active = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Active reports whether the countdown is running.
func (w *Watchdog) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// schedule replaces the running timer with a fresh full-timeout one.
// Callers hold w.mu.
func (w *Watchdog) schedule() {
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.active = true
	w.timer = w.clock.AfterFunc(w.timeout, func() {
		w.expire(gen)
	})
}

func (w *Watchdog) expire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || !w.active {
		w.mu.Unlock()
		return
	}
	w.active = false
	w.timer = nil
	w.mu.Unlock()

	if w.onExpire != nil {
		w.onExpire()
	}
}
