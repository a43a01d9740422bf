// Package clock abstracts wall-clock time and timer scheduling so components
// with time-based transitions (OTP expiry, inactivity watchdogs) can be tested
// against a controllable clock instead of time.Sleep.
package clock

import "time"

// Timer is a cancelable pending callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing.
	Stop() bool
}

// Clock provides current time and deferred callback scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// System returns the real wall clock.
func System() Clock { return systemClock{} }
