// Package clock abstracts wall-clock reads and one-shot timers so the refresh
// engine's midnight, retry and countdown logic can be driven deterministically
// in tests.
package clock

import "time"

// Clock is the time source used by the engine. Production code uses [Real].
type Clock interface {
	// Now returns the current local time.
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a pending AfterFunc call.
type Timer interface {
	// Stop prevents the timer from firing and reports whether it was still
	// pending.
	Stop() bool
}

// Real is a [Clock] backed by the time package.
type Real struct{}

// Now returns time.Now in the local zone.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps [time.AfterFunc].
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// UntilNextMinute returns the time from t to the next minute boundary. At an
// exact boundary it returns a full minute.
func UntilNextMinute(t time.Time) time.Duration {
	elapsed := time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	return time.Minute - elapsed
}
