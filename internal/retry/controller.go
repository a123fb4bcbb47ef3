// Package retry implements the fixed-table backoff used after a failed
// prayer time fetch, together with the single retry timer it arms.
//
// A Controller is owned by the refresh engine's loop and is not safe for
// concurrent use.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/njoerd114/prayerrelay/internal/clock"
)

// DefaultTable is the delay after the 1st, 2nd, ... consecutive failure. The
// last entry repeats indefinitely.
var DefaultTable = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
	6 * time.Hour,
}

// Controller counts consecutive failures and owns at most one pending retry
// timer.
type Controller struct {
	table    []time.Duration
	failures int
	timer    clock.Timer
}

var _ backoff.BackOff = (*Controller)(nil)

// New creates a Controller. With no table it uses [DefaultTable].
func New(table ...time.Duration) *Controller {
	if len(table) == 0 {
		table = DefaultTable
	}
	t := make([]time.Duration, len(table))
	copy(t, table)
	return &Controller{table: t}
}

// OnFailure records one more failure and returns the delay before the next
// attempt: table[min(n-1, len-1)] for the nth consecutive failure.
func (c *Controller) OnFailure() time.Duration {
	c.failures++
	idx := min(c.failures-1, len(c.table)-1)
	return c.table[idx]
}

// OnSuccess resets the failure count and disarms any pending retry.
func (c *Controller) OnSuccess() {
	c.failures = 0
	c.Disarm()
}

// Failures returns the current consecutive failure count.
func (c *Controller) Failures() int { return c.failures }

// Arm schedules fn after d, replacing any previously armed timer.
func (c *Controller) Arm(clk clock.Clock, d time.Duration, fn func()) {
	c.Disarm()
	c.timer = clk.AfterFunc(d, fn)
}

// Disarm cancels the pending retry, if any.
func (c *Controller) Disarm() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Armed reports whether a retry timer is pending. A timer that has fired but
// was never disarmed still counts; the engine disarms on every fetch start.
func (c *Controller) Armed() bool { return c.timer != nil }

// NextBackOff implements [backoff.BackOff]. It never returns [backoff.Stop].
func (c *Controller) NextBackOff() time.Duration { return c.OnFailure() }

// Reset implements [backoff.BackOff] and is equivalent to OnSuccess.
func (c *Controller) Reset() { c.OnSuccess() }
