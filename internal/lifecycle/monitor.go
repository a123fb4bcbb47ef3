// Package lifecycle turns host power events into engine notifications.
//
// Two sources are supported. A wall-clock watcher notices suspend/resume by
// comparing wall-clock progress against the monotonic clock, which does not
// advance while the machine sleeps. Separately, SIGUSR1 and SIGUSR2 let OS
// hooks (sleepwatcher, systemd-sleep, a screensaver script) report a wake or
// a screen unlock explicitly.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"
)

// DefaultInterval is the wall-clock watcher's sampling period.
const DefaultInterval = 30 * time.Second

// Handler receives lifecycle events. The refresh engine satisfies it.
type Handler interface {
	Wake()
	Unlock()
}

// Monitor watches for suspend/resume and lifecycle signals.
type Monitor struct {
	handler  Handler
	interval time.Duration
	log      *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewMonitor creates a Monitor sampling the clock every interval. A zero
// interval selects [DefaultInterval].
func NewMonitor(h Handler, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		handler:  h,
		interval: interval,
		log:      logger,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	sigs := make(chan os.Signal, 4)
	if len(lifecycleSignals) > 0 {
		signal.Notify(sigs, lifecycleSignals...)
		defer signal.Stop(sigs)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("lifecycle monitor started", "interval", m.interval)
	prev := m.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigs:
			m.dispatch(sig)
		case <-ticker.C:
			now := m.now()
			if m.check(prev, now) {
				m.handler.Wake()
			}
			prev = now
		}
	}
}

// check reports whether the host appears to have slept between two samples.
func (m *Monitor) check(prev, now time.Time) bool {
	wall := now.Round(0).Sub(prev.Round(0))
	mono := now.Sub(prev)
	if !detectJump(wall, mono, m.interval) {
		return false
	}
	m.log.Info("clock jump detected, assuming wake", "wall_elapsed", wall, "monotonic_elapsed", mono)
	return true
}

// detectJump reports whether the wall clock drifted more than one interval
// away from the monotonic clock, or the sample arrived over an interval late.
func detectJump(wall, mono, interval time.Duration) bool {
	drift := wall - mono
	if drift < 0 {
		drift = -drift
	}
	return drift > interval || mono > 2*interval
}

func (m *Monitor) dispatch(sig os.Signal) {
	switch {
	case isWakeSignal(sig):
		m.log.Info("wake signal received", "signal", sig.String())
		m.handler.Wake()
	case isUnlockSignal(sig):
		m.log.Info("unlock signal received", "signal", sig.String())
		m.handler.Unlock()
	default:
		m.log.Debug("ignoring signal", "signal", sig.String())
	}
}
