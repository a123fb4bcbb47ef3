package refresh

import (
	"errors"
	"time"

	"github.com/njoerd114/prayerrelay/internal/model"
	"github.com/njoerd114/prayerrelay/internal/namozapi"
	"github.com/njoerd114/prayerrelay/internal/prayer"
)

// refreshAll recomputes the display and rebuilds the pending reminders.
func (e *Engine) refreshAll() {
	e.render()
	if e.settings.Notifications {
		e.rescheduleNotifications()
	}
}

// render recomputes the label from the cache and arms the next tick.
func (e *Engine) render() {
	now := e.clk.Now()
	e.stopTick()

	if e.cache.Empty() {
		e.displayed = nil
		if e.state == Fetching {
			e.show(e.texts.Loading)
		} else {
			e.show(e.texts.LoadFailed)
		}
		return
	}

	target, ok := e.resolve(now)
	if !ok {
		e.displayed = nil
		e.show(e.decorate(e.texts.NoDataToday))
		return
	}
	e.displayed = &target

	if e.settings.Countdown {
		remaining, _ := prayer.Remaining(target.Clock, now)
		e.show(e.decorate(e.countdownLabel(target, remaining)))
	} else {
		e.show(e.decorate(target.Label(e.lang)))
	}
	e.armTick(now)
}

// onTick updates the countdown and detects a prayer time being crossed,
// including crossings that happened while the host was asleep.
func (e *Engine) onTick() {
	now := e.clk.Now()
	if e.displayed == nil {
		e.render()
		return
	}
	shown := *e.displayed

	remaining, remOK := prayer.Remaining(shown.Clock, now)
	fresh, ok := e.resolve(now)
	if !remOK || !ok || fresh.Prayer != shown.Prayer || !fresh.At.Equal(shown.At) {
		e.onReached(shown, now)
		return
	}

	if e.settings.Countdown {
		e.show(e.decorate(e.countdownLabel(shown, remaining)))
	}
	e.armTick(now)
}

// onReached handles the displayed prayer's time having passed. A crossing
// seen within reachedHold of the prayer time shows the "time has come" label
// for one tick; a late one (after sleep) goes straight to the next target.
func (e *Engine) onReached(shown model.DisplayTarget, now time.Time) {
	if e.settings.Notifications {
		e.rescheduleNotifications()
	}

	since := now.Sub(shown.At)
	if since < 0 || since >= reachedHold {
		e.render()
		return
	}

	e.log.Info("prayer time reached", "prayer", shown.Prayer.String())
	e.stopTick()
	e.displayed = nil
	e.show(e.decorate(e.texts.Reached(e.lang.Name(shown.Prayer))))
	e.armTick(now)
}

// resolve returns the next target from today's record. ok is false when the
// cache has no record for now's date.
func (e *Engine) resolve(now time.Time) (model.DisplayTarget, bool) {
	today, ok := e.cache.FindByDate(model.DateOf(now))
	if !ok {
		return model.DisplayTarget{}, false
	}
	var tomorrow *model.DailyPrayerTime
	if t, ok := e.cache.FindByDate(today.Date.AddDays(1)); ok {
		tomorrow = &t
	}
	return prayer.Next(today, tomorrow, now), true
}

func (e *Engine) countdownLabel(t model.DisplayTarget, remaining time.Duration) string {
	return e.texts.Countdown(e.lang.Name(t.Prayer), prayer.FormatRemaining(remaining))
}

// decorate marks labels rendered from a cache whose last refresh failed.
func (e *Engine) decorate(label string) string {
	if e.state == StaleWithCache {
		return e.texts.Stale(label, errors.Is(e.lastErr, namozapi.ErrTransport))
	}
	return label
}

func (e *Engine) show(label string) {
	e.label = label
	e.sink.Show(label)
}

// --- notifications -----------------------------------------------------------

func (e *Engine) rescheduleNotifications() {
	if e.notifier == nil {
		return
	}
	n, err := e.notifier.Reschedule(e.ctx, e.cache.Days(), e.settings, e.clk.Now())
	if err != nil {
		e.log.Warn("rescheduling notifications failed", "error", err)
		return
	}
	e.cntNotified.Add(e.ctx, int64(n))
}

func (e *Engine) clearNotifications() {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Clear(e.ctx); err != nil {
		e.log.Warn("clearing notifications failed", "error", err)
	}
}
