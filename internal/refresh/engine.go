package refresh

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/prayerrelay/internal/cache"
	"github.com/njoerd114/prayerrelay/internal/clock"
	"github.com/njoerd114/prayerrelay/internal/display"
	"github.com/njoerd114/prayerrelay/internal/model"
	"github.com/njoerd114/prayerrelay/internal/retry"
)

const (
	otelScope      = "prayerrelay/refresh"
	spanFetch      = "refresh.fetch"
	metricFetches  = "prayerrelay.refresh.fetches"
	metricFailures = "prayerrelay.refresh.failures"
	metricNotified = "prayerrelay.notify.scheduled"

	// midnightSpec fires one second after local midnight.
	midnightSpec = "1 0 0 * * *"

	// lowDaysThreshold triggers an informational log when the cached month
	// is about to run out.
	lowDaysThreshold = 7

	// reachedHold is how long the "time has come" label stays up before the
	// next target is shown.
	reachedHold = time.Minute

	opsBuffer = 64
)

// ErrStopped is returned by request/reply calls once Run has exited.
var ErrStopped = errors.New("refresh engine stopped")

// Options configures an [Engine]. Source, Sink and Clock are required.
type Options struct {
	Source   Source
	Store    SnapshotStore // optional
	Notifier Notifier      // optional
	Sink     display.Sink
	Clock    clock.Clock
	Retry    *retry.Controller // defaults to retry.New()
	Settings model.Settings
	Language model.Language
	Logger   *slog.Logger
}

// Engine is the refresh scheduler. Create one with [New] and start it with
// [Engine.Run]; every other method is safe for concurrent use.
type Engine struct {
	source   Source
	store    SnapshotStore
	notifier Notifier
	sink     display.Sink
	clk      clock.Clock
	lang     model.Language
	texts    display.Texts
	midnight cron.Schedule
	log      *slog.Logger

	ops  chan func()
	done chan struct{}
	ctx  context.Context

	// Loop-owned state below.
	settings model.Settings
	cache    cache.Monthly
	retry    *retry.Controller
	state    State
	retryAt  time.Time
	lastErr  error

	fetching    bool
	fetchSeq    uint64
	fetchCancel context.CancelFunc

	displayed *model.DisplayTarget
	label     string

	midnightTimer clock.Timer
	tick          clock.Timer
	tickGen       uint64

	// OTel instruments, no-op when telemetry is disabled.
	tracer      trace.Tracer
	cntFetches  metric.Int64Counter
	cntFailures metric.Int64Counter
	cntNotified metric.Int64Counter
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rc := opts.Retry
	if rc == nil {
		rc = retry.New()
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	midnight, err := parser.Parse(midnightSpec)
	if err != nil {
		panic("refresh: invalid midnight schedule: " + err.Error())
	}

	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)
	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		source:   opts.Source,
		store:    opts.Store,
		notifier: opts.Notifier,
		sink:     opts.Sink,
		clk:      opts.Clock,
		lang:     opts.Language,
		texts:    display.TextsFor(opts.Language),
		midnight: midnight,
		log:      logger,

		ops:  make(chan func(), opsBuffer),
		done: make(chan struct{}),
		ctx:  context.Background(),

		settings: opts.Settings,
		retry:    rc,
		state:    Idle,

		tracer:      tracer,
		cntFetches:  mustCounter(metricFetches, "Number of prayer time fetches started"),
		cntFailures: mustCounter(metricFailures, "Number of failed prayer time fetches"),
		cntNotified: mustCounter(metricNotified, "Number of reminders handed to the delivery backend"),
	}
}

// Run restores the persisted month, evaluates staleness and then processes
// events until ctx is cancelled. It returns ctx.Err().
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer close(e.done)
	defer e.shutdown()

	e.startup()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("refresh engine shutting down")
			return ctx.Err()
		case op := <-e.ops:
			op()
		}
	}
}

// Refresh forces a fetch, the manual "update now" action.
func (e *Engine) Refresh() {
	e.post(func() {
		e.log.Info("manual refresh requested")
		e.startFetch("manual")
	})
}

// Wake reports that the host resumed from sleep.
func (e *Engine) Wake() {
	e.post(func() { e.onLifecycle("wake", true) })
}

// Unlock reports that the screen was unlocked.
func (e *Engine) Unlock() {
	e.post(func() { e.onLifecycle("unlock", false) })
}

// ApplySettings applies one settings change. Changes are handled strictly in
// call order.
func (e *Engine) ApplySettings(change model.SettingsChange) {
	e.post(func() { e.onSettingsChange(change) })
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := e.call(ctx, func() { reply <- e.status() }); err != nil {
		return Status{}, err
	}
	return <-reply, nil
}

// Month returns a copy of the cached month.
func (e *Engine) Month(ctx context.Context) (cache.Snapshot, error) {
	reply := make(chan cache.Snapshot, 1)
	if err := e.call(ctx, func() { reply <- e.cache.Snapshot() }); err != nil {
		return cache.Snapshot{}, err
	}
	return <-reply, nil
}

// --- loop plumbing -----------------------------------------------------------

// post enqueues fn for the loop. It drops fn once Run has exited.
func (e *Engine) post(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.done:
	}
}

// call runs fn on the loop and waits for it to finish.
func (e *Engine) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case e.ops <- func() { fn(); close(finished) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

func (e *Engine) startup() {
	e.log.Info("refresh engine starting", "region", e.settings.Region)
	e.restore()
	e.armMidnight()
	if e.cache.Empty() {
		e.show(e.texts.Loading)
	}
	e.evaluate("startup")
}

func (e *Engine) shutdown() {
	if e.fetchCancel != nil {
		e.fetchCancel()
	}
	e.retry.Disarm()
	e.stopTick()
	if e.midnightTimer != nil {
		e.midnightTimer.Stop()
	}
}

// restore loads the persisted month for the current region, if any.
func (e *Engine) restore() {
	if e.store == nil {
		return
	}
	snap, err := e.store.LoadSnapshot(e.ctx, e.settings.Region)
	if err != nil {
		e.log.Warn("loading persisted prayer times failed", "region", e.settings.Region, "error", err)
		return
	}
	if snap == nil {
		return
	}
	if err := e.cache.Restore(*snap); err != nil {
		e.log.Warn("ignoring persisted prayer times", "region", e.settings.Region, "error", err)
		return
	}
	e.log.Info("restored persisted prayer times",
		"region", snap.Region, "month", snap.YearMonth.String(), "fetched_at", snap.FetchedAt)
}

// --- event handlers ----------------------------------------------------------

func (e *Engine) onMidnight() {
	e.log.Info("day rollover", "date", model.DateOf(e.clk.Now()).String())
	e.armMidnight()
	e.evaluate("midnight")
}

func (e *Engine) onLifecycle(kind string, rearmMidnight bool) {
	now := e.clk.Now()
	e.log.Debug("lifecycle signal", "kind", kind)
	if rearmMidnight {
		e.armMidnight()
	}

	fetchedAt := e.cache.FetchedAt()
	if e.cache.Empty() || fetchedAt.IsZero() || !model.SameDay(now, fetchedAt) {
		e.startFetch(kind)
		return
	}

	fresh, ok := e.resolve(now)
	if !ok || e.displayed == nil || fresh.Prayer != e.displayed.Prayer {
		e.log.Info("displayed prayer out of date", "trigger", kind)
		e.refreshAll()
		return
	}
	// Same target; re-render to realign the countdown and the tick timer
	// with the wall clock.
	e.render()
}

func (e *Engine) onSettingsChange(ch model.SettingsChange) {
	switch ch.Key {
	case model.SettingRegion:
		e.switchRegion(ch.New)
	case model.SettingCountdown:
		e.settings.Countdown, _ = strconv.ParseBool(ch.New)
		e.render()
	case model.SettingNotifications:
		e.settings.Notifications, _ = strconv.ParseBool(ch.New)
		if e.settings.Notifications {
			e.rescheduleNotifications()
		} else {
			e.clearNotifications()
		}
	case model.SettingLeadMinutes:
		e.settings.LeadMinutes, _ = strconv.Atoi(ch.New)
		if e.settings.Notifications {
			e.rescheduleNotifications()
		}
	default:
		e.log.Warn("ignoring unknown settings change", "key", ch.Key)
	}
}

// switchRegion drops everything tied to the old region before fetching the
// new one. A fetch still in flight for the old region is cancelled and its
// result, should it arrive anyway, is discarded by sequence number.
func (e *Engine) switchRegion(region string) {
	if region == e.settings.Region {
		return
	}
	e.log.Info("region changed", "old", e.settings.Region, "new", region)

	if e.fetchCancel != nil {
		e.fetchCancel()
		e.fetchCancel = nil
	}
	e.fetching = false
	e.fetchSeq++

	e.settings.Region = region
	e.cache.Invalidate()
	e.retry.OnSuccess()
	e.retryAt = time.Time{}
	e.lastErr = nil

	e.stopTick()
	e.displayed = nil
	e.clearNotifications()
	e.show(e.texts.Loading)
	e.startFetch("region change")
}

// --- timers ------------------------------------------------------------------

func (e *Engine) armMidnight() {
	if e.midnightTimer != nil {
		e.midnightTimer.Stop()
	}
	now := e.clk.Now()
	next := e.midnight.Next(now)
	e.midnightTimer = e.clk.AfterFunc(next.Sub(now), func() { e.post(e.onMidnight) })
	e.log.Debug("midnight timer armed", "at", next)
}

// armTick schedules the next display check: every minute boundary in
// countdown mode, otherwise at the displayed prayer's time.
func (e *Engine) armTick(now time.Time) {
	e.stopTick()

	d := clock.UntilNextMinute(now)
	if !e.settings.Countdown && e.displayed != nil {
		d = max(e.displayed.At.Sub(now), 0)
	}

	gen := e.tickGen
	e.tick = e.clk.AfterFunc(d, func() {
		e.post(func() {
			if gen != e.tickGen {
				return
			}
			e.tick = nil
			e.onTick()
		})
	})
}

func (e *Engine) stopTick() {
	e.tickGen++
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
}
