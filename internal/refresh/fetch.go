package refresh

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/prayerrelay/internal/model"
)

var errNoRecordToday = errors.New("no record for today in fetched month")

// evaluate fetches when the cache does not cover today and otherwise
// refreshes the display and reminders. An armed retry keeps running, along
// with the stale marker, until a fetch succeeds; without one the engine
// settles in Idle.
func (e *Engine) evaluate(reason string) {
	now := e.clk.Now()
	if e.fetching {
		return
	}
	if !e.cache.IsFresh(now) {
		e.startFetch(reason)
		return
	}
	if !e.retry.Armed() {
		e.retryAt = time.Time{}
		e.state = Idle
	}
	e.refreshAll()
}

// startFetch issues a fetch for the current region and month unless one is
// already in flight. Any armed retry is disarmed first.
func (e *Engine) startFetch(reason string) {
	if e.fetching {
		e.log.Debug("fetch already in flight", "trigger", reason)
		return
	}
	e.retry.Disarm()
	e.retryAt = time.Time{}

	now := e.clk.Now()
	region := e.settings.Region
	ym := model.YearMonthOf(now)

	e.fetchSeq++
	seq := e.fetchSeq
	ctx, cancel := context.WithCancel(e.ctx)
	e.fetching = true
	e.fetchCancel = cancel
	e.state = Fetching

	attrs := []attribute.KeyValue{
		attribute.String("prayer.region", region),
		attribute.String("prayer.month", ym.String()),
		attribute.String("refresh.trigger", reason),
	}
	e.cntFetches.Add(ctx, 1, metric.WithAttributes(attrs...))
	e.log.Info("fetching prayer times", "region", region, "month", ym.String(), "trigger", reason)

	go func() {
		ctx, span := e.tracer.Start(ctx, spanFetch, trace.WithAttributes(attrs...))
		days, err := e.source.FetchMonth(ctx, region, ym)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		e.post(func() { e.onFetchResult(seq, region, ym, days, err) })
	}()
}

func (e *Engine) onFetchResult(seq uint64, region string, ym model.YearMonth, days []model.DailyPrayerTime, err error) {
	if seq != e.fetchSeq || region != e.settings.Region {
		e.log.Debug("discarding stale fetch result", "region", region, "month", ym.String())
		return
	}
	e.fetching = false
	if e.fetchCancel != nil {
		e.fetchCancel()
		e.fetchCancel = nil
	}

	now := e.clk.Now()
	if err == nil {
		err = e.cache.Replace(region, ym, days, now)
	}
	if err != nil {
		e.onFetchFailure(region, err)
		return
	}

	e.lastErr = nil
	e.retry.OnSuccess()
	e.retryAt = time.Time{}
	e.state = Idle
	e.log.Info("prayer times updated", "region", region, "month", ym.String(), "days", len(days))
	e.persist()

	if left := e.cache.DaysFrom(model.DateOf(now)); left < lowDaysThreshold {
		e.log.Info("cached month ends soon", "days_left", left, "month", ym.String())
	}

	if !e.cache.IsFresh(now) {
		if model.YearMonthOf(now) != ym {
			// The month turned while the request was in flight.
			e.startFetch("month changed")
			return
		}
		e.log.Warn("fetched month has no record for today", "region", region, "date", model.DateOf(now).String())
		e.scheduleRetry(now, errNoRecordToday)
		e.refreshAll()
		return
	}

	e.refreshAll()
}

func (e *Engine) onFetchFailure(region string, err error) {
	now := e.clk.Now()
	e.cntFailures.Add(e.ctx, 1, metric.WithAttributes(attribute.String("prayer.region", region)))
	delay := e.scheduleRetry(now, err)
	e.log.Warn("fetch failed",
		"region", region, "error", err,
		"failures", e.retry.Failures(), "retry_in", delay)
	e.render()
}

// scheduleRetry records a failure, arms the retry timer and moves to the
// matching failure state.
func (e *Engine) scheduleRetry(now time.Time, err error) time.Duration {
	e.lastErr = err
	delay := e.retry.OnFailure()
	e.retryAt = now.Add(delay)
	e.retry.Arm(e.clk, delay, func() { e.post(e.onRetryFire) })
	if e.cache.Empty() {
		e.state = ErrorNoCache
	} else {
		e.state = StaleWithCache
	}
	return delay
}

func (e *Engine) onRetryFire() {
	e.retry.Disarm()
	e.retryAt = time.Time{}
	e.startFetch("retry")
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveSnapshot(e.ctx, e.cache.Snapshot()); err != nil {
		e.log.Warn("persisting prayer times failed", "error", err)
	}
}
