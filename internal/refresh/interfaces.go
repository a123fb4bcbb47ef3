// Package refresh implements the engine that keeps the cached month of
// prayer times current and turns it into display labels and reminders.
//
// All state (the [cache.Monthly], the [retry.Controller], the displayed
// target and the timers) is owned by a single goroutine started with
// [Engine.Run]. Fetch completions, timer fires, lifecycle signals and
// settings changes are marshalled onto that goroutine as closures and applied
// in the order they arrive.
package refresh

import (
	"context"
	"time"

	"github.com/njoerd114/prayerrelay/internal/cache"
	"github.com/njoerd114/prayerrelay/internal/model"
)

// Source fetches one month of prayer times. Implemented by
// [namozapi.Client].
type Source interface {
	FetchMonth(ctx context.Context, region string, ym model.YearMonth) ([]model.DailyPrayerTime, error)
}

// SnapshotStore persists the cached month between runs. Implemented by
// [state.Store] and [state.RedisSnapshots].
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, region string) (*cache.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap cache.Snapshot) error
}

// Notifier rebuilds the pending reminder set. Implemented by
// [notify.Scheduler].
type Notifier interface {
	Reschedule(ctx context.Context, days []model.DailyPrayerTime, settings model.Settings, now time.Time) (int, error)
	Clear(ctx context.Context) error
}
