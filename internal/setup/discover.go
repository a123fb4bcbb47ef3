package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	ekreminders "github.com/BRO3886/go-eventkit/reminders"

	"github.com/njoerd114/prayerrelay/internal/homeassistant"
	"github.com/njoerd114/prayerrelay/internal/model"
)

// MonthFetcher is the prayer time source probed while choosing a region.
type MonthFetcher interface {
	FetchMonth(ctx context.Context, region string, ym model.YearMonth) ([]model.DailyPrayerTime, error)
}

// RemindersList represents a discovered Apple Reminders list.
type RemindersList struct {
	Title string
	Count int
}

// ProbeRegion fetches the current month for region and returns today's
// record, confirming that the service is reachable and serves the region.
func ProbeRegion(ctx context.Context, src MonthFetcher, region string, now time.Time) (model.DailyPrayerTime, error) {
	days, err := src.FetchMonth(ctx, region, model.YearMonthOf(now))
	if err != nil {
		return model.DailyPrayerTime{}, fmt.Errorf("fetching %s: %w", region, err)
	}
	today := model.DateOf(now)
	for _, d := range days {
		if d.Date == today {
			return d, nil
		}
	}
	return model.DailyPrayerTime{}, fmt.Errorf("no record for %s in %d days returned for %s", today, len(days), region)
}

// PingHA verifies connectivity with the Home Assistant instance using the
// given URL and token. Returns nil on success.
func PingHA(ctx context.Context, haURL, haToken string) error {
	d, err := homeassistant.NewDisplay(haURL, haToken, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	return d.Ping(ctx)
}

// DiscoverRemindersLists returns all Apple Reminders lists available on this
// Mac. This triggers the macOS TCC permissions prompt on first use.
func DiscoverRemindersLists(logger *slog.Logger) ([]RemindersList, error) {
	client, err := ekreminders.New()
	if err != nil {
		return nil, fmt.Errorf("initialising Reminders client: %w", err)
	}

	lists, err := client.Lists()
	if err != nil {
		return nil, fmt.Errorf("fetching Reminders lists: %w", err)
	}

	logger.Debug("discovered Reminders lists", "count", len(lists))

	var result []RemindersList
	for _, l := range lists {
		result = append(result, RemindersList{
			Title: l.Title,
			Count: l.Count,
		})
	}
	return result, nil
}
