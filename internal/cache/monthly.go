// Package cache holds the most recently fetched month of prayer times for one
// region. A Monthly is owned by the refresh engine; it is not safe for
// concurrent use.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/njoerd114/prayerrelay/internal/model"
)

var (
	// ErrEmptyResult rejects a replacement with no records.
	ErrEmptyResult = errors.New("empty prayer time result")
	// ErrInconsistent rejects a replacement that mixes regions or months or
	// repeats a date.
	ErrInconsistent = errors.New("inconsistent prayer time result")
)

// Monthly is the cached month. The zero value is an empty cache.
type Monthly struct {
	region    string
	yearMonth model.YearMonth
	days      []model.DailyPrayerTime
	fetchedAt time.Time
}

// Snapshot is the persisted form of a Monthly.
type Snapshot struct {
	Region    string
	YearMonth model.YearMonth
	FetchedAt time.Time
	Days      []model.DailyPrayerTime
}

// Replace swaps the whole cached set. On error the previous contents are kept.
func (m *Monthly) Replace(region string, ym model.YearMonth, days []model.DailyPrayerTime, fetchedAt time.Time) error {
	if len(days) == 0 {
		return ErrEmptyResult
	}

	sorted := make([]model.DailyPrayerTime, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i, d := range sorted {
		if d.Region != region {
			return fmt.Errorf("%w: record for %s has region %q, want %q", ErrInconsistent, d.Date, d.Region, region)
		}
		if d.Date.YearMonth() != ym {
			return fmt.Errorf("%w: record for %s outside %s", ErrInconsistent, d.Date, ym)
		}
		if i > 0 && sorted[i-1].Date == d.Date {
			return fmt.Errorf("%w: duplicate record for %s", ErrInconsistent, d.Date)
		}
	}

	m.region = region
	m.yearMonth = ym
	m.days = sorted
	m.fetchedAt = fetchedAt
	return nil
}

// Restore loads a persisted snapshot. It applies the same checks as Replace.
func (m *Monthly) Restore(s Snapshot) error {
	return m.Replace(s.Region, s.YearMonth, s.Days, s.FetchedAt)
}

// Snapshot returns a copy of the cached state for persistence.
func (m *Monthly) Snapshot() Snapshot {
	return Snapshot{
		Region:    m.region,
		YearMonth: m.yearMonth,
		FetchedAt: m.fetchedAt,
		Days:      m.Days(),
	}
}

// Invalidate empties the cache.
func (m *Monthly) Invalidate() {
	*m = Monthly{}
}

// IsFresh reports whether the cache covers now's month and holds a record for
// now's calendar date.
func (m *Monthly) IsFresh(now time.Time) bool {
	if m.Empty() || m.yearMonth != model.YearMonthOf(now) {
		return false
	}
	_, ok := m.FindByDate(model.DateOf(now))
	return ok
}

// FindByDate returns the record for d.
func (m *Monthly) FindByDate(d model.Date) (model.DailyPrayerTime, bool) {
	i := sort.Search(len(m.days), func(i int) bool {
		return !m.days[i].Date.Before(d)
	})
	if i < len(m.days) && m.days[i].Date == d {
		return m.days[i], true
	}
	return model.DailyPrayerTime{}, false
}

// DaysFrom returns how many cached records fall on or after d.
func (m *Monthly) DaysFrom(d model.Date) int {
	i := sort.Search(len(m.days), func(i int) bool {
		return !m.days[i].Date.Before(d)
	})
	return len(m.days) - i
}

// Empty reports whether nothing is cached.
func (m *Monthly) Empty() bool { return len(m.days) == 0 }

// Region returns the cached region, or "" when empty.
func (m *Monthly) Region() string { return m.region }

// YearMonth returns the cached month.
func (m *Monthly) YearMonth() model.YearMonth { return m.yearMonth }

// FetchedAt returns the instant of the last successful replacement.
func (m *Monthly) FetchedAt() time.Time { return m.fetchedAt }

// Days returns a copy of the cached records in date order.
func (m *Monthly) Days() []model.DailyPrayerTime {
	out := make([]model.DailyPrayerTime, len(m.days))
	copy(out, m.days)
	return out
}
