// Package prayer derives the next upcoming prayer from cached daily records
// and the remaining time until it. Everything here is a pure function of its
// arguments.
package prayer

import (
	"time"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// Next returns the first prayer of today strictly after now. Once all five
// have passed it returns tomorrow's Fajr when tomorrow is non-nil, and
// otherwise today's Fajr time marked LabelOnly with At rolled forward one day.
//
// Times are combined with the record dates in now's location.
func Next(today model.DailyPrayerTime, tomorrow *model.DailyPrayerTime, now time.Time) model.DisplayTarget {
	loc := now.Location()
	for _, p := range model.Prayers {
		at := today.At(p, loc)
		if at.After(now) {
			return model.DisplayTarget{Prayer: p, Clock: today.Time(p), At: at}
		}
	}

	if tomorrow != nil {
		return model.DisplayTarget{
			Prayer:   model.Fajr,
			Clock:    tomorrow.Fajr,
			At:       tomorrow.At(model.Fajr, loc),
			Tomorrow: true,
		}
	}

	return model.DisplayTarget{
		Prayer:    model.Fajr,
		Clock:     today.Fajr,
		At:        today.Fajr.On(today.Date.AddDays(1), loc),
		LabelOnly: true,
	}
}
