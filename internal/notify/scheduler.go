// Package notify turns the cached month into one-shot prayer reminders and
// delivers them.
//
// [Scheduler] is the pure rebuild step: every call clears all pending
// reminders and schedules a fresh set. [Local] is an in-process delivery
// backend that fires reminders through one or more [Sender]s; the
// reminders package provides an Apple Reminders backend with the same
// [Delivery] contract.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// MaxDays bounds how many days ahead reminders are scheduled.
const MaxDays = 10

// Delivery is a notification backend. Schedule with an ID that is already
// pending replaces it.
type Delivery interface {
	ClearAllPending(ctx context.Context) error
	Schedule(ctx context.Context, req model.NotificationRequest) error
}

// Scheduler rebuilds the pending reminder set.
type Scheduler struct {
	delivery Delivery
	lang     model.Language
	log      *slog.Logger
}

// NewScheduler creates a Scheduler delivering through d.
func NewScheduler(d Delivery, lang model.Language, logger *slog.Logger) *Scheduler {
	return &Scheduler{delivery: d, lang: lang, log: logger}
}

// Reschedule clears every pending reminder and, when notifications are
// enabled, schedules the requests produced by [Build]. It returns the number
// of reminders handed to the backend. Individual schedule failures are
// logged and skipped.
func (s *Scheduler) Reschedule(ctx context.Context, days []model.DailyPrayerTime, settings model.Settings, now time.Time) (int, error) {
	if err := s.delivery.ClearAllPending(ctx); err != nil {
		return 0, fmt.Errorf("clearing pending notifications: %w", err)
	}
	if !settings.Notifications {
		s.log.Debug("notifications disabled, pending reminders cleared")
		return 0, nil
	}

	reqs := Build(days, settings.LeadMinutes, s.lang, now)
	scheduled := 0
	for _, req := range reqs {
		if err := s.delivery.Schedule(ctx, req); err != nil {
			s.log.Warn("scheduling notification failed", "id", req.ID, "error", err)
			continue
		}
		scheduled++
	}
	s.log.Info("notifications rescheduled", "count", scheduled)
	return scheduled, nil
}

// Clear removes every pending reminder.
func (s *Scheduler) Clear(ctx context.Context) error {
	if err := s.delivery.ClearAllPending(ctx); err != nil {
		return fmt.Errorf("clearing pending notifications: %w", err)
	}
	return nil
}

// Build returns the reminder requests for days, in date then prayer order.
// Only days on or after now's date count, at most [MaxDays] of them. Each
// prayer fires leadMinutes before its time; requests whose fire time is not
// after now are dropped.
func Build(days []model.DailyPrayerTime, leadMinutes int, lang model.Language, now time.Time) []model.NotificationRequest {
	today := model.DateOf(now)
	loc := now.Location()
	lead := time.Duration(leadMinutes) * time.Minute

	var reqs []model.NotificationRequest
	used := 0
	for _, d := range days {
		if d.Date.Before(today) {
			continue
		}
		if used == MaxDays {
			break
		}
		used++

		for _, p := range model.Prayers {
			fireAt := d.At(p, loc).Add(-lead)
			if !fireAt.After(now) {
				continue
			}
			title, body := texts(lang, p, leadMinutes)
			reqs = append(reqs, model.NotificationRequest{
				ID:     model.NotificationID(p, d.Date),
				Title:  title,
				Body:   body,
				FireAt: fireAt,
				Prayer: p,
				Date:   d.Date,
			})
		}
	}
	return reqs
}

func texts(lang model.Language, p model.Prayer, leadMinutes int) (title, body string) {
	name := lang.Name(p)
	if lang == model.LanguageEnglish {
		title = name + " time"
		if leadMinutes > 0 {
			return title, fmt.Sprintf("%s prayer in %d minutes", name, leadMinutes)
		}
		return title, fmt.Sprintf("It is time for %s prayer", name)
	}
	title = name + " vaqti"
	if leadMinutes > 0 {
		return title, fmt.Sprintf("%s namoziga %d daqiqa qoldi", name, leadMinutes)
	}
	return title, fmt.Sprintf("%s namozi vaqti kirdi", name)
}
