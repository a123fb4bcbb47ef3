// Package model defines the shared value types used by the refresh engine,
// the prayer time source, the notification scheduler and the display sinks.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prayer identifies one of the five daily prayers in canonical order.
type Prayer int

const (
	// Fajr is the dawn prayer (Bomdod).
	Fajr Prayer = iota
	// Dhuhr is the midday prayer (Peshin).
	Dhuhr
	// Asr is the afternoon prayer.
	Asr
	// Maghrib is the sunset prayer (Shom).
	Maghrib
	// Isha is the night prayer (Xufton).
	Isha
)

// Prayers lists the five prayers in the order they occur during a day.
var Prayers = []Prayer{Fajr, Dhuhr, Asr, Maghrib, Isha}

// String returns the canonical (transliterated Arabic) name.
func (p Prayer) String() string {
	switch p {
	case Fajr:
		return "Fajr"
	case Dhuhr:
		return "Dhuhr"
	case Asr:
		return "Asr"
	case Maghrib:
		return "Maghrib"
	case Isha:
		return "Isha"
	default:
		return fmt.Sprintf("Prayer(%d)", int(p))
	}
}

// UzbekName returns the name used by the Uzbek prayer time service and the
// default display language.
func (p Prayer) UzbekName() string {
	switch p {
	case Fajr:
		return "Bomdod"
	case Dhuhr:
		return "Peshin"
	case Asr:
		return "Asr"
	case Maghrib:
		return "Shom"
	case Isha:
		return "Xufton"
	default:
		return p.String()
	}
}

// ClockTime is a wall-clock time of day without a date or zone. It is
// interpreted in the device's local time when combined with a [Date].
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses "HH:mm:ss" or "HH:mm". Surrounding whitespace and a
// trailing zone annotation such as " (+05)" are ignored.
func ParseClock(s string) (ClockTime, error) {
	raw := strings.TrimSpace(s)
	if idx := strings.Index(raw, " "); idx != -1 {
		raw = raw[:idx]
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return ClockTime{}, fmt.Errorf("invalid time of day %q", s)
	}

	var vals [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return ClockTime{}, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
		vals[i] = n
	}

	c := ClockTime{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return ClockTime{}, fmt.Errorf("time of day %q out of range", s)
	}
	return c, nil
}

// MustClock is like [ParseClock] but panics on error. Intended for tests and
// static tables.
func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the time as "HH:mm:ss".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// HHMM formats the time as "HH:mm", the display form.
func (c ClockTime) HHMM() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On combines the time of day with d in loc.
func (c ClockTime) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, c.Second, 0, loc)
}

// DailyPrayerTime is one calendar day's schedule for one region. Values are
// immutable once constructed; every consumer receives a copy.
type DailyPrayerTime struct {
	Region  string
	Date    Date
	Fajr    ClockTime
	Sunrise ClockTime // display only, never a reminder or countdown target
	Dhuhr   ClockTime
	Asr     ClockTime
	Maghrib ClockTime
	Isha    ClockTime
}

// Time returns the time of day of prayer p.
func (d DailyPrayerTime) Time(p Prayer) ClockTime {
	switch p {
	case Fajr:
		return d.Fajr
	case Dhuhr:
		return d.Dhuhr
	case Asr:
		return d.Asr
	case Maghrib:
		return d.Maghrib
	default:
		return d.Isha
	}
}

// At returns the instant of prayer p on this record's date in loc.
func (d DailyPrayerTime) At(p Prayer, loc *time.Location) time.Time {
	return d.Time(p).On(d.Date, loc)
}
