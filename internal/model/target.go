package model

import (
	"fmt"
	"strings"
	"time"
)

// Language selects the prayer names and status texts shown to the user.
type Language string

const (
	// LanguageUzbek uses the names of the Uzbek prayer time service (default).
	LanguageUzbek Language = "uz"
	// LanguageEnglish uses the canonical transliterated names.
	LanguageEnglish Language = "en"
)

// Name returns p's display name in lang.
func (lang Language) Name(p Prayer) string {
	if lang == LanguageEnglish {
		return p.String()
	}
	return p.UzbekName()
}

// DisplayTarget is the next upcoming prayer as derived by the next-event
// resolver. It is recomputed on every display refresh and never mutated.
type DisplayTarget struct {
	Prayer Prayer
	// Clock is the time of day shown to the user.
	Clock ClockTime
	// At is the resolved instant. For a label-only fallback it is today's
	// time rolled to tomorrow.
	At time.Time
	// Tomorrow is set when the target was taken from tomorrow's record.
	Tomorrow bool
	// LabelOnly is set when tomorrow's record was missing and today's Fajr
	// time stands in for it.
	LabelOnly bool
}

// Label formats the target as "<Name> HH:mm".
func (t DisplayTarget) Label(lang Language) string {
	return fmt.Sprintf("%s %s", lang.Name(t.Prayer), t.Clock.HHMM())
}

// NotificationRequest is one reminder handed to a notification delivery
// backend. ID is derived from prayer and date so rescheduling replaces rather
// than duplicates.
type NotificationRequest struct {
	ID     string
	Title  string
	Body   string
	FireAt time.Time
	Prayer Prayer
	Date   Date
}

// NotificationID returns the deterministic identifier for prayer p on d.
func NotificationID(p Prayer, d Date) string {
	return "prayer_" + strings.ToLower(p.String()) + "_" + d.String()
}
