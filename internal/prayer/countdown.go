package prayer

import (
	"fmt"
	"time"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// Remaining returns the time from now until target's next occurrence. The
// target is first placed on now's date and moved to the following day if it
// is not after now. ok is false when even that occurrence is not after now,
// which the caller treats as the prayer having arrived.
func Remaining(target model.ClockTime, now time.Time) (d time.Duration, ok bool) {
	at := target.On(model.DateOf(now), now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	if !at.After(now) {
		return 0, false
	}
	return at.Sub(now), true
}

// FormatRemaining renders d as "HH:MM", truncating seconds. Negative values
// render as "00:00".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
