package refresh

import (
	"fmt"
	"time"
)

// State is the refresh engine's state.
type State int

const (
	// Idle means the cache covers today and nothing is pending.
	Idle State = iota
	// Fetching means a fetch is in flight.
	Fetching
	// StaleWithCache means the last fetch failed but a cache exists.
	StaleWithCache
	// ErrorNoCache means the last fetch failed and nothing is cached.
	ErrorNoCache
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case StaleWithCache:
		return "stale"
	case ErrorNoCache:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= ErrorNoCache; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown refresh state %q", b)
}

// Status is a point-in-time view of the engine.
type Status struct {
	State      State      `json:"state"`
	Region     string     `json:"region"`
	Month      string     `json:"month,omitempty"`
	FetchedAt  *time.Time `json:"fetched_at,omitempty"`
	CachedDays int        `json:"cached_days"`
	Failures   int        `json:"failures"`
	RetryArmed bool       `json:"retry_armed"`
	NextRetry  *time.Time `json:"next_retry,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Label      string     `json:"label"`
	NextPrayer string     `json:"next_prayer,omitempty"`
	NextAt     *time.Time `json:"next_at,omitempty"`
	Countdown  bool       `json:"countdown"`
	Notify     bool       `json:"notifications"`
}

func (e *Engine) status() Status {
	st := Status{
		State:      e.state,
		Region:     e.settings.Region,
		CachedDays: len(e.cache.Days()),
		Failures:   e.retry.Failures(),
		RetryArmed: e.retry.Armed(),
		Label:      e.label,
		Countdown:  e.settings.Countdown,
		Notify:     e.settings.Notifications,
	}
	if !e.cache.Empty() {
		st.Month = e.cache.YearMonth().String()
		fetched := e.cache.FetchedAt()
		st.FetchedAt = &fetched
	}
	if e.retry.Armed() && !e.retryAt.IsZero() {
		at := e.retryAt
		st.NextRetry = &at
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	if e.displayed != nil {
		st.NextPrayer = e.lang.Name(e.displayed.Prayer)
		at := e.displayed.At
		st.NextAt = &at
	}
	return st
}
