// Package settings holds the user preferences the refresh engine reacts to
// and pushes a [model.SettingsChange] to subscribers whenever one changes.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// MaxLeadMinutes bounds the reminder lead time.
const MaxLeadMinutes = 60

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid setting")

// Backend persists settings as strings. Implemented by [state.Store].
type Backend interface {
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]string, error)
}

// Store is a typed, validating view over a Backend.
type Store struct {
	backend     Backend
	allowCustom bool
	log         *slog.Logger

	mu      sync.RWMutex
	current model.Settings
	subs    []func(model.SettingsChange)

	// pub serialises Set so subscribers see changes in the order they were
	// applied.
	pub sync.Mutex
}

// New creates a Store. allowCustomRegion accepts region names outside
// [model.Regions].
func New(backend Backend, allowCustomRegion bool, logger *slog.Logger) *Store {
	return &Store{backend: backend, allowCustom: allowCustomRegion, log: logger}
}

// Seed writes every key of defaults that the backend does not hold yet and
// loads the resulting settings.
func (s *Store) Seed(ctx context.Context, defaults model.Settings) error {
	stored, err := s.backend.AllSettings(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	defs := encode(defaults)
	for _, key := range model.SettingKeys {
		if _, ok := stored[string(key)]; ok {
			continue
		}
		if err := s.backend.SetSetting(ctx, string(key), defs[key]); err != nil {
			return fmt.Errorf("seeding setting %q: %w", key, err)
		}
		stored[string(key)] = defs[key]
		s.log.Debug("seeded setting", "key", key, "value", defs[key])
	}

	cur := defaults
	for _, key := range model.SettingKeys {
		norm, err := s.normalize(key, stored[string(key)])
		if err != nil {
			s.log.Warn("ignoring stored setting", "key", key, "error", err)
			continue
		}
		apply(&cur, key, norm)
	}

	s.mu.Lock()
	s.current = cur
	s.mu.Unlock()
	return nil
}

// Current returns a snapshot of the settings.
func (s *Store) Current() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn to receive every change. fn runs synchronously on
// the goroutine calling Set and must not call Set itself.
func (s *Store) Subscribe(fn func(model.SettingsChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Set validates and stores value under key. Subscribers are notified only
// when the normalised value differs from the current one.
func (s *Store) Set(ctx context.Context, key model.SettingKey, value string) error {
	norm, err := s.normalize(key, value)
	if err != nil {
		return err
	}

	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.RLock()
	old := encode(s.current)[key]
	s.mu.RUnlock()
	if old == norm {
		return nil
	}

	if err := s.backend.SetSetting(ctx, string(key), norm); err != nil {
		return fmt.Errorf("saving setting %q: %w", key, err)
	}

	s.mu.Lock()
	apply(&s.current, key, norm)
	subs := append([]func(model.SettingsChange){}, s.subs...)
	s.mu.Unlock()

	s.log.Info("setting changed", "key", key, "old", old, "new", norm)
	change := model.SettingsChange{Key: key, Old: old, New: norm}
	for _, fn := range subs {
		fn(change)
	}
	return nil
}

// Values returns the current settings in their stored string form.
func (s *Store) Values() map[model.SettingKey]string {
	return encode(s.Current())
}

// normalize validates value for key and returns its canonical string form.
func (s *Store) normalize(key model.SettingKey, value string) (string, error) {
	switch key {
	case model.SettingRegion:
		if value == "" {
			return "", fmt.Errorf("%w: region must not be empty", ErrInvalid)
		}
		if !s.allowCustom && !model.KnownRegion(value) {
			return "", fmt.Errorf("%w: unknown region %q", ErrInvalid, value)
		}
		return value, nil
	case model.SettingCountdown, model.SettingNotifications:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s must be true or false, got %q", ErrInvalid, key, value)
		}
		return strconv.FormatBool(b), nil
	case model.SettingLeadMinutes:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > MaxLeadMinutes {
			return "", fmt.Errorf("%w: lead_minutes must be 0..%d, got %q", ErrInvalid, MaxLeadMinutes, value)
		}
		return strconv.Itoa(n), nil
	default:
		return "", fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
}

// --- helpers -----------------------------------------------------------------

func encode(st model.Settings) map[model.SettingKey]string {
	return map[model.SettingKey]string{
		model.SettingRegion:        st.Region,
		model.SettingCountdown:     strconv.FormatBool(st.Countdown),
		model.SettingNotifications: strconv.FormatBool(st.Notifications),
		model.SettingLeadMinutes:   strconv.Itoa(st.LeadMinutes),
	}
}

// apply sets one field from an already normalised value.
func apply(st *model.Settings, key model.SettingKey, norm string) {
	switch key {
	case model.SettingRegion:
		st.Region = norm
	case model.SettingCountdown:
		st.Countdown = norm == "true"
	case model.SettingNotifications:
		st.Notifications = norm == "true"
	case model.SettingLeadMinutes:
		st.LeadMinutes, _ = strconv.Atoi(norm)
	}
}
