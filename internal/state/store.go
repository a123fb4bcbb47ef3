// Package state manages the SQLite database that persists the last fetched
// month of prayer times per region and the user settings.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/njoerd114/prayerrelay/internal/cache"
	"github.com/njoerd114/prayerrelay/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS prayer_days (
    region  TEXT NOT NULL,
    date    TEXT NOT NULL,
    fajr    TEXT NOT NULL,
    sunrise TEXT NOT NULL,
    dhuhr   TEXT NOT NULL,
    asr     TEXT NOT NULL,
    maghrib TEXT NOT NULL,
    isha    TEXT NOT NULL,
    PRIMARY KEY (region, date)
);

CREATE TABLE IF NOT EXISTS cache_meta (
    region     TEXT PRIMARY KEY,
    year_month TEXT NOT NULL,
    fetched_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Store is the SQLite-backed state repository.
type Store struct {
	db *sqlx.DB
}

// dayRow is one row of prayer_days.
type dayRow struct {
	Region  string `db:"region" json:"region"`
	Date    string `db:"date" json:"date"`
	Fajr    string `db:"fajr" json:"fajr"`
	Sunrise string `db:"sunrise" json:"sunrise"`
	Dhuhr   string `db:"dhuhr" json:"dhuhr"`
	Asr     string `db:"asr" json:"asr"`
	Maghrib string `db:"maghrib" json:"maghrib"`
	Isha    string `db:"isha" json:"isha"`
}

type metaRow struct {
	Region    string `db:"region"`
	YearMonth string `db:"year_month"`
	FetchedAt string `db:"fetched_at"`
}

// DefaultDBPath returns the default path for the state database:
// ~/.local/share/prayerrelay/state.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "prayerrelay", "state.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored month for snap.Region in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap cache.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM prayer_days WHERE region = ?`, snap.Region); err != nil {
		return fmt.Errorf("clearing days for %q: %w", snap.Region, err)
	}

	const insertDay = `
		INSERT INTO prayer_days (region, date, fajr, sunrise, dhuhr, asr, maghrib, isha)
		VALUES (:region, :date, :fajr, :sunrise, :dhuhr, :asr, :maghrib, :isha)`
	for _, d := range snap.Days {
		if _, err := tx.NamedExecContext(ctx, insertDay, toDayRow(d)); err != nil {
			return fmt.Errorf("inserting day %s for %q: %w", d.Date, snap.Region, err)
		}
	}

	const upsertMeta = `
		INSERT INTO cache_meta (region, year_month, fetched_at)
		VALUES (:region, :year_month, :fetched_at)
		ON CONFLICT(region) DO UPDATE SET
		    year_month = excluded.year_month,
		    fetched_at = excluded.fetched_at`
	meta := metaRow{Region: snap.Region, YearMonth: snap.YearMonth.String(), FetchedAt: formatTime(snap.FetchedAt)}
	if _, err := tx.NamedExecContext(ctx, upsertMeta, meta); err != nil {
		return fmt.Errorf("saving cache metadata for %q: %w", snap.Region, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot for %q: %w", snap.Region, err)
	}
	return nil
}

// LoadSnapshot returns the stored month for region, or (nil, nil) if nothing
// has been saved for it.
func (s *Store) LoadSnapshot(ctx context.Context, region string) (*cache.Snapshot, error) {
	var meta metaRow
	err := s.db.GetContext(ctx, &meta,
		`SELECT region, year_month, fetched_at FROM cache_meta WHERE region = ?`, region)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("loading cache metadata for %q: %w", region, err)
	}

	var rows []dayRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT region, date, fajr, sunrise, dhuhr, asr, maghrib, isha
		FROM prayer_days WHERE region = ? ORDER BY date`, region)
	if err != nil {
		return nil, fmt.Errorf("loading days for %q: %w", region, err)
	}

	ym, err := model.ParseYearMonth(meta.YearMonth)
	if err != nil {
		return nil, fmt.Errorf("cache metadata for %q: %w", region, err)
	}
	fetchedAt, err := parseTime(meta.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("cache metadata for %q: %w", region, err)
	}

	snap := &cache.Snapshot{Region: region, YearMonth: ym, FetchedAt: fetchedAt}
	for _, r := range rows {
		d, err := fromDayRow(r)
		if err != nil {
			return nil, fmt.Errorf("stored day for %q: %w", region, err)
		}
		snap.Days = append(snap.Days, d)
	}
	return snap, nil
}

// GetSetting returns the stored value for key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("writing setting %q: %w", key, err)
	}
	return nil
}

// AllSettings returns every stored setting.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// --- helpers -----------------------------------------------------------------

func toDayRow(d model.DailyPrayerTime) dayRow {
	return dayRow{
		Region:  d.Region,
		Date:    d.Date.String(),
		Fajr:    d.Fajr.String(),
		Sunrise: d.Sunrise.String(),
		Dhuhr:   d.Dhuhr.String(),
		Asr:     d.Asr.String(),
		Maghrib: d.Maghrib.String(),
		Isha:    d.Isha.String(),
	}
}

func fromDayRow(r dayRow) (model.DailyPrayerTime, error) {
	date, err := model.ParseDate(r.Date)
	if err != nil {
		return model.DailyPrayerTime{}, err
	}
	d := model.DailyPrayerTime{Region: r.Region, Date: date}
	for _, f := range []struct {
		raw string
		dst *model.ClockTime
	}{
		{r.Fajr, &d.Fajr},
		{r.Sunrise, &d.Sunrise},
		{r.Dhuhr, &d.Dhuhr},
		{r.Asr, &d.Asr},
		{r.Maghrib, &d.Maghrib},
		{r.Isha, &d.Isha},
	} {
		c, err := model.ParseClock(f.raw)
		if err != nil {
			return model.DailyPrayerTime{}, err
		}
		*f.dst = c
	}
	return d, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
