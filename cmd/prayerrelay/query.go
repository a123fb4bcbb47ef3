package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/njoerd114/prayerrelay/internal/config"
	"github.com/njoerd114/prayerrelay/internal/model"
	"github.com/njoerd114/prayerrelay/internal/namozapi"
	"github.com/njoerd114/prayerrelay/internal/prayer"
	"github.com/njoerd114/prayerrelay/internal/refresh"
	"github.com/njoerd114/prayerrelay/internal/setup"
	"github.com/njoerd114/prayerrelay/internal/state"
)

// fetchTries bounds the one-shot commands' attempts against the service.
const fetchTries = 4

// newBackOff is replaced in tests.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// fetchMonth fetches with exponential backoff. Malformed payloads are not
// retried.
func fetchMonth(ctx context.Context, src refresh.Source, region string, ym model.YearMonth) ([]model.DailyPrayerTime, error) {
	return backoff.Retry(ctx, func() ([]model.DailyPrayerTime, error) {
		days, err := src.FetchMonth(ctx, region, ym)
		if errors.Is(err, namozapi.ErrDecode) {
			return nil, backoff.Permanent(err)
		}
		return days, err
	}, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(fetchTries))
}

// --- today -------------------------------------------------------------------

func newTodayCmd() *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Print today's prayer times and the next prayer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if region == "" {
				region = cfg.Region
			}
			ctx, stop := interruptible(cmd.Context())
			defer stop()

			src := namozapi.NewClient(cfg.APIURL, cfg.RequestTimeout, quietLogger())
			return runToday(ctx, cmd.OutOrStdout(), src, region, cfg.Lang(), time.Now())
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region (defaults to the configured one)")
	return cmd
}

func runToday(ctx context.Context, w io.Writer, src refresh.Source, region string, lang model.Language, now time.Time) error {
	today := model.DateOf(now)
	days, err := fetchMonth(ctx, src, region, today.YearMonth())
	if err != nil {
		return fmt.Errorf("fetching prayer times for %s: %w", region, err)
	}
	rec, ok := findDay(days, today)
	if !ok {
		return fmt.Errorf("no prayer times for %s on %s", region, today)
	}

	var tomorrow *model.DailyPrayerTime
	if t, ok := findDay(days, today.AddDays(1)); ok {
		tomorrow = &t
	} else if next := today.AddDays(1); next.YearMonth() != today.YearMonth() {
		// Tomorrow is in the next month; a failure here only loses the
		// exact Fajr time after Isha.
		if more, err := src.FetchMonth(ctx, region, next.YearMonth()); err == nil {
			if t, ok := findDay(more, next); ok {
				tomorrow = &t
			}
		}
	}

	fmt.Fprintf(w, "%s — %s\n\n", region, today)
	printDay(w, rec, lang)

	target := prayer.Next(rec, tomorrow, now)
	remaining := prayer.FormatRemaining(target.At.Sub(now))
	fmt.Fprintf(w, "\nNext: %s (-%s)\n", target.Label(lang), remaining)
	return nil
}

func printDay(w io.Writer, d model.DailyPrayerTime, lang model.Language) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range model.Prayers {
		fmt.Fprintf(tw, "  %s\t%s\n", lang.Name(p), d.Time(p).HHMM())
		if p == model.Fajr {
			fmt.Fprintf(tw, "  %s\t%s\n", sunriseName(lang), d.Sunrise.HHMM())
		}
	}
	_ = tw.Flush()
}

func sunriseName(lang model.Language) string {
	if lang == model.LanguageEnglish {
		return "Sunrise"
	}
	return "Quyosh"
}

func findDay(days []model.DailyPrayerTime, d model.Date) (model.DailyPrayerTime, bool) {
	for _, rec := range days {
		if rec.Date == d {
			return rec, true
		}
	}
	return model.DailyPrayerTime{}, false
}

// --- month -------------------------------------------------------------------

func newMonthCmd() *cobra.Command {
	var region, month string
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print the monthly prayer time table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if region == "" {
				region = cfg.Region
			}
			now := time.Now()
			ym := model.YearMonthOf(now)
			if month != "" {
				if ym, err = model.ParseYearMonth(month); err != nil {
					return err
				}
			}
			ctx, stop := interruptible(cmd.Context())
			defer stop()

			src := namozapi.NewClient(cfg.APIURL, cfg.RequestTimeout, quietLogger())
			days, err := fetchMonth(ctx, src, region, ym)
			if err != nil {
				return fmt.Errorf("fetching %s for %s: %w", ym, region, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s — %s\n\n", region, ym)
			printMonth(cmd.OutOrStdout(), days, cfg.Lang(), model.DateOf(now))
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region (defaults to the configured one)")
	cmd.Flags().StringVar(&month, "month", "", "month as yyyy-MM (defaults to the current one)")
	return cmd
}

// printMonth renders one row per day; today's row is marked with "*".
func printMonth(w io.Writer, days []model.DailyPrayerTime, lang model.Language, today model.Date) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{" ", "Date", lang.Name(model.Fajr), sunriseName(lang)}
	for _, p := range model.Prayers[1:] {
		header = append(header, lang.Name(p))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, d := range days {
		mark := " "
		if d.Date == today {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", mark, d.Date,
			d.Fajr.HHMM(), d.Sunrise.HHMM(), d.Dhuhr.HHMM(), d.Asr.HHMM(), d.Maghrib.HHMM(), d.Isha.HHMM())
	}
	_ = tw.Flush()
}

// --- daemon control ----------------------------------------------------------

// daemonClient talks to a running daemon's control API.
type daemonClient struct {
	base string
	hc   *http.Client
}

func newDaemonClient(cfg *config.Config) (*daemonClient, error) {
	addr := cfg.ListenAddr()
	if addr == "" {
		return nil, errors.New("the control API is disabled (http.listen is empty)")
	}
	return &daemonClient{base: "http://" + addr, hc: &http.Client{Timeout: 5 * time.Second}}, nil
}

func (c *daemonClient) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/refresh", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("contacting daemon at %s: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *daemonClient) status(ctx context.Context) (refresh.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/status", nil)
	if err != nil {
		return refresh.Status{}, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return refresh.Status{}, fmt.Errorf("contacting daemon at %s: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return refresh.Status{}, fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
	}
	var st refresh.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return refresh.Status{}, fmt.Errorf("decoding daemon status: %w", err)
	}
	return st, nil
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Ask the running daemon to refetch the current month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newDaemonClient(cfg)
			if err != nil {
				return err
			}
			if err := client.refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Refresh requested")
			return nil
		},
	}
}

// --- status ------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon & config state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// runStatus prints the current daemon and configuration state.
func runStatus(ctx context.Context, out io.Writer) error {
	homeDir, _ := os.UserHomeDir()

	fmt.Fprintln(out, "PrayerRelay Status")
	fmt.Fprintln(out, "──────────────────")

	// Daemon state.
	if setup.IsDaemonLoaded() {
		fmt.Fprintf(out, "  Daemon:    running (%s)\n", setup.ServiceManager())
	} else {
		fmt.Fprintf(out, "  Daemon:    not running under %s\n", setup.ServiceManager())
	}

	// Config state.
	var cfg *config.Config
	if _, err := os.Stat(flagConfig); err == nil {
		if loaded, loadErr := config.Load(flagConfig); loadErr == nil {
			cfg = loaded
			fmt.Fprintf(out, "  Config:    %s ✓\n", flagConfig)
		} else {
			fmt.Fprintf(out, "  Config:    %s (invalid: %v)\n", flagConfig, loadErr)
		}
	} else {
		fmt.Fprintf(out, "  Config:    not found (%s), using defaults\n", flagConfig)
		cfg = config.Default()
	}

	// State DB.
	dbPath, _ := state.DefaultDBPath()
	if cfg != nil && cfg.StateDB != "" {
		dbPath = cfg.StateDB
	}
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Fprintf(out, "  State DB:  %s (%s)\n", dbPath, humanize.Bytes(uint64(info.Size())))
	} else {
		fmt.Fprintf(out, "  State DB:  not found\n")
	}

	// Service file & logs.
	if svcPath := setup.ServiceFilePath(homeDir); fileExists(svcPath) {
		fmt.Fprintf(out, "  Service:   %s\n", svcPath)
	} else {
		fmt.Fprintf(out, "  Service:   not installed\n")
	}
	fmt.Fprintf(out, "  Logs:      %s\n", setup.LogDir(homeDir))

	if cfg == nil {
		return nil
	}
	client, err := newDaemonClient(cfg)
	if err != nil {
		fmt.Fprintf(out, "  Live:      %v\n", err)
		return nil
	}
	st, err := client.status(ctx)
	if err != nil {
		fmt.Fprintf(out, "  Live:      daemon not reachable (%v)\n", err)
		return nil
	}
	printLiveStatus(out, st, time.Now())
	return nil
}

func printLiveStatus(out io.Writer, st refresh.Status, now time.Time) {
	fmt.Fprintf(out, "\n  Region:    %s\n", st.Region)
	fmt.Fprintf(out, "  Label:     %s\n", st.Label)
	fmt.Fprintf(out, "  State:     %s\n", st.State)
	if st.FetchedAt != nil {
		fmt.Fprintf(out, "  Month:     %s, %d days, fetched %s\n", st.Month, st.CachedDays, humanize.RelTime(*st.FetchedAt, now, "ago", "from now"))
	} else {
		fmt.Fprintf(out, "  Month:     not cached\n")
	}
	if st.Failures > 0 {
		fmt.Fprintf(out, "  Failures:  %d (%s)\n", st.Failures, st.LastError)
	}
	if st.NextRetry != nil {
		fmt.Fprintf(out, "  Retry:     %s\n", humanize.RelTime(*st.NextRetry, now, "ago", "from now"))
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
