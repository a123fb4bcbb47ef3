package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/njoerd114/prayerrelay/internal/config"
	"github.com/njoerd114/prayerrelay/internal/model"
)

// Wizard guides the user through first-run configuration and installation.
type Wizard struct {
	prompt  *Prompter
	logger  *slog.Logger
	w       io.Writer
	cfgPath string
	source  MonthFetcher
	now     func() time.Time

	// darwin enables the Apple Reminders backend.
	darwin bool
	// service enables the launchd/systemd install step.
	service bool
}

// NewWizard creates a Wizard wired to the given I/O and logger. The config is
// written to cfgPath and regions are probed against src.
func NewWizard(r io.Reader, w io.Writer, cfgPath string, src MonthFetcher, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt:  NewPrompter(r, w),
		logger:  logger,
		w:       w,
		cfgPath: cfgPath,
		source:  src,
		now:     time.Now,
		darwin:  runtime.GOOS == "darwin",
		service: ServiceSupported(),
	}
}

// Run executes the interactive setup wizard. It walks the user through region
// choice, display and notification preferences, config file creation, and
// optional daemon install.
func (wiz *Wizard) Run(ctx context.Context) error {
	fmt.Fprintf(wiz.w, "\nWelcome to PrayerRelay Setup!\n")
	fmt.Fprintf(wiz.w, "This wizard will help you configure and install PrayerRelay.\n\n")

	if _, statErr := os.Stat(wiz.cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", wiz.cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return wiz.offerDaemonInstall(ctx)
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	cfg := &config.Config{}

	// Step 1: Region.
	fmt.Fprintf(wiz.w, "Step 1/4 — Region\n")
	if err := wiz.chooseRegion(ctx, cfg); err != nil {
		return err
	}

	// Step 2: Display.
	fmt.Fprintf(wiz.w, "Step 2/4 — Display\n")
	if err := wiz.chooseDisplay(ctx, cfg); err != nil {
		return err
	}

	// Step 3: Notifications.
	fmt.Fprintf(wiz.w, "Step 3/4 — Notifications\n")
	if err := wiz.chooseNotifications(cfg); err != nil {
		return err
	}

	// Step 4: Write config.
	fmt.Fprintf(wiz.w, "Step 4/4 — Save Configuration\n")
	if err := cfg.Write(wiz.cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n\n", wiz.cfgPath)

	return wiz.offerDaemonInstall(ctx)
}

// chooseRegion asks for the region and checks the service serves it. A
// failed probe is only a warning: the daemon retries on its own.
func (wiz *Wizard) chooseRegion(ctx context.Context, cfg *config.Config) error {
	idx, err := wiz.prompt.Select("Region", model.Regions, 0)
	if err != nil {
		return fmt.Errorf("selecting region: %w", err)
	}
	cfg.Region = model.Regions[idx]

	fmt.Fprintf(wiz.w, "  Fetching today's times for %s...", cfg.Region)
	day, err := ProbeRegion(ctx, wiz.source, cfg.Region, wiz.now())
	if err != nil {
		fmt.Fprintf(wiz.w, " ✗\n")
		wiz.logger.Warn("region probe failed", "region", cfg.Region, "error", err)
		fmt.Fprintf(wiz.w, "  ⚠ Could not reach the prayer time service; the daemon will keep retrying.\n\n")
		return nil
	}
	fmt.Fprintf(wiz.w, " ✓\n")
	for _, p := range model.Prayers {
		fmt.Fprintf(wiz.w, "    %-8s %s\n", model.LanguageUzbek.Name(p), day.Time(p).HHMM())
	}
	fmt.Fprintf(wiz.w, "\n")
	return nil
}

func (wiz *Wizard) chooseDisplay(ctx context.Context, cfg *config.Config) error {
	langs := []string{"O'zbekcha (Bomdod, Peshin, ...)", "English (Fajr, Dhuhr, ...)"}
	idx, err := wiz.prompt.Select("Language", langs, 0)
	if err != nil {
		return fmt.Errorf("selecting language: %w", err)
	}
	cfg.Language = string(model.LanguageUzbek)
	if idx == 1 {
		cfg.Language = string(model.LanguageEnglish)
	}

	cfg.Countdown = wiz.prompt.Confirm("Show a countdown to the next prayer instead of its time?", false)

	if wiz.prompt.Confirm("Mirror the label into a Home Assistant input_text helper?", false) {
		haURL := wiz.prompt.String("HA URL", "http://homeassistant.local:8123")
		haToken := wiz.prompt.Secret("Access token")
		entity := wiz.prompt.String("input_text entity", "input_text.next_prayer")

		fmt.Fprintf(wiz.w, "  Connecting to Home Assistant...")
		if err := PingHA(ctx, haURL, haToken); err != nil {
			fmt.Fprintf(wiz.w, " ✗\n")
			return fmt.Errorf("cannot reach Home Assistant: %w\n\n  Check the URL and token, then try again", err)
		}
		fmt.Fprintf(wiz.w, " ✓\n")
		cfg.Display.HomeAssistant = &config.HomeAssistantConfig{URL: haURL, Token: haToken, EntityID: entity}
	}
	fmt.Fprintf(wiz.w, "\n")
	return nil
}

func (wiz *Wizard) chooseNotifications(cfg *config.Config) error {
	enabled := wiz.prompt.Confirm("Enable prayer reminders?", true)
	cfg.Notifications.Enabled = &enabled
	if !enabled {
		fmt.Fprintf(wiz.w, "\n")
		return nil
	}

	cfg.Notifications.LeadMinutes = wiz.prompt.Int("Minutes before each prayer", 0, 0, 60)

	if wiz.darwin && wiz.prompt.Confirm("Deliver reminders through Apple Reminders (syncs to iPhone)?", false) {
		cfg.Notifications.Backend = config.NotifyReminders
		list, err := wiz.chooseRemindersList()
		if err != nil {
			return err
		}
		cfg.Notifications.RemindersList = list
	}

	if wiz.prompt.Confirm("Also send reminders to a Telegram chat?", false) {
		token := wiz.prompt.Secret("Bot token")
		chatID, err := strconv.ParseInt(wiz.prompt.String("Chat ID", ""), 10, 64)
		if err != nil {
			return fmt.Errorf("chat ID must be a number: %w", err)
		}
		cfg.Notifications.Telegram = &config.TelegramConfig{Token: token, ChatID: chatID}
	}
	fmt.Fprintf(wiz.w, "\n")
	return nil
}

// chooseRemindersList lets the user pick an existing list or falls back to
// the default name, which EventKit must already know.
func (wiz *Wizard) chooseRemindersList() (string, error) {
	fmt.Fprintf(wiz.w, "  Discovering Reminders lists (may trigger permissions prompt)...\n")
	lists, err := DiscoverRemindersLists(wiz.logger)
	if err != nil || len(lists) == 0 {
		if err != nil {
			wiz.logger.Warn("could not discover Reminders lists", "error", err)
		}
		fmt.Fprintf(wiz.w, "  ⚠ Could not list Reminders — type the list name.\n")
		return wiz.prompt.String("Reminders list", config.DefaultRemindersList), nil
	}

	options := make([]string, len(lists))
	for i, l := range lists {
		options[i] = fmt.Sprintf("%s (%d items)", l.Title, l.Count)
	}
	idx, err := wiz.prompt.Select("Reminders list", options, 0)
	if err != nil {
		return "", fmt.Errorf("selecting Reminders list: %w", err)
	}
	return lists[idx].Title, nil
}

// offerDaemonInstall asks the user whether to install as a background daemon.
func (wiz *Wizard) offerDaemonInstall(_ context.Context) error {
	if !wiz.service {
		fmt.Fprintf(wiz.w, "  Run the daemon with: prayerrelay daemon\n\n")
		return nil
	}
	if !wiz.prompt.Confirm("Install as background daemon (starts on login)?", true) {
		fmt.Fprintf(wiz.w, "\n  Skipping daemon install.\n")
		fmt.Fprintf(wiz.w, "  You can run manually with: prayerrelay daemon\n")
		fmt.Fprintf(wiz.w, "  Or install later with:     prayerrelay setup\n\n")
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	fmt.Fprintf(wiz.w, "\n")

	// Install binary.
	fmt.Fprintf(wiz.w, "  Installing binary to %s...\n", BinaryInstallPath())
	if err := InstallBinary(); err != nil {
		return fmt.Errorf("installing binary: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Binary installed\n")

	if err := WriteServiceFile(homeDir); err != nil {
		return fmt.Errorf("writing %s service file: %w", ServiceManager(), err)
	}
	fmt.Fprintf(wiz.w, "  ✓ %s written\n", ServiceFilePath(homeDir))

	if err := CreateLogDir(homeDir); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Log directory created\n")

	if err := LoadDaemon(homeDir); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Daemon started by %s\n", ServiceManager())

	fmt.Fprintf(wiz.w, "\nSetup complete! PrayerRelay is running in the background.\n")
	fmt.Fprintf(wiz.w, "  Config:  %s\n", wiz.cfgPath)
	fmt.Fprintf(wiz.w, "  Logs:    %s\n", LogDir(homeDir))
	fmt.Fprintf(wiz.w, "  Status:  prayerrelay status\n")
	fmt.Fprintf(wiz.w, "  Remove:  prayerrelay uninstall\n\n")

	return nil
}
