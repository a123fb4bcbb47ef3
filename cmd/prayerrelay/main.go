// PrayerRelay is a daemon that keeps the Uzbek prayer time schedule for one
// region current and relays it: a status label ("Asr 17:17" or
// "Asr -01:12") to the terminal, MQTT signage screens or Home Assistant, and
// reminders before every prayer through desktop notifications, Telegram or
// Apple Reminders.
//
// Usage:
//
//	prayerrelay setup                      # interactive first-run wizard
//	prayerrelay daemon [--config <path>]   # run the refresh engine
//	prayerrelay today [--region <name>]    # print today's times and exit
//	prayerrelay month [--month yyyy-MM]    # print a month's table and exit
//	prayerrelay refresh                    # ask the running daemon to refetch
//	prayerrelay status                     # show daemon & config state
//	prayerrelay uninstall [--purge]        # stop daemon and remove files
//	prayerrelay version                    # print version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/njoerd114/prayerrelay/internal/config"
	"github.com/njoerd114/prayerrelay/internal/namozapi"
	"github.com/njoerd114/prayerrelay/internal/setup"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// Flags shared by several subcommands.
var (
	flagConfig  string
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	defaultCfg, _ := config.DefaultPath()

	root := &cobra.Command{
		Use:           "prayerrelay",
		Short:         "Uzbek prayer times relayed to your screens and reminders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(flagConfig); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "No config file found. Run 'prayerrelay setup' to get started.")
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("prayerrelay {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", defaultCfg, "path to config.yaml")
	pf.BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		newSetupCmd(),
		newDaemonCmd(),
		newTodayCmd(),
		newMonthCmd(),
		newRefreshCmd(),
		newStatusCmd(),
		newUninstallCmd(),
		newVersionCmd(),
	)
	return root
}

// --- Subcommands -------------------------------------------------------------

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive first-run wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			src := namozapi.NewClient("", 0, logger)
			wiz := setup.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout(), flagConfig, src, logger)
			return wiz.Run(ctx)
		},
	}
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the refresh engine until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), flagConfig, flagVerbose)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "prayerrelay", version)
		},
	}
}

func newUninstallCmd() *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Stop the daemon and remove installed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUninstall(cmd, purge)
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also remove config, state DB, and logs")
	return cmd
}

// runUninstall stops the daemon and removes installed files.
func runUninstall(cmd *cobra.Command, purge bool) error {
	out := cmd.OutOrStdout()
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	fmt.Fprintln(out, "Uninstalling PrayerRelay...")

	// 1. Unload daemon.
	if setup.IsDaemonLoaded() {
		fmt.Fprintln(out, "  Unloading daemon...")
		if err := setup.UnloadDaemon(homeDir); err != nil {
			fmt.Fprintf(out, "  ⚠ %v\n", err)
		} else {
			fmt.Fprintln(out, "  ✓ Daemon unloaded")
		}
	}

	// 2. Remove the launchd plist or systemd unit.
	if err := setup.RemoveServiceFile(homeDir); err != nil {
		fmt.Fprintf(out, "  ⚠ %v\n", err)
	} else {
		fmt.Fprintf(out, "  ✓ %s service file removed\n", setup.ServiceManager())
	}

	// 3. Remove binary.
	fmt.Fprintln(out, "  Removing binary...")
	if err := setup.RemoveBinary(); err != nil {
		fmt.Fprintf(out, "  ⚠ %v\n", err)
	} else {
		fmt.Fprintln(out, "  ✓ Binary removed")
	}

	// 4. Optional purge.
	if purge {
		fmt.Fprintln(out, "  Purging config, state DB, and logs...")
		if err := setup.PurgeUserData(homeDir); err != nil {
			fmt.Fprintf(out, "  ⚠ %v\n", err)
		} else {
			fmt.Fprintln(out, "  ✓ User data purged")
		}
	} else {
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "  Config and state DB preserved.")
		fmt.Fprintln(out, "  Run with --purge to also remove them:")
		fmt.Fprintln(out, "    prayerrelay uninstall --purge")
	}

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "✓ PrayerRelay uninstalled.")
	return nil
}

// loadConfig loads flagConfig, falling back to defaults when it is missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", flagConfig, err)
	}
	return cfg, nil
}

// quietLogger is used by the one-shot commands.
func quietLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// interruptible wraps ctx so Ctrl-C aborts one-shot commands.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
}
