package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/log/global"

	"github.com/njoerd114/prayerrelay/internal/clock"
	"github.com/njoerd114/prayerrelay/internal/config"
	"github.com/njoerd114/prayerrelay/internal/display"
	"github.com/njoerd114/prayerrelay/internal/homeassistant"
	"github.com/njoerd114/prayerrelay/internal/lifecycle"
	"github.com/njoerd114/prayerrelay/internal/namozapi"
	"github.com/njoerd114/prayerrelay/internal/notify"
	"github.com/njoerd114/prayerrelay/internal/refresh"
	"github.com/njoerd114/prayerrelay/internal/reminders"
	"github.com/njoerd114/prayerrelay/internal/server"
	"github.com/njoerd114/prayerrelay/internal/settings"
	"github.com/njoerd114/prayerrelay/internal/state"
	"github.com/njoerd114/prayerrelay/internal/telemetry"
)

// runDaemon wires every component from the config and runs the refresh
// engine until SIGINT/SIGTERM.
func runDaemon(parent context.Context, cfgPath string, verbose bool) error {
	// --- Logger --------------------------------------------------------------

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.Handler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// --- Config --------------------------------------------------------------

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"region", cfg.Region,
		"language", cfg.Language,
		"cache_backend", cfg.CacheBackend,
		"notify_backend", cfg.Notifications.Backend,
	)

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Headers:        cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger = slog.New(telemetry.NewSlogHandler(handler, global.GetLoggerProvider()))
			slog.SetDefault(logger)
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- State DB ------------------------------------------------------------

	dbPath := cfg.StateDB
	if dbPath == "" {
		if dbPath, err = state.DefaultDBPath(); err != nil {
			return fmt.Errorf("resolving state DB path: %w", err)
		}
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("closing state DB", "error", closeErr)
		}
	}()
	logger.Info("state DB opened", "path", dbPath)

	var snapshots refresh.SnapshotStore = store
	if cfg.CacheBackend == config.CacheRedis {
		rs, rdb, err := state.OpenRedis(ctx, state.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		snapshots = rs
		logger.Info("month cache stored in redis", "addr", cfg.Redis.Addr)
	}

	// --- Settings ------------------------------------------------------------

	prefs := settings.New(store, cfg.AllowCustomRegion, logger)
	if err := prefs.Seed(ctx, cfg.Settings()); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}

	// --- Display sinks -------------------------------------------------------

	sinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// --- Notifications -------------------------------------------------------

	clk := clock.Real{}
	delivery, err := buildDelivery(ctx, cfg, clk, logger)
	if err != nil {
		return err
	}

	// --- Refresh engine ------------------------------------------------------

	engine := refresh.New(refresh.Options{
		Source:   namozapi.NewClient(cfg.APIURL, cfg.RequestTimeout, logger),
		Store:    snapshots,
		Notifier: notify.NewScheduler(delivery, cfg.Lang(), logger),
		Sink:     sinks,
		Clock:    clk,
		Settings: prefs.Current(),
		Language: cfg.Lang(),
		Logger:   logger,
	})
	prefs.Subscribe(engine.ApplySettings)

	// --- Lifecycle & control API ---------------------------------------------

	monitor := lifecycle.NewMonitor(engine, cfg.WakeDetection.Interval, logger)
	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("lifecycle monitor stopped", "error", err)
		}
	}()

	if addr := cfg.ListenAddr(); addr != "" {
		srv := server.New(engine, prefs, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				logger.Error("control API stopped", "error", err)
			}
		}()
	}

	logger.Info("daemon starting", "region", prefs.Current().Region)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("refresh engine: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildSinks assembles the label destinations. Network publishers run
// behind display.Async so a slow broker never stalls the engine.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (display.Multi, error) {
	var sinks display.Multi
	if cfg.StdoutEnabled() {
		sinks = append(sinks, display.NewWriter(os.Stdout))
	}

	if m := cfg.Display.MQTT; m != nil {
		pub, err := display.NewMQTT(display.MQTTConfig{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Topic:    m.Topic,
			QoS:      m.QoS,
			Retained: m.Retained,
		}, logger)
		if err != nil {
			return nil, err
		}
		go func() {
			<-ctx.Done()
			pub.Close()
		}()
		async := display.NewAsync("mqtt", pub, logger)
		go async.Run(ctx)
		sinks = append(sinks, async)
	}

	if ha := cfg.Display.HomeAssistant; ha != nil {
		pub, err := homeassistant.NewDisplay(ha.URL, ha.Token, ha.EntityID, logger)
		if err != nil {
			return nil, err
		}
		if err := pub.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connecting to Home Assistant at %q: %w\n\nCheck display.home_assistant in your config file", ha.URL, err)
		}
		async := display.NewAsync("home_assistant", pub, logger)
		go async.Run(ctx)
		sinks = append(sinks, async)
	}
	return sinks, nil
}

// buildDelivery selects the notification backend. The local backend always
// logs; desktop and Telegram senders are added when configured.
func buildDelivery(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (notify.Delivery, error) {
	if cfg.Notifications.Backend == config.NotifyReminders {
		logger.Info("initialising Apple Reminders client (may trigger permissions prompt)…")
		adapter, err := reminders.NewAdapter(cfg.Notifications.RemindersList, logger)
		if err != nil {
			return nil, fmt.Errorf("initialising Reminders client: %w", err)
		}
		return adapter, nil
	}

	senders := []notify.Sender{notify.LogSender{Log: logger}}
	if cfg.DesktopEnabled() {
		senders = append(senders, notify.NewDesktopSender())
	}
	if tg := cfg.Notifications.Telegram; tg != nil {
		sender, err := notify.NewTelegramSender(tg.Token, tg.ChatID)
		if err != nil {
			return nil, err
		}
		senders = append(senders, sender)
	}

	local := notify.NewLocal(clk, logger, senders...)
	go local.Run(ctx)
	return local, nil
}
