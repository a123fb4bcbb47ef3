// Package config loads and validates the PrayerRelay YAML configuration.
//
// Secrets may also come from the environment or from a .env file next to the
// config file; see [Load] for the variables honoured.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/njoerd114/prayerrelay/internal/model"
	"github.com/njoerd114/prayerrelay/internal/namozapi"
)

// Cache backends.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Notification delivery backends.
const (
	NotifyLocal     = "local"
	NotifyReminders = "reminders"
)

// Environment variables that override config values.
const (
	EnvRegion        = "PRAYERRELAY_REGION"
	EnvAPIURL        = "PRAYERRELAY_API_URL"
	EnvTelegramToken = "PRAYERRELAY_TELEGRAM_TOKEN"
	EnvHAToken       = "PRAYERRELAY_HA_TOKEN"
	EnvRedisPassword = "PRAYERRELAY_REDIS_PASSWORD"
)

// DefaultListen is the control API's default bind address.
const DefaultListen = "127.0.0.1:7312"

// DefaultRemindersList is the Apple Reminders list used for prayer reminders.
const DefaultRemindersList = "Namoz vaqtlari"

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// Region is the initial prayer time region. It only seeds the settings
	// store; once the daemon has run, the stored setting wins.
	Region string `yaml:"region"`

	// AllowCustomRegion accepts region names outside the thirteen known ones.
	AllowCustomRegion bool `yaml:"allow_custom_region"`

	// Language selects display and reminder texts: "uz" (default) or "en".
	Language string `yaml:"language"`

	// APIURL is the base URL of the prayer time service.
	APIURL string `yaml:"api_url"`

	// RequestTimeout bounds one monthly fetch. 1s..2m, default 15s.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// StateDB overrides the SQLite state database path.
	StateDB string `yaml:"state_db,omitempty"`

	// CacheBackend stores the fetched month in "sqlite" (default) or "redis".
	CacheBackend string `yaml:"cache_backend"`

	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Countdown seeds the countdown display setting.
	Countdown bool `yaml:"countdown"`

	Notifications NotificationsConfig `yaml:"notifications"`
	Display       DisplayConfig       `yaml:"display"`
	HTTP          HTTPConfig          `yaml:"http"`
	WakeDetection WakeConfig          `yaml:"wake_detection"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// RedisConfig points the cache backend at a Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// NotificationsConfig controls prayer reminders.
type NotificationsConfig struct {
	// Enabled seeds the notifications setting. Defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// LeadMinutes seeds the reminder lead time, 0..60.
	LeadMinutes int `yaml:"lead_minutes"`

	// Backend is "local" (in-process timers, default) or "reminders"
	// (Apple Reminders with due dates).
	Backend string `yaml:"backend"`

	// RemindersList is the Reminders list used by the reminders backend.
	RemindersList string `yaml:"reminders_list,omitempty"`

	// Desktop enables OS desktop notifications for the local backend.
	// Defaults to true.
	Desktop *bool `yaml:"desktop,omitempty"`

	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
}

// TelegramConfig sends local-backend reminders to a Telegram chat.
type TelegramConfig struct {
	Token  string `yaml:"token,omitempty"`
	ChatID int64  `yaml:"chat_id"`
}

// DisplayConfig selects where the status label is shown.
type DisplayConfig struct {
	// Stdout prints every label change. Defaults to true.
	Stdout *bool `yaml:"stdout,omitempty"`

	MQTT          *MQTTConfig          `yaml:"mqtt,omitempty"`
	HomeAssistant *HomeAssistantConfig `yaml:"home_assistant,omitempty"`
}

// MQTTConfig publishes labels to an MQTT topic.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id,omitempty"`
	QoS      byte   `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

// HomeAssistantConfig mirrors labels into an input_text helper.
type HomeAssistantConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token,omitempty"`
	EntityID string `yaml:"entity_id"`
}

// HTTPConfig configures the local control API.
type HTTPConfig struct {
	// Listen is the bind address. Nil selects DefaultListen; an explicit
	// empty string disables the API.
	Listen *string `yaml:"listen,omitempty"`
}

// WakeConfig configures suspend/resume detection.
type WakeConfig struct {
	// Interval is the wall-clock sampling period. Minimum 5s, default 30s.
	Interval time.Duration `yaml:"interval"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "prayerrelay".
	ServiceName string `yaml:"service_name,omitempty"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/prayerrelay/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "prayerrelay", "config.yaml"), nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.validate()
	return cfg
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result.
//
// Overrides are read from the process environment first and then from a
// .env file in the config file's directory: PRAYERRELAY_REGION,
// PRAYERRELAY_API_URL, PRAYERRELAY_TELEGRAM_TOKEN, PRAYERRELAY_HA_TOKEN and
// PRAYERRELAY_REDIS_PASSWORD.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	env, err := loadEnv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(env)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields [Default] with
// environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	cfg = &Config{}
	env, envErr := loadEnv(filepath.Join(filepath.Dir(path), ".env"))
	if envErr != nil {
		return nil, envErr
	}
	cfg.applyEnv(env)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Write saves the configuration to path, creating parent directories. The
// file is readable by the owner only since it may hold tokens.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// Settings returns the values that seed the settings store on first run.
func (c *Config) Settings() model.Settings {
	return model.Settings{
		Region:        c.Region,
		Countdown:     c.Countdown,
		Notifications: c.Notifications.Enabled == nil || *c.Notifications.Enabled,
		LeadMinutes:   c.Notifications.LeadMinutes,
	}
}

// Lang returns the configured display language.
func (c *Config) Lang() model.Language {
	return model.Language(c.Language)
}

// ListenAddr returns the control API address, or "" when disabled.
func (c *Config) ListenAddr() string {
	if c.HTTP.Listen == nil {
		return DefaultListen
	}
	return *c.HTTP.Listen
}

// DesktopEnabled reports whether desktop notifications are on.
func (c *Config) DesktopEnabled() bool {
	return c.Notifications.Desktop == nil || *c.Notifications.Desktop
}

// StdoutEnabled reports whether labels are printed to stdout.
func (c *Config) StdoutEnabled() bool {
	return c.Display.Stdout == nil || *c.Display.Stdout
}

// --- environment -------------------------------------------------------------

type envLookup func(key string) (string, bool)

// loadEnv returns a lookup that prefers the process environment and falls
// back to the .env file at path, if one exists.
func loadEnv(path string) (envLookup, error) {
	file, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading env file %q: %w", path, err)
		}
		file = map[string]string{}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := file[key]
		return v, ok && v != ""
	}, nil
}

func (c *Config) applyEnv(lookup envLookup) {
	if v, ok := lookup(EnvRegion); ok {
		c.Region = v
	}
	if v, ok := lookup(EnvAPIURL); ok {
		c.APIURL = v
	}
	if v, ok := lookup(EnvTelegramToken); ok && c.Notifications.Telegram != nil {
		c.Notifications.Telegram.Token = v
	}
	if v, ok := lookup(EnvHAToken); ok && c.Display.HomeAssistant != nil {
		c.Display.HomeAssistant.Token = v
	}
	if v, ok := lookup(EnvRedisPassword); ok && c.Redis != nil {
		c.Redis.Password = v
	}
}

// --- validation --------------------------------------------------------------

// validate fills defaults and checks that all fields are well-formed.
func (c *Config) validate() error {
	if c.Region == "" {
		c.Region = model.DefaultRegion
	}
	if !c.AllowCustomRegion && !model.KnownRegion(c.Region) {
		return fmt.Errorf("region %q is not one of %s (set allow_custom_region to override)",
			c.Region, strings.Join(model.Regions, ", "))
	}

	if c.Language == "" {
		c.Language = string(model.LanguageUzbek)
	}
	if c.Language != string(model.LanguageUzbek) && c.Language != string(model.LanguageEnglish) {
		return fmt.Errorf("language %q must be uz or en", c.Language)
	}

	if c.APIURL == "" {
		c.APIURL = namozapi.DefaultBaseURL
	}
	if err := checkHTTPURL("api_url", c.APIURL); err != nil {
		return err
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = namozapi.DefaultTimeout
	}
	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request_timeout %v is too short (minimum 1s)", c.RequestTimeout)
	}
	if c.RequestTimeout > 2*time.Minute {
		return fmt.Errorf("request_timeout %v is too long (maximum 2m)", c.RequestTimeout)
	}

	if c.CacheBackend == "" {
		c.CacheBackend = CacheSQLite
	}
	switch c.CacheBackend {
	case CacheSQLite:
	case CacheRedis:
		if c.Redis == nil || c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when cache_backend is redis")
		}
	default:
		return fmt.Errorf("cache_backend %q must be sqlite or redis", c.CacheBackend)
	}

	if err := c.Notifications.validate(); err != nil {
		return err
	}
	if err := c.Display.validate(); err != nil {
		return err
	}

	if c.WakeDetection.Interval == 0 {
		c.WakeDetection.Interval = 30 * time.Second
	}
	if c.WakeDetection.Interval < 5*time.Second {
		return fmt.Errorf("wake_detection.interval %v is too short (minimum 5s)", c.WakeDetection.Interval)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

func (n *NotificationsConfig) validate() error {
	if n.LeadMinutes < 0 || n.LeadMinutes > 60 {
		return fmt.Errorf("notifications.lead_minutes %d must be between 0 and 60", n.LeadMinutes)
	}
	if n.Backend == "" {
		n.Backend = NotifyLocal
	}
	switch n.Backend {
	case NotifyLocal:
	case NotifyReminders:
		if n.RemindersList == "" {
			n.RemindersList = DefaultRemindersList
		}
	default:
		return fmt.Errorf("notifications.backend %q must be local or reminders", n.Backend)
	}
	if n.Telegram != nil {
		if n.Telegram.Token == "" {
			return fmt.Errorf("notifications.telegram.token is required (or set %s)", EnvTelegramToken)
		}
		if n.Telegram.ChatID == 0 {
			return fmt.Errorf("notifications.telegram.chat_id is required")
		}
	}
	return nil
}

func (d *DisplayConfig) validate() error {
	if m := d.MQTT; m != nil {
		if m.Broker == "" {
			return fmt.Errorf("display.mqtt.broker is required")
		}
		if m.Topic == "" {
			return fmt.Errorf("display.mqtt.topic is required")
		}
		if m.ClientID == "" {
			m.ClientID = "prayerrelay"
		}
		if m.QoS > 2 {
			return fmt.Errorf("display.mqtt.qos %d must be 0, 1 or 2", m.QoS)
		}
	}
	if ha := d.HomeAssistant; ha != nil {
		if err := checkHTTPURL("display.home_assistant.url", ha.URL); err != nil {
			return err
		}
		if ha.Token == "" {
			return fmt.Errorf("display.home_assistant.token is required (or set %s)", EnvHAToken)
		}
		if !strings.HasPrefix(ha.EntityID, "input_text.") {
			return fmt.Errorf("display.home_assistant.entity_id %q must be an input_text entity", ha.EntityID)
		}
	}
	return nil
}

func checkHTTPURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s %q must be a valid http or https URL", field, raw)
	}
	return nil
}
