// Package config loads concierge settings from concierge.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CONCIERGE_GEMINI_API_KEY.
const EnvPrefix = "CONCIERGE"

// Config holds all configuration values.
type Config struct {
	Business  string         `mapstructure:"business"`
	Timezone  string         `mapstructure:"timezone"`
	Catalog   string         `mapstructure:"catalog"`
	Operators []string       `mapstructure:"operators"`
	Dashboard string         `mapstructure:"dashboard_url"`
	Gemini    GeminiConfig   `mapstructure:"gemini"`
	Store     StoreConfig    `mapstructure:"store"`
	Redis     RedisConfig    `mapstructure:"redis"`
	HTTP      HTTPConfig     `mapstructure:"http"`
	Booking   BookingConfig  `mapstructure:"booking"`
	Session   SessionConfig  `mapstructure:"session"`
	Reminder  ReminderConfig `mapstructure:"reminder"`
	Hours     HoursConfig    `mapstructure:"hours"`
	Calendar  CalendarConfig `mapstructure:"calendar"`
	Log       LogConfig      `mapstructure:"log"`
	Delivery  DeliveryConfig `mapstructure:"delivery"`
}

type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ValidationTimeout time.Duration `mapstructure:"validation_timeout"`
}

// StoreConfig selects the persistence backend. An empty DSN keeps everything in memory.
// HistoryKeys are base64 AES-256 keys; when set, conversation history is
// encrypted at rest with the first key and read with any of them.
type StoreConfig struct {
	DSN         string   `mapstructure:"dsn"`
	HistoryKeys []string `mapstructure:"history_keys"`
}

// RedisConfig enables shared sessions and distributed locks when Addr is set.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	Prefix     string        `mapstructure:"prefix"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type HTTPConfig struct {
	Addr      string  `mapstructure:"addr"`
	BridgeURL string  `mapstructure:"bridge_url"`
	Token     string  `mapstructure:"token"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type BookingConfig struct {
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	MaxAlternatives int           `mapstructure:"max_alternatives"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type ReminderConfig struct {
	Lead     time.Duration `mapstructure:"lead"`
	Schedule string        `mapstructure:"schedule"`
}

type HoursConfig struct {
	Open            int           `mapstructure:"open"`
	Close           int           `mapstructure:"close"`
	Granularity     time.Duration `mapstructure:"granularity"`
	DefaultDuration time.Duration `mapstructure:"default_duration"`
}

// CalendarConfig enables Google Calendar sync when Credentials is set.
type CalendarConfig struct {
	Credentials string `mapstructure:"credentials"`
	ID          string `mapstructure:"id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DeliveryConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the values a running assistant depends on.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Hours.Open < 0 || c.Hours.Close > 24 || c.Hours.Open >= c.Hours.Close {
		errs = append(errs, fmt.Errorf("invalid business hours %d-%d", c.Hours.Open, c.Hours.Close))
	}
	if c.Booking.RateLimit <= 0 {
		errs = append(errs, errors.New("booking.rate_limit must be positive"))
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("session.idle_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("concierge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("business", "")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("catalog", "")
	v.SetDefault("operators", []string{})
	v.SetDefault("dashboard_url", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.timeout", 15*time.Second)
	v.SetDefault("gemini.validation_timeout", 5*time.Second)

	v.SetDefault("store.dsn", "")
	v.SetDefault("store.history_keys", []string{})

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "concierge:")
	v.SetDefault("redis.session_ttl", 0)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.bridge_url", "")
	v.SetDefault("http.token", "")
	v.SetDefault("http.rate_limit", 1.0)
	v.SetDefault("http.burst", 5)

	v.SetDefault("booking.rate_limit", 5)
	v.SetDefault("booking.rate_window", time.Hour)
	v.SetDefault("booking.max_alternatives", 5)

	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.sweep_schedule", "*/15 * * * *")

	v.SetDefault("reminder.lead", time.Hour)
	v.SetDefault("reminder.schedule", "*/30 * * * *")

	v.SetDefault("hours.open", 10)
	v.SetDefault("hours.close", 21)
	v.SetDefault("hours.granularity", time.Hour)
	v.SetDefault("hours.default_duration", time.Hour)

	v.SetDefault("calendar.credentials", "")
	v.SetDefault("calendar.id", "primary")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("delivery.timeout", 10*time.Second)
	return v
}

// Load reads the config file, if any, and decodes v into a Config.
// An explicit path must exist; the default search paths may be empty.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
