/*
Package config loads runtime settings from the environment.

Every variable carries the TINDAHAN_ prefix, e.g. TINDAHAN_DB_PATH or
TINDAHAN_HTTP_ADDR. Command-line flags override what is loaded here.
*/
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/sarisari/tindahan/ledger"
	"github.com/sirupsen/logrus"
)

// Prefix is prepended to every environment variable name.
const Prefix = "TINDAHAN"

// Config holds runtime configuration for the application.
type Config struct {
	DBPath string `envconfig:"DB_PATH" default:"./tindahan.db"`

	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// WriteRateLimit is the number of write requests per minute per client.
	WriteRateLimit int      `envconfig:"WRITE_RATE_LIMIT" default:"120"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Timezone string `envconfig:"TIMEZONE" default:"Asia/Manila"`

	FrequentBorrowerCount      int `envconfig:"FREQUENT_BORROWER_COUNT" default:"5"`
	FrequentBorrowerWindowDays int `envconfig:"FREQUENT_BORROWER_WINDOW_DAYS" default:"30"`

	// SweepSchedule is a standard five-field cron spec for the overdue sweep.
	// Empty disables the sweep.
	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:"0 7 * * *"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot check by itself.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%s_DB_PATH must not be empty", Prefix)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s_LOG_LEVEL: %w", Prefix, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("%s_LOG_FORMAT must be json or text, got %q", Prefix, c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.FrequentBorrowerCount < 0 || c.FrequentBorrowerWindowDays <= 0 {
		return fmt.Errorf("frequent borrower rule must have count >= 0 and window > 0")
	}
	if c.WriteRateLimit <= 0 {
		return fmt.Errorf("%s_WRITE_RATE_LIMIT must be positive", Prefix)
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return fmt.Errorf("%s_SWEEP_SCHEDULE: %w", Prefix, err)
		}
	}
	return nil
}

// Location resolves the store's time zone. Falls back to a fixed UTC+8
// zone when the system has no tz database and Asia/Manila was asked for.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		if c.Timezone == "Asia/Manila" {
			return ledger.DefaultLocation, nil
		}
		return nil, fmt.Errorf("%s_TIMEZONE: %w", Prefix, err)
	}
	return loc, nil
}

// TagRules returns the customer tag thresholds.
func (c *Config) TagRules() ledger.TagRules {
	return ledger.TagRules{
		FrequentBorrowerCount:      c.FrequentBorrowerCount,
		FrequentBorrowerWindowDays: c.FrequentBorrowerWindowDays,
	}
}

// NewLogger builds the application logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	return log
}
