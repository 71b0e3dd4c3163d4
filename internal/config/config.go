// Package config holds the settings of a check run. Values are layered:
// defaults, then an optional JSON file, then CLUB_WEBSITES_* environment
// variables. Command-line flags are applied last by the caller.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/club-websites/internal/check"
	"github.com/pfrederiksen/club-websites/internal/logger"
	"github.com/pfrederiksen/club-websites/internal/probe"
	"github.com/pfrederiksen/club-websites/internal/report"
)

const envPrefix = "CLUB_WEBSITES_"

var (
	errInvalidTimeout        = errors.New("config: timeout must be positive")
	errConcurrencyOutOfRange = errors.New("config: concurrency must be 1-64")
	errInvalidRate           = errors.New("config: rate limit must not be negative")
	errNoRegions             = errors.New("config: no regions configured")
	errInvalidLogLevel       = errors.New("config: unknown log level")
)

// DefaultRegions are the Swedish county files, in processing order.
var DefaultRegions = []string{
	"blekinge.geojson",
	"dalarna.geojson",
	"gotland.geojson",
	"gavleborg.geojson",
	"halland.geojson",
	"jamtland.geojson",
	"jonkoping.geojson",
	"kalmar.geojson",
	"kronoberg.geojson",
	"norrbotten.geojson",
	"orebro.geojson",
	"ostergotland.geojson",
	"skane.geojson",
	"sodermanland.geojson",
	"stockholm.geojson",
	"uppsala.geojson",
	"varmland.geojson",
	"vasterbotten.geojson",
	"vasternorrland.geojson",
	"vastmanland.geojson",
	"vastra-gotaland.geojson",
}

// Config is the full set of run settings.
type Config struct {
	DataDir        string   `json:"data_dir"`
	Regions        []string `json:"regions"`
	TimeoutSeconds float64  `json:"timeout_seconds"`
	UserAgent      string   `json:"user_agent"`
	Concurrency    int      `json:"concurrency"`
	RateLimit      float64  `json:"rate_limit"`
	JSONPath       string   `json:"json_path"`
	CSVPath        string   `json:"csv_path"`
	WriteCSV       bool     `json:"write_csv"`
	LogLevel       string   `json:"log_level"`
	LogFile        string   `json:"log_file,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:        ".",
		Regions:        append([]string(nil), DefaultRegions...),
		TimeoutSeconds: probe.DefaultTimeout.Seconds(),
		UserAgent:      probe.UserAgent,
		Concurrency:    check.DefaultConcurrency,
		JSONPath:       report.DefaultJSONPath,
		CSVPath:        report.DefaultCSVPath,
		WriteCSV:       true,
		LogLevel:       "WARN",
	}
}

// Load reads a JSON file over the defaults. Keys missing from the file keep
// their default value.
func Load(filename string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config JSON: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from CLUB_WEBSITES_* environment variables.
// CLUB_WEBSITES_TIMEOUT accepts a duration ("5s") or plain seconds ("5").
func (c *Config) ApplyEnv() error {
	if v := getEnv("TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("parsing %sTIMEOUT: %w", envPrefix, err)
		}
		c.TimeoutSeconds = d.Seconds()
	}
	if v := getEnv("USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := getEnv("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sCONCURRENCY: %w", envPrefix, err)
		}
		c.Concurrency = n
	}
	if v := getEnv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getEnv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the settings before a run.
func (c *Config) Validate() error {
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: got %v", errInvalidTimeout, c.TimeoutSeconds)
	}
	if c.Concurrency < 1 || c.Concurrency > check.MaxConcurrency {
		return fmt.Errorf("%w: got %d", errConcurrencyOutOfRange, c.Concurrency)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: got %v", errInvalidRate, c.RateLimit)
	}
	if len(c.Regions) == 0 {
		return errNoRegions
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// Timeout returns the probe timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// SetTimeout stores d as the probe timeout.
func (c *Config) SetTimeout(d time.Duration) {
	c.TimeoutSeconds = d.Seconds()
}

// CSVOutput returns the CSV path, or "" when CSV output is disabled.
func (c *Config) CSVOutput() string {
	if !c.WriteCSV {
		return ""
	}
	return c.CSVPath
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func parseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
