// Package config assembles slackscan's run configuration from the
// environment, an optional .env file and an optional yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TokenEnv is the environment variable holding the bot token.
const TokenEnv = "SLACK_TOKEN"

const (
	DefaultWorkers     = 4
	DefaultCallTimeout = 30 * time.Second
	DefaultLogLevel    = "warn"
)

// ErrMissingToken is returned when SLACK_TOKEN is unset or blank.
var ErrMissingToken = errors.New(TokenEnv + " not found in environment variables")

// StartupFault is a configuration failure that must stop the process before
// any Slack call is made.
type StartupFault struct {
	Err error
}

func (f *StartupFault) Error() string { return "startup: " + f.Err.Error() }

func (f *StartupFault) Unwrap() error { return f.Err }

// Config is everything a scan needs. It is built once and passed explicitly.
type Config struct {
	Token       string
	Workers     int
	CallTimeout time.Duration
	RateLimit   float64
	LogLevel    string
	APIURL      string
	Join        bool
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading %s: %w", strings.Join(existing, ", "), err)
	}
	return nil
}

// Load builds a Config from getenv and the yaml file at path (which may not
// exist). A missing token is a *StartupFault wrapping ErrMissingToken.
func Load(getenv func(string) string, path string) (*Config, error) {
	token := strings.TrimSpace(getenv(TokenEnv))
	if token == "" {
		return nil, &StartupFault{Err: ErrMissingToken}
	}

	fc, err := LoadFile(path)
	if err != nil {
		return nil, &StartupFault{Err: err}
	}

	cfg := &Config{
		Token:       token,
		Workers:     DefaultWorkers,
		CallTimeout: DefaultCallTimeout,
		LogLevel:    DefaultLogLevel,
		Join:        true,
	}
	if err := cfg.merge(fc); err != nil {
		return nil, &StartupFault{Err: err}
	}
	return cfg, nil
}

// merge applies non-zero file values over the defaults.
func (c *Config) merge(fc *FileConfig) error {
	if fc.Workers != 0 {
		c.Workers = fc.Workers
	}
	if fc.CallTimeout != "" {
		d, err := time.ParseDuration(fc.CallTimeout)
		if err != nil {
			return fmt.Errorf("call_timeout %q: %w", fc.CallTimeout, err)
		}
		c.CallTimeout = d
	}
	if fc.RateLimit != 0 {
		c.RateLimit = fc.RateLimit
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.NoJoin {
		c.Join = false
	}
	return c.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %g", c.RateLimit)
	}
	return nil
}
