// Package config loads the gateway configuration from the environment.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // TIME_ZONE must resolve on hosts without a zoneinfo database

	"github.com/caarlos0/env/v11"

	"github.com/teemow/caltodo/internal/instrumentation"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the complete gateway configuration.
type Config struct {
	// Google OAuth client
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL        string `env:"REDIRECT_URI" envDefault:"http://localhost:8080/auth/google/callback"`

	// HTTP listener
	Port        int    `env:"PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL"`
	StaticDir   string `env:"STATIC_DIR"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	// Sessions
	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionStore       string        `env:"SESSION_STORE" envDefault:"memory"`
	SessionMaxAge      time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	RedisURL           string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisKeyPrefix     string        `env:"REDIS_KEY_PREFIX" envDefault:"caltodo:session:"`
	TokenEncryptionKey string        `env:"TOKEN_ENCRYPTION_KEY"`

	// Calendar
	CalendarID      string        `env:"CALENDAR_ID" envDefault:"primary"`
	TimeZone        string        `env:"TIME_ZONE" envDefault:"Asia/Seoul"`
	CalendarTimeout time.Duration `env:"CALENDAR_TIMEOUT" envDefault:"15s"`

	// Inbound rate limiting; zero RPS disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// TrustProxy keys rate limiting on X-Forwarded-For. Enable only behind
	// a proxy that overwrites the header.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Instrumentation instrumentation.Config
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{Instrumentation: instrumentation.DefaultConfig()}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address for the gateway.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ResolvedBaseURL returns BaseURL, or a localhost URL on the configured
// port when none is set.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// SecureCookies reports whether session cookies must carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.ResolvedBaseURL(), "https://")
}

// EncryptionKey returns the 32-byte key used to encrypt stored tokens.
// TOKEN_ENCRYPTION_KEY (base64) wins; otherwise the key is derived from
// SESSION_SECRET. A nil key with a nil error means encryption is off.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.TokenEncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode TOKEN_ENCRYPTION_KEY: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
		return key, nil
	}
	if c.SessionSecret != "" {
		sum := sha256.Sum256([]byte(c.SessionSecret))
		return sum[:], nil
	}
	return nil, nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required"))
	}
	if _, err := url.ParseRequestURI(c.RedirectURL); err != nil {
		errs = append(errs, fmt.Errorf("REDIRECT_URI is not a valid URL: %w", err))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.SessionStore))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if c.CalendarTimeout <= 0 {
		errs = append(errs, errors.New("CALENDAR_TIMEOUT must be positive"))
	}
	if c.CalendarID == "" {
		errs = append(errs, errors.New("CALENDAR_ID must not be empty"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.EncryptionKey(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}
	if err := c.Instrumentation.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
