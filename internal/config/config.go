// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the server configuration from SCHOOL_* variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"github.com/olegiv/schoolsite/internal/locale"
)

// knownWeakSecrets contains example secrets that must never be used.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Content API
	BackendURL     string        `env:"SCHOOL_BACKEND_URL,required"`
	BackendTimeout time.Duration `env:"SCHOOL_BACKEND_TIMEOUT" envDefault:"10s"`
	ProbeTimeout   time.Duration `env:"SCHOOL_PROBE_TIMEOUT" envDefault:"3s"`

	DBPath          string `env:"SCHOOL_DB_PATH" envDefault:"./data/schoolsite.db"`
	SessionSecret   string `env:"SCHOOL_SESSION_SECRET,required"`
	ServerHost      string `env:"SCHOOL_SERVER_HOST" envDefault:"localhost"`
	ServerPort      int    `env:"SCHOOL_SERVER_PORT" envDefault:"8080"`
	Env             string `env:"SCHOOL_ENV" envDefault:"development"`
	LogLevel        string `env:"SCHOOL_LOG_LEVEL" envDefault:"info"`
	DefaultLanguage string `env:"SCHOOL_DEFAULT_LANGUAGE" envDefault:"bg"`

	// Cache configuration
	RedisURL     string `env:"SCHOOL_REDIS_URL"`                          // optional, shared cache
	CachePrefix  string `env:"SCHOOL_CACHE_PREFIX" envDefault:"school:"` // Redis key prefix
	CacheTTL     int    `env:"SCHOOL_CACHE_TTL" envDefault:"600"`         // seconds
	CacheMaxSize int    `env:"SCHOOL_CACHE_MAX_SIZE" envDefault:"5000"`   // memory cache entries

	// Cron spec of the full content reload; "off" disables it.
	ContentRefresh string `env:"SCHOOL_CONTENT_REFRESH" envDefault:"@every 15m"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// RefreshEnabled reports whether the periodic content reload runs.
func (c Config) RefreshEnabled() bool {
	return c.ContentRefresh != "" && c.ContentRefresh != "off"
}

// CacheTTLDuration returns CacheTTL as a duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Language returns the configured default language.
func (c Config) Language() locale.Locale {
	if l, ok := locale.Parse(c.DefaultLanguage); ok {
		return l
	}
	return locale.Default
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("SCHOOL_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("SCHOOL_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return fmt.Errorf("SCHOOL_SESSION_SECRET is a known default value and must not be used")
		}
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SCHOOL_BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}

	if _, ok := locale.Parse(c.DefaultLanguage); !ok {
		return fmt.Errorf("SCHOOL_DEFAULT_LANGUAGE must be one of %v, got %q", locale.Supported, c.DefaultLanguage)
	}

	if c.ProbeTimeout <= 0 || c.BackendTimeout <= 0 {
		return fmt.Errorf("SCHOOL_BACKEND_TIMEOUT and SCHOOL_PROBE_TIMEOUT must be positive")
	}

	if c.RefreshEnabled() {
		if _, err := cron.ParseStandard(c.ContentRefresh); err != nil {
			return fmt.Errorf("SCHOOL_CONTENT_REFRESH: %w", err)
		}
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
