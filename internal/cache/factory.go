// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
	"net/url"
	"time"
)

// Config selects and configures the cache backend.
type Config struct {
	RedisURL        string // empty selects memory
	Prefix          string
	DefaultTTL      time.Duration
	MaxSize         int
	CleanupInterval time.Duration
}

// Info describes the backend chosen by NewCache.
type Info struct {
	Backend    string `json:"backend"`
	IsFallback bool   `json:"is_fallback"`
}

// NewCache returns a Redis cache when configured and reachable, otherwise
// a memory cache. A Redis failure never prevents startup.
func NewCache(cfg Config, logger *slog.Logger) (Cacher, Info) {
	if cfg.RedisURL != "" {
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}

		rc, err := NewRedisCache(opts)
		if err == nil {
			return rc, Info{Backend: "redis"}
		}
		logger.Warn("redis unavailable, using memory cache",
			"category", "cache", "url", SanitizeRedisURL(cfg.RedisURL), "error", err)
		return newMemory(cfg), Info{Backend: "memory", IsFallback: true}
	}
	return newMemory(cfg), Info{Backend: "memory"}
}

func newMemory(cfg Config) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	})
}

// SanitizeRedisURL masks the password of a Redis URL for logging.
func SanitizeRedisURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid URL]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
