// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/olegiv/schoolsite/internal/cache"
	"github.com/olegiv/schoolsite/internal/feed"
	"github.com/olegiv/schoolsite/internal/scheduler"
	"github.com/olegiv/schoolsite/internal/version"
)

// Health status values.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ContentStats reports the state of the content cache.
type ContentStats interface {
	Loaded() bool
	Len() int
}

// FeedStatus reports the last backend probe.
type FeedStatus interface {
	Status() feed.Status
}

// JobLister lists scheduled jobs.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// LoginChecker tells whether the caller is a logged-in editor.
type LoginChecker interface {
	IsLoggedIn(ctx context.Context) bool
}

// HealthConfig holds the dependencies reported by HealthHandler.
type HealthConfig struct {
	DB        Pinger
	Cache     cache.Info
	Content   ContentStats
	Feed      FeedStatus
	Scheduler JobLister
	Session   LoginChecker
	Version   version.Info
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	cfg       HealthConfig
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{cfg: cfg, startTime: time.Now()}
}

// HealthStatusPublic is the minimal health response for anonymous callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the detailed report shown to logged-in editors.
type HealthStatus struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Uptime    string              `json:"uptime"`
	Version   string              `json:"version"`
	Commit    string              `json:"commit,omitempty"`
	Checks    map[string]Check    `json:"checks"`
	Jobs      []scheduler.JobInfo `json:"jobs,omitempty"`
	Cache     cache.Info          `json:"cache"`
	System    *SystemInfo         `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	MemAlloc     string `json:"mem_alloc"`
}

// Health handles GET /health. The database decides between healthy and
// unhealthy; an unreachable backend only degrades the site because pages
// fall back to their default texts.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": h.checkDatabase(r.Context()),
		"backend":  h.checkBackend(),
		"content":  h.checkContent(),
	}

	overall := statusHealthy
	code := http.StatusOK
	for _, c := range checks {
		switch c.Status {
		case statusUnhealthy:
			overall = statusUnhealthy
			code = http.StatusServiceUnavailable
		case statusDegraded:
			if overall == statusHealthy {
				overall = statusDegraded
			}
		}
	}

	if h.cfg.Session == nil || !h.cfg.Session.IsLoggedIn(r.Context()) {
		writeJSON(w, code, HealthStatusPublic{Status: overall})
		return
	}

	status := HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.versionString(),
		Commit:    h.cfg.Version.GitCommit,
		Checks:    checks,
		Cache:     h.cfg.Cache,
	}
	if h.cfg.Scheduler != nil {
		status.Jobs = h.cfg.Scheduler.Jobs()
	}
	if r.URL.Query().Get("verbose") == "true" {
		status.System = systemInfo()
	}
	writeJSON(w, code, status)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthHandler) versionString() string {
	if h.cfg.Version.Version == "" {
		return "dev"
	}
	return h.cfg.Version.Version
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	if h.cfg.DB == nil {
		return Check{Status: statusUnhealthy, Message: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.cfg.DB.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: statusHealthy, Message: "Connected", Latency: latency.String()}
}

func (h *HealthHandler) checkBackend() Check {
	if h.cfg.Feed == nil {
		return Check{Status: statusDegraded, Message: "not configured"}
	}
	s := h.cfg.Feed.Status()
	switch {
	case !s.Checked:
		return Check{Status: statusHealthy, Message: "not probed yet"}
	case !s.Available:
		return Check{Status: statusDegraded, Message: "unreachable since " + s.CheckedAt.UTC().Format(time.RFC3339)}
	}
	return Check{Status: statusHealthy, Message: "reachable"}
}

func (h *HealthHandler) checkContent() Check {
	if h.cfg.Content == nil {
		return Check{Status: statusDegraded, Message: "not configured"}
	}
	if !h.cfg.Content.Loaded() {
		return Check{Status: statusDegraded, Message: "not loaded, serving defaults"}
	}
	return Check{Status: statusHealthy, Message: fmt.Sprintf("%d sections", h.cfg.Content.Len())}
}

func systemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     formatBytes(m.Alloc),
	}
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
