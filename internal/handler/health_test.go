// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/olegiv/schoolsite/internal/cache"
	"github.com/olegiv/schoolsite/internal/feed"
	"github.com/olegiv/schoolsite/internal/scheduler"
	"github.com/olegiv/schoolsite/internal/version"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeContentStats struct {
	loaded bool
	n      int
}

func (f fakeContentStats) Loaded() bool { return f.loaded }
func (f fakeContentStats) Len() int     { return f.n }

type fakeJobs []scheduler.JobInfo

func (f fakeJobs) Jobs() []scheduler.JobInfo { return f }

type loggedIn bool

func (l loggedIn) IsLoggedIn(context.Context) bool { return bool(l) }

func newTestHealthHandler(t *testing.T, session LoginChecker, status feed.Status) *HealthHandler {
	t.Helper()
	return NewHealthHandler(HealthConfig{
		DB:        testDB(t),
		Cache:     cache.Info{Backend: "memory"},
		Content:   fakeContentStats{loaded: true, n: 42},
		Feed:      fixedStatus(status),
		Scheduler: fakeJobs{{Name: scheduler.JobProbe, Schedule: "@every 1m"}},
		Session:   session,
		Version:   version.Info{Version: "v1.2.3", GitCommit: "abc1234"},
	})
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d; want %d", got, want)
	}
}

func TestHealthHandler_Health_Public(t *testing.T) {
	handler := newTestHealthHandler(t, loggedIn(false), feed.Status{Checked: true, Available: true})

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	assertStatus(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["status"] != statusHealthy {
		t.Errorf("status = %v; want healthy", resp["status"])
	}
	for _, key := range []string{"uptime", "version", "checks", "jobs", "system"} {
		if _, ok := resp[key]; ok {
			t.Errorf("public response should not contain %s", key)
		}
	}
}

func TestHealthHandler_Health_Editor(t *testing.T) {
	handler := newTestHealthHandler(t, loggedIn(true), feed.Status{})

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	assertStatus(t, w.Code, http.StatusOK)

	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != statusHealthy {
		t.Errorf("status = %q; want healthy", resp.Status)
	}
	if resp.Version != "v1.2.3" || resp.Commit != "abc1234" {
		t.Errorf("version = %q commit = %q", resp.Version, resp.Commit)
	}
	if resp.Checks["database"].Status != statusHealthy {
		t.Errorf("database check = %+v", resp.Checks["database"])
	}
	if got := resp.Checks["content"].Message; got != "42 sections" {
		t.Errorf("content check message = %q", got)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].Name != scheduler.JobProbe {
		t.Errorf("jobs = %+v", resp.Jobs)
	}
	if resp.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q", resp.Cache.Backend)
	}
	if resp.System == nil {
		t.Error("expected system info with verbose=true")
	}
}

func TestHealthHandler_Health_BackendDown(t *testing.T) {
	handler := newTestHealthHandler(t, loggedIn(true), feed.Status{Checked: true, CheckedAt: time.Now()})

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// The site keeps serving defaults, so an unreachable backend is not a 503.
	assertStatus(t, w.Code, http.StatusOK)

	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != statusDegraded {
		t.Errorf("status = %q; want degraded", resp.Status)
	}
	if resp.Checks["backend"].Status != statusDegraded {
		t.Errorf("backend check = %+v", resp.Checks["backend"])
	}
}

func TestHealthHandler_Health_UnhealthyDatabase(t *testing.T) {
	db := testDB(t)
	handler := NewHealthHandler(HealthConfig{DB: db, Content: fakeContentStats{loaded: true}})
	_ = db.Close()

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assertStatus(t, w.Code, http.StatusServiceUnavailable)

	var resp HealthStatusPublic
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != statusUnhealthy {
		t.Errorf("status = %q; want unhealthy", resp.Status)
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	handler := NewHealthHandler(HealthConfig{})

	w := httptest.NewRecorder()
	handler.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assertStatus(t, w.Code, http.StatusOK)
	if w.Body.String() != "{\"status\":\"alive\"}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
