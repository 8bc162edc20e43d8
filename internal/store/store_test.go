// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/schoolsite/internal/model"
)

// testDB creates a migrated database in a temporary directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := Migrate(t.Context(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestNewDB_PragmasOnEveryConnection(t *testing.T) {
	db := testDB(t)

	// Pin two connections so the second one is not the first reused.
	ctx := t.Context()
	for i := range 2 {
		conn, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn: %v", err)
		}
		defer func() { _ = conn.Close() }()

		var mode string
		var fk, busy int
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_mode: %v", err)
		}
		_ = conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk)
		_ = conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy)
		if mode != "wal" || fk != 1 || busy != 5000 {
			t.Errorf("conn %d: journal_mode=%s foreign_keys=%d busy_timeout=%d", i, mode, fk, busy)
		}
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"sessions", "events"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Running again is a no-op.
	n, err := Migrate(t.Context(), db)
	if err != nil {
		t.Errorf("second Migrate: %v", err)
	}
	if n != 0 {
		t.Errorf("second Migrate applied %d migrations, want 0", n)
	}
}

func TestCreateAndListEvents(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	base := time.Date(2026, 9, 15, 8, 0, 0, 0, time.UTC)
	inputs := []CreateEventParams{
		{Level: model.EventLevelWarning, Category: model.EventCategoryContent, Message: "save failed", CreatedAt: base},
		{Level: model.EventLevelError, Category: model.EventCategoryBackend, Message: "backend down", Metadata: `{"status":"502"}`, CreatedAt: base.Add(time.Minute)},
		{Level: model.EventLevelInfo, Category: model.EventCategoryAuth, Message: "login", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, in := range inputs {
		e, err := q.CreateEvent(ctx, in)
		if err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
		if e.ID == 0 {
			t.Error("CreateEvent returned zero ID")
		}
	}

	all, err := q.ListEvents(ctx, ListEventsParams{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListEvents len = %d, want 3", len(all))
	}
	if all[0].Message != "login" {
		t.Errorf("first event = %q, want newest %q", all[0].Message, "login")
	}
	if all[2].Metadata != "{}" {
		t.Errorf("default metadata = %q, want {}", all[2].Metadata)
	}

	backend, err := q.ListEvents(ctx, ListEventsParams{Category: model.EventCategoryBackend})
	if err != nil {
		t.Fatalf("ListEvents(category): %v", err)
	}
	if len(backend) != 1 || backend[0].Metadata != `{"status":"502"}` {
		t.Errorf("ListEvents(backend) = %+v", backend)
	}

	page, _ := q.ListEvents(ctx, ListEventsParams{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].Message != "backend down" {
		t.Errorf("ListEvents(page) = %+v", page)
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	old := time.Now().Add(-60 * 24 * time.Hour)
	_, _ = q.CreateEvent(ctx, CreateEventParams{Level: model.EventLevelWarning, Category: "system", Message: "old", CreatedAt: old})
	_, _ = q.CreateEvent(ctx, CreateEventParams{Level: model.EventLevelWarning, Category: "system", Message: "new", CreatedAt: time.Now()})

	n, err := q.DeleteEventsBefore(ctx, time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteEventsBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	count, _ := q.CountEvents(ctx)
	if count != 1 {
		t.Errorf("CountEvents = %d, want 1", count)
	}
}

func TestCreateEvent_RejectsUnknownLevel(t *testing.T) {
	q := New(testDB(t))
	_, err := q.CreateEvent(context.Background(), CreateEventParams{Level: "panic", Category: "system", Message: "x", CreatedAt: time.Now()})
	if err == nil {
		t.Error("CreateEvent with unknown level should fail")
	}
}
