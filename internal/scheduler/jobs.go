// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// EventRetention is how long event log entries are kept.
const EventRetention = 30 * 24 * time.Hour

// Checker probes the backend.
type Checker interface {
	Check(ctx context.Context) bool
}

// Loader reloads site content.
type Loader interface {
	Load(ctx context.Context) error
}

// EventPruner deletes old event log entries.
type EventPruner interface {
	DeleteEventsBefore(ctx context.Context, t time.Time) (int64, error)
}

// Sweeper drops stale in-memory state.
type Sweeper interface {
	Cleanup()
}

// ErrBackendUnavailable is returned by the probe job when the check fails.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Jobs wires the site's background work.
type Jobs struct {
	Checker        Checker
	Loader         Loader
	Events         EventPruner
	Logins         Sweeper
	ContentRefresh string // cron spec; empty skips the reload job
	Logger         *slog.Logger
}

// Register adds every configured job to s.
func (j Jobs) Register(s *Scheduler) error {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if j.Checker != nil {
		err := s.Add(JobProbe, "@every 1m", 0, func(ctx context.Context) error {
			if !j.Checker.Check(ctx) {
				return ErrBackendUnavailable
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if j.Loader != nil && j.ContentRefresh != "" {
		err := s.Add(JobContentReload, j.ContentRefresh, time.Minute, j.Loader.Load)
		if err != nil {
			return err
		}
	}

	if j.Events != nil {
		err := s.Add(JobEventCleanup, "@daily", time.Minute, func(ctx context.Context) error {
			n, err := j.Events.DeleteEventsBefore(ctx, time.Now().Add(-EventRetention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned event log", "deleted", n)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if j.Logins != nil {
		err := s.Add(JobLoginCleanup, "@every 10m", 0, func(context.Context) error {
			j.Logins.Cleanup()
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
