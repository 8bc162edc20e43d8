// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/schoolsite/internal/model"
)

// DefaultProbeTimeout bounds the health probe.
const DefaultProbeTimeout = 3 * time.Second

// Prober performs the backend health check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Availability remembers whether the backend answered its last probe.
type Availability struct {
	prober  Prober
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	checked   bool
	available bool
	checkedAt time.Time
}

// NewAvailability creates a tracker. A zero timeout selects
// DefaultProbeTimeout.
func NewAvailability(p Prober, timeout time.Duration, logger *slog.Logger) *Availability {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Availability{prober: p, timeout: timeout, logger: logger}
}

// Check probes the backend now. A timeout counts as unavailable.
func (a *Availability) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.prober.Probe(ctx)
	ok := err == nil

	a.mu.Lock()
	changed := !a.checked || a.available != ok
	a.checked = true
	a.available = ok
	a.checkedAt = time.Now()
	a.mu.Unlock()

	if changed {
		if ok {
			a.logger.Info("backend available", "category", model.EventCategoryBackend)
		} else {
			a.logger.Warn("backend unavailable, serving fallback data",
				"category", model.EventCategoryBackend, "error", err)
		}
	}
	return ok
}

// Available returns the last probe outcome, probing first if none ran yet.
func (a *Availability) Available(ctx context.Context) bool {
	a.mu.RLock()
	checked, ok := a.checked, a.available
	a.mu.RUnlock()
	if !checked {
		return a.Check(ctx)
	}
	return ok
}

// Status describes the last probe for health reports.
type Status struct {
	Checked   bool      `json:"checked"`
	Available bool      `json:"available"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// Status returns the last probe outcome without probing.
func (a *Availability) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{Checked: a.checked, Available: a.available, CheckedAt: a.checkedAt}
}
