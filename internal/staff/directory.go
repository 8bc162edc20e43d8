// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package staff serves the school team list: ordered and filtered for
// visitors, complete for editors.
package staff

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/olegiv/schoolsite/internal/backend"
	"github.com/olegiv/schoolsite/internal/cache"
	"github.com/olegiv/schoolsite/internal/model"
)

// EditorTTL bounds how long an editor's staff list is reused.
const EditorTTL = 5 * time.Minute

// Source provides staff members.
type Source interface {
	Staff(ctx context.Context) ([]model.StaffMember, error)
}

// Directory reads staff from the backend.
type Directory struct {
	source Source
	editor *cache.TypedCache[[]model.StaffMember]
	logger *slog.Logger
}

// NewDirectory creates a directory. Editor lists are cached in c.
func NewDirectory(source Source, c cache.Cacher, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		source: source,
		editor: cache.NewTypedCache[[]model.StaffMember](c, "staff:", EditorTTL),
		logger: logger,
	}
}

// Public returns active members ordered by position. Failures yield an
// empty list.
func (d *Directory) Public(ctx context.Context) []model.StaffMember {
	members, err := d.source.Staff(ctx)
	if err != nil {
		d.logger.Debug("staff unavailable", "error", err)
		return []model.StaffMember{}
	}
	active := make([]model.StaffMember, 0, len(members))
	for _, m := range members {
		if m.IsActive {
			active = append(active, m)
		}
	}
	Sort(active)
	return active
}

// All returns every member, inactive included, for the editor holding
// token.
func (d *Directory) All(ctx context.Context, token string) ([]model.StaffMember, error) {
	members, err := d.editor.GetOrSet(ctx, tokenKey(token), func() ([]model.StaffMember, error) {
		return d.source.Staff(backend.WithToken(ctx, token))
	})
	if err != nil {
		return nil, fmt.Errorf("loading staff: %w", err)
	}
	members = slices.Clone(members)
	Sort(members)
	return members, nil
}

// Forget drops the cached list of the editor holding token.
func (d *Directory) Forget(ctx context.Context, token string) {
	if err := d.editor.Delete(ctx, tokenKey(token)); err != nil {
		d.logger.Debug("staff cache delete failed", "error", err)
	}
}

// Sort orders members by position; ties keep their order.
func Sort(members []model.StaffMember) {
	slices.SortStableFunc(members, func(a, b model.StaffMember) int {
		return a.Position - b.Position
	})
}

// tokenKey keeps raw tokens out of the shared cache.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
