// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package staff

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/olegiv/schoolsite/internal/model"
)

// ImageResolver looks up the image mapping of a field.
type ImageResolver interface {
	Resolve(ctx context.Context, fieldID string) (model.ImageMapping, error)
}

const (
	// maxParallel limits concurrent lookups of one batch.
	maxParallel = 8

	// maxMemberSets bounds the remembered member lists.
	maxMemberSets = 64
)

// batches tracks the lookups of one member list.
type batches struct {
	started   uint64
	committed uint64
	urls      map[string]string
}

// ImageLoader resolves portraits for a list of members. Batches are kept
// per member list, so the public directory and an editor's full list never
// interfere. Within one list, a batch that completes after a newer one has
// already committed is stale: its results are dropped in favour of the
// newer ones.
type ImageLoader struct {
	images ImageResolver
	logger *slog.Logger

	mu   sync.Mutex
	sets map[string]*batches
}

// NewImageLoader creates a loader.
func NewImageLoader(images ImageResolver, logger *slog.Logger) *ImageLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageLoader{images: images, logger: logger, sets: map[string]*batches{}}
}

// memberSet identifies a member list independent of its order.
func memberSet(members []model.StaffMember) string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	slices.Sort(ids)
	return strings.Join(ids, ",")
}

// Load resolves images for members and returns member id -> URL.
// Members without a mapping keep their own image URL.
func (l *ImageLoader) Load(ctx context.Context, members []model.StaffMember) map[string]string {
	key := memberSet(members)

	l.mu.Lock()
	b, ok := l.sets[key]
	if !ok {
		if len(l.sets) >= maxMemberSets {
			l.sets = map[string]*batches{}
		}
		b = &batches{}
		l.sets[key] = b
	}
	b.started++
	gen := b.started
	l.mu.Unlock()

	found := l.resolve(ctx, members)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen < b.committed {
		l.logger.Debug("dropping stale staff image batch", "batch", gen, "committed", b.committed)
		return maps.Clone(b.urls)
	}
	b.committed = gen
	b.urls = found
	return maps.Clone(found)
}

func (l *ImageLoader) resolve(ctx context.Context, members []model.StaffMember) map[string]string {
	found := make(map[string]string, len(members))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, m := range members {
		g.Go(func() error {
			url := m.Image()
			if mapping, err := l.images.Resolve(gctx, m.ImageFieldID()); err == nil && mapping.URL != "" {
				url = mapping.URL
			}
			if url == "" {
				return nil
			}
			mu.Lock()
			found[m.ID] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return found
}
