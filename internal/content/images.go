// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/schoolsite/internal/backend"
	"github.com/olegiv/schoolsite/internal/cache"
	"github.com/olegiv/schoolsite/internal/model"
)

// ImageAPI is the remote side of image mappings.
type ImageAPI interface {
	ImageMapping(ctx context.Context, fieldID string) (model.ImageMapping, error)
	SetImageMapping(ctx context.Context, m model.ImageMapping) error
}

// ErrNoImage is returned when a field has no registered image.
var ErrNoImage = errors.New("content: no image mapping")

// ImageTTL bounds how long a resolved mapping is reused.
const ImageTTL = 10 * time.Minute

// Images resolves image fields through a typed cache in front of the API.
// Mappings are keyed by the plain field id and shared by both languages.
type Images struct {
	api    ImageAPI
	cache  *cache.TypedCache[model.ImageMapping]
	logger *slog.Logger
}

// NewImages creates an image resolver backed by c.
func NewImages(api ImageAPI, c cache.Cacher, logger *slog.Logger) *Images {
	if logger == nil {
		logger = slog.Default()
	}
	return &Images{
		api:    api,
		cache:  cache.NewTypedCache[model.ImageMapping](c, "image:", ImageTTL),
		logger: logger,
	}
}

// Resolve returns the mapping for fieldID. A mapping without URL counts
// as absent.
func (i *Images) Resolve(ctx context.Context, fieldID string) (model.ImageMapping, error) {
	m, err := i.cache.GetOrSet(ctx, fieldID, func() (model.ImageMapping, error) {
		m, err := i.api.ImageMapping(ctx, fieldID)
		if errors.Is(err, backend.ErrNotFound) {
			return model.ImageMapping{}, ErrNoImage
		}
		return m, err
	})
	if err != nil {
		return model.ImageMapping{}, err
	}
	if m.URL == "" {
		return model.ImageMapping{}, ErrNoImage
	}
	return m, nil
}

// Register stores a mapping remotely and refreshes the cached copy.
func (i *Images) Register(ctx context.Context, m model.ImageMapping) error {
	if m.FieldID == "" {
		return errors.New("content: image field id is required")
	}
	if err := i.api.SetImageMapping(ctx, m); err != nil {
		return fmt.Errorf("registering image %s: %w", m.FieldID, err)
	}
	if err := i.cache.Set(ctx, m.FieldID, m); err != nil {
		i.logger.Debug("image cache write failed", "field_id", m.FieldID, "error", err)
	}
	return nil
}
