// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package feed serves news and events, switching to bundled datasets
// when the backend is unavailable.
package feed

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

//go:embed fallback/*.json
var fallbackFS embed.FS

// Source provides live news and events.
type Source interface {
	News(ctx context.Context, l locale.Locale) ([]model.NewsItem, error)
	Events(ctx context.Context, l locale.Locale) ([]model.CalendarEvent, error)
}

type dataset struct {
	news   map[locale.Locale][]model.NewsItem
	events map[locale.Locale][]model.CalendarEvent
}

// Service chooses between live and bundled data.
type Service struct {
	source   Source
	avail    *Availability
	logger   *slog.Logger
	fallback dataset
}

// NewService creates the feed service and parses the bundled datasets.
func NewService(source Source, avail *Availability, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ds, err := loadFallback()
	if err != nil {
		return nil, err
	}
	return &Service{source: source, avail: avail, logger: logger, fallback: ds}, nil
}

func loadFallback() (dataset, error) {
	ds := dataset{
		news:   make(map[locale.Locale][]model.NewsItem),
		events: make(map[locale.Locale][]model.CalendarEvent),
	}
	for _, l := range locale.Supported {
		var news []model.NewsItem
		if err := readJSON("fallback/news_"+l.String()+".json", &news); err != nil {
			return dataset{}, err
		}
		var events []model.CalendarEvent
		if err := readJSON("fallback/events_"+l.String()+".json", &events); err != nil {
			return dataset{}, err
		}
		ds.news[l] = news
		ds.events[l] = events
	}
	return ds, nil
}

func readJSON(name string, v any) error {
	data, err := fallbackFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// News returns live news when the backend is up, else the bundled set.
func (s *Service) News(ctx context.Context, l locale.Locale) []model.NewsItem {
	if s.avail.Available(ctx) {
		items, err := s.source.News(ctx, l)
		if err == nil {
			return items
		}
		s.logger.Debug("live news failed, using fallback", "lang", l, "error", err)
	}
	return append([]model.NewsItem(nil), s.fallback.news[l]...)
}

// Events returns live events when the backend is up, else the bundled set.
func (s *Service) Events(ctx context.Context, l locale.Locale) []model.CalendarEvent {
	if s.avail.Available(ctx) {
		events, err := s.source.Events(ctx, l)
		if err == nil {
			return events
		}
		s.logger.Debug("live events failed, using fallback", "lang", l, "error", err)
	}
	return append([]model.CalendarEvent(nil), s.fallback.events[l]...)
}
