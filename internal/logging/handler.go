// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that mirrors WARN and above
// into the event log table.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/olegiv/schoolsite/internal/model"
	"github.com/olegiv/schoolsite/internal/store"
)

// Option adjusts an EventLogHandler.
type Option func(*EventLogHandler)

// WithMinLevel sets the lowest level copied into the event log.
func WithMinLevel(level slog.Level) Option {
	return func(h *EventLogHandler) { h.min = level }
}

// EventLogHandler forwards records to an inner handler and copies those
// at or above its minimum level into the event log.
type EventLogHandler struct {
	inner  slog.Handler
	events *store.Queries
	min    slog.Level
	prefix string      // dotted group path from WithGroup
	attrs  []slog.Attr // keys already carry their group prefix
}

// NewEventLogHandler wraps inner. The default minimum level is WARN.
func NewEventLogHandler(inner slog.Handler, db *sql.DB, opts ...Option) *EventLogHandler {
	h := &EventLogHandler{inner: inner, events: store.New(db), min: slog.LevelWarn}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min || h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler. Event log write failures are dropped so
// that logging never fails a request.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.min {
		// Detached from ctx: the event must outlive a cancelled request.
		_, _ = h.events.CreateEvent(context.WithoutCancel(ctx), h.event(r))
	}
	if !h.inner.Enabled(ctx, r.Level) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.inner = h.inner.WithAttrs(attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	return c
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.inner = h.inner.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return c
}

func (h *EventLogHandler) clone() *EventLogHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

func (h *EventLogHandler) event(r slog.Record) store.CreateEventParams {
	fields := map[string]string{}
	var category string

	var collect func(prefix string, a slog.Attr)
	collect = func(prefix string, a slog.Attr) {
		v := a.Value.Resolve()
		switch {
		case a.Key == "category" && prefix == "":
			category = v.String()
		case v.Kind() == slog.KindGroup:
			p := prefix
			if a.Key != "" {
				p += a.Key + "."
			}
			for _, ga := range v.Group() {
				collect(p, ga)
			}
		case a.Key != "":
			fields[prefix+a.Key] = v.String()
		}
	}
	for _, a := range h.attrs {
		collect("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(h.prefix, a)
		return true
	})

	if category == "" {
		category = inferCategory(r.Message)
	}

	meta := "{}"
	if len(fields) > 0 {
		if data, err := json.Marshal(fields); err == nil {
			meta = string(data)
		}
	}

	return store.CreateEventParams{
		Level:     eventLevel(r.Level),
		Category:  category,
		Message:   r.Message,
		Metadata:  meta,
		CreatedAt: r.Time,
	}
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// categoryKeywords is checked in order; the first match wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{model.EventCategoryAuth, []string{"auth", "login", "logout"}},
	{model.EventCategorySession, []string{"session"}},
	{model.EventCategoryContent, []string{"content", "section", "image"}},
	{model.EventCategoryBackend, []string{"backend", "probe"}},
	{model.EventCategoryCache, []string{"cache", "redis"}},
}

// inferCategory guesses a category for records logged without one.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(msg, w) {
				return c.category
			}
		}
	}
	return model.EventCategorySystem
}
