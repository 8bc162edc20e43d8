// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type proberFunc func(ctx context.Context) error

func (f proberFunc) Probe(ctx context.Context) error { return f(ctx) }

type fakeSource struct {
	err   error
	calls atomic.Int32
}

func (s *fakeSource) News(_ context.Context, l locale.Locale) ([]model.NewsItem, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []model.NewsItem{{ID: "live-" + l.String()}}, nil
}

func (s *fakeSource) Events(_ context.Context, l locale.Locale) ([]model.CalendarEvent, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []model.CalendarEvent{{ID: "live-" + l.String()}}, nil
}

func up() Prober   { return proberFunc(func(context.Context) error { return nil }) }
func down() Prober { return proberFunc(func(context.Context) error { return errors.New("refused") }) }

func TestAvailability_TimeoutMeansUnavailable(t *testing.T) {
	hang := proberFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	a := NewAvailability(hang, 20*time.Millisecond, quiet())

	start := time.Now()
	assert.False(t, a.Check(context.Background()))
	assert.Less(t, time.Since(start), time.Second)

	s := a.Status()
	assert.True(t, s.Checked)
	assert.False(t, s.Available)
}

func TestAvailability_LazyFirstCheck(t *testing.T) {
	var probes atomic.Int32
	a := NewAvailability(proberFunc(func(context.Context) error {
		probes.Add(1)
		return nil
	}), 0, quiet())

	assert.False(t, a.Status().Checked)
	assert.True(t, a.Available(context.Background()))
	assert.True(t, a.Available(context.Background()))
	assert.Equal(t, int32(1), probes.Load())
}

func TestService_LiveWhenAvailable(t *testing.T) {
	src := &fakeSource{}
	s, err := NewService(src, NewAvailability(up(), 0, quiet()), quiet())
	require.NoError(t, err)

	news := s.News(context.Background(), locale.EN)
	require.Len(t, news, 1)
	assert.Equal(t, "live-en", news[0].ID)

	events := s.Events(context.Background(), locale.BG)
	require.Len(t, events, 1)
	assert.Equal(t, "live-bg", events[0].ID)
}

func TestService_FallbackWhenUnavailable(t *testing.T) {
	src := &fakeSource{}
	s, err := NewService(src, NewAvailability(down(), 0, quiet()), quiet())
	require.NoError(t, err)

	news := s.News(context.Background(), locale.BG)
	require.NotEmpty(t, news)
	assert.Equal(t, "Начало на учебната година", news[0].Title)

	events := s.Events(context.Background(), locale.EN)
	require.NotEmpty(t, events)
	assert.Equal(t, "School year opening", events[0].Title)

	assert.Zero(t, src.calls.Load())
}

func TestService_FallbackWhenLiveFails(t *testing.T) {
	src := &fakeSource{err: errors.New("500")}
	s, err := NewService(src, NewAvailability(up(), 0, quiet()), quiet())
	require.NoError(t, err)

	news := s.News(context.Background(), locale.EN)
	require.NotEmpty(t, news)
	assert.Equal(t, "fallback-news-1", news[0].ID)
}

func TestFallback_BothLanguages(t *testing.T) {
	ds, err := loadFallback()
	require.NoError(t, err)
	for _, l := range locale.Supported {
		assert.NotEmpty(t, ds.news[l], "news %s", l)
		assert.NotEmpty(t, ds.events[l], "events %s", l)
		assert.Len(t, ds.news[l], len(ds.news[locale.Default]), "news %s", l)
	}
}
