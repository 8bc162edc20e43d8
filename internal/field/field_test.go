// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package field

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

var errSave = errors.New("save failed")

type memStore struct {
	mu       sync.Mutex
	sections []model.ContentSection
	saved    []model.ContentSection
	failNext bool
}

func (s *memStore) Sections(context.Context) ([]model.ContentSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ContentSection(nil), s.sections...), nil
}

func (s *memStore) UpsertSection(_ context.Context, sec model.ContentSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errSave
	}
	s.saved = append(s.saved, sec)
	return nil
}

func (s *memStore) PageSections(context.Context, string, locale.Locale) ([]model.ContentSection, error) {
	return nil, nil
}

type fakeSession struct {
	loggedIn, editing bool
}

func (s *fakeSession) IsLoggedIn(context.Context) bool { return s.loggedIn }
func (s *fakeSession) IsEditing(context.Context) bool  { return s.loggedIn && s.editing }

func newContent(t *testing.T, sections ...model.ContentSection) (*content.Cache, *memStore) {
	t.Helper()
	store := &memStore{sections: sections}
	c := content.NewCache(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, c.Load(context.Background()))
	return c, store
}

func ctxFor(l locale.Locale, path string) context.Context {
	return content.WithPath(locale.WithLocale(context.Background(), l), path)
}

var heroDefaults = Defaults[string]{locale.BG: "Добре дошли", locale.EN: "Welcome"}

func TestText_HeroTitleScenario(t *testing.T) {
	c, store := newContent(t)
	editor := &fakeSession{loggedIn: true, editing: true}
	f := NewText("hero-title", "Hero title", heroDefaults, c, editor)

	bg := ctxFor(locale.BG, "/")
	en := ctxFor(locale.EN, "/")

	assert.Equal(t, "Добре дошли", f.Value(bg))
	assert.Equal(t, "Welcome", f.Value(en))

	require.True(t, f.Click(en, Target{}).Entered)
	require.NoError(t, f.Input("Welcome back"))
	require.NoError(t, f.KeyDown(en, KeyEnter, false))

	assert.Equal(t, "Welcome back", f.Value(en))
	assert.Equal(t, "Добре дошли", f.Value(bg))

	require.Len(t, store.saved, 1)
	assert.Equal(t, "hero-title_en", store.saved[0].ID)
	assert.Equal(t, "home", store.saved[0].PageID)
	assert.Equal(t, model.SectionText, store.saved[0].Type)
	assert.Equal(t, "Hero title", store.saved[0].Label)
}

func TestText_EscapeLeavesValueUnchanged(t *testing.T) {
	c, store := newContent(t, model.ContentSection{ID: "intro_bg", Content: "Начало"})
	f := NewText("intro", "", nil, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.BG, "/")

	before := f.Value(ctx)
	f.Click(ctx, Target{})
	require.NoError(t, f.Input("something else"))
	assert.Equal(t, "something else", f.Value(ctx))

	require.NoError(t, f.KeyDown(ctx, KeyEscape, false))
	assert.Equal(t, before, f.Value(ctx))
	assert.Equal(t, Viewing, f.State())
	assert.Empty(t, store.saved)
}

func TestText_FailedSaveReverts(t *testing.T) {
	c, store := newContent(t, model.ContentSection{ID: "intro_bg", Content: "Начало"})
	f := NewText("intro", "", nil, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.BG, "/contacts")

	before := f.Value(ctx)
	f.Click(ctx, Target{})
	_ = f.Input("broken edit")
	store.failNext = true

	err := f.Blur(ctx)
	assert.ErrorIs(t, err, errSave)
	assert.Equal(t, before, f.Value(ctx))
	assert.Equal(t, Viewing, f.State())
}

func TestText_ShiftEnterDoesNotCommit(t *testing.T) {
	c, store := newContent(t)
	f := NewText("intro", "", nil, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.BG, "/")

	f.Click(ctx, Target{})
	require.NoError(t, f.KeyDown(ctx, KeyEnter, true))
	assert.Equal(t, Editing, f.State())
	assert.Empty(t, store.saved)
}

func TestText_ClickGating(t *testing.T) {
	c, _ := newContent(t)
	ctx := ctxFor(locale.BG, "/")

	tests := []struct {
		name    string
		session *fakeSession
		want    bool
	}{
		{"anonymous", &fakeSession{}, false},
		{"logged in, not editing", &fakeSession{loggedIn: true}, false},
		{"editing", &fakeSession{loggedIn: true, editing: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewText("x", "", nil, c, tt.session)
			res := f.Click(ctx, Target{InAnchor: true})
			assert.Equal(t, tt.want, res.Entered)
			assert.Equal(t, tt.want, res.PreventDefault)
			assert.Equal(t, tt.want, res.StopPropagation)
		})
	}
}

func TestText_ClickOutsideAnchorKeepsDefault(t *testing.T) {
	c, _ := newContent(t)
	f := NewText("x", "", nil, c, &fakeSession{loggedIn: true, editing: true})

	res := f.Click(ctxFor(locale.BG, "/"), Target{})
	assert.True(t, res.Entered)
	assert.False(t, res.PreventDefault)
	assert.False(t, res.StopPropagation)
}

func TestText_EditModeOffDiscardsDraft(t *testing.T) {
	c, store := newContent(t)
	f := NewText("hero-title", "", heroDefaults, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.BG, "/")

	f.Click(ctx, Target{})
	_ = f.Input("draft")
	f.EditModeChanged(false)

	assert.Equal(t, "Добре дошли", f.Value(ctx))
	assert.NoError(t, f.Blur(ctx))
	assert.Empty(t, store.saved)
}

func TestText_InputOutsideEditing(t *testing.T) {
	c, _ := newContent(t)
	f := NewText("x", "", nil, c, &fakeSession{})
	assert.ErrorIs(t, f.Input("nope"), ErrNotEditing)
}

func TestText_ResolvingUntilLoaded(t *testing.T) {
	store := &memStore{}
	c := content.NewCache(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f := NewText("hero-title", "", heroDefaults, c, &fakeSession{})

	assert.Equal(t, Resolving, f.State())
	assert.Equal(t, "Welcome", f.Value(ctxFor(locale.EN, "/")))

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, Viewing, f.State())
}

func TestText_CommitIDFixedAtCallTime(t *testing.T) {
	c, store := newContent(t)
	f := NewText("motto", "", nil, c, &fakeSession{loggedIn: true, editing: true})

	f.Click(ctxFor(locale.BG, "/"), Target{})
	_ = f.Input("Девиз")
	require.NoError(t, f.Blur(ctxFor(locale.EN, "/school/history")))

	require.Len(t, store.saved, 1)
	assert.Equal(t, "motto_en", store.saved[0].ID)
	assert.Equal(t, "school-history", store.saved[0].PageID)
}

func TestDefaults_For(t *testing.T) {
	d := Defaults[string]{locale.BG: "бг"}
	assert.Equal(t, "бг", d.For(locale.EN))
	assert.Equal(t, "", Defaults[string](nil).For(locale.BG))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "saving", Saving.String())
	assert.Equal(t, "unknown", State(42).String())
}
