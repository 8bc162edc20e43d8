// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/i18n"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
	"github.com/olegiv/schoolsite/internal/render"
	"github.com/olegiv/schoolsite/web"
)

var errBackend = errors.New("backend down")

// fakeStore is the remote side of a real content cache.
type fakeStore struct {
	mu       sync.Mutex
	sections []model.ContentSection
	pages    map[string][]model.ContentSection
	upserts  []model.ContentSection
	failLoad bool
	failSave bool
}

func (s *fakeStore) Sections(context.Context) ([]model.ContentSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad {
		return nil, errBackend
	}
	return append([]model.ContentSection{}, s.sections...), nil
}

func (s *fakeStore) UpsertSection(_ context.Context, section model.ContentSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errBackend
	}
	s.upserts = append(s.upserts, section)
	return nil
}

func (s *fakeStore) PageSections(_ context.Context, pageID string, l locale.Locale) ([]model.ContentSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[pageID+"_"+l.String()], nil
}

func (s *fakeStore) lastUpsert(t *testing.T) model.ContentSection {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.upserts, "no section was written")
	return s.upserts[len(s.upserts)-1]
}

// fakeSession is an in-memory editor session.
type fakeSession struct {
	mu         sync.Mutex
	loggedIn   bool
	editing    bool
	username   string
	token      string
	err        string
	loginErr   error
	logins     int
	logouts    int
	editingErr error
}

func (s *fakeSession) IsLoggedIn(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

func (s *fakeSession) IsEditing(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn && s.editing
}

func (s *fakeSession) Username(context.Context) string { return s.username }
func (s *fakeSession) Token(context.Context) string    { return s.token }

func (s *fakeSession) SetEditing(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editingErr != nil {
		return s.editingErr
	}
	s.editing = on
	return nil
}

func (s *fakeSession) SetError(_ context.Context, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

func (s *fakeSession) ClearError(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ""
}

func (s *fakeSession) PopError(context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.err
	s.err = ""
	return msg
}

func (s *fakeSession) Login(_ context.Context, username, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginErr != nil {
		return s.loginErr
	}
	s.logins++
	s.loggedIn = true
	s.username = username
	return nil
}

func (s *fakeSession) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logouts++
	s.loggedIn = false
	s.editing = false
	return nil
}

// fakeImages keeps image mappings in memory.
type fakeImages struct {
	mu       sync.Mutex
	mappings map[string]model.ImageMapping
	fail     bool
}

func (f *fakeImages) Resolve(_ context.Context, id string) (model.ImageMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.mappings[id]; ok {
		return m, nil
	}
	return model.ImageMapping{}, content.ErrNoImage
}

func (f *fakeImages) Register(_ context.Context, m model.ImageMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errBackend
	}
	if f.mappings == nil {
		f.mappings = map[string]model.ImageMapping{}
	}
	f.mappings[m.FieldID] = m
	return nil
}

// testEnv wires handlers over fakes and a real content cache.
type testEnv struct {
	store    *fakeStore
	session  *fakeSession
	images   *fakeImages
	cache    *content.Cache
	fields   *render.Fields
	renderer *render.Renderer
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   &fakeStore{pages: map[string][]model.ContentSection{}},
		session: &fakeSession{},
		images:  &fakeImages{},
	}
	env.cache = content.NewCache(env.store, env.session, quietLogger())

	catalog, err := i18n.New(quietLogger())
	require.NoError(t, err)
	env.fields = render.NewFields(env.cache, env.images, env.session, catalog)

	env.renderer, err = render.New(render.Config{
		TemplatesFS: web.Templates,
		Banner:      env.session,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	return env
}

func (e *testEnv) loginEditor(editing bool) {
	e.session.loggedIn = true
	e.session.editing = editing
	e.session.username = "director"
	e.session.token = "tok"
}

func (e *testEnv) editHandler() *EditHandler {
	return NewEditHandler(e.fields, e.session, e.cache, quietLogger())
}

// newRequest builds a request carrying the locale and page path the
// middleware chain would attach.
func newRequest(method, target string, l locale.Locale, pagePath string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := locale.WithLocale(r.Context(), l)
	if pagePath != "" {
		ctx = content.WithPath(ctx, pagePath)
	}
	return r.WithContext(ctx)
}

func jsonRequest(t *testing.T, target string, l locale.Locale, pagePath string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	r := newRequest(http.MethodPost, target, l, pagePath, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
