// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/schoolsite/internal/backend"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/middleware"
	"github.com/olegiv/schoolsite/internal/model"
	"github.com/olegiv/schoolsite/internal/store"
	"github.com/olegiv/schoolsite/internal/testutil"
)

type fakeEvents struct {
	events []store.CreateEventParams
}

func (f *fakeEvents) CreateEvent(_ context.Context, arg store.CreateEventParams) (model.Event, error) {
	f.events = append(f.events, arg)
	return model.Event{ID: int64(len(f.events)), Level: arg.Level, Category: arg.Category, Message: arg.Message}, nil
}

func (f *fakeEvents) messages() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Message)
	}
	return out
}

func loginRequest(username, password string) *http.Request {
	form := url.Values{"username": {username}, "password": {password}}
	r := newRequest(http.MethodPost, "/login", locale.EN, "", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func newAuthHandler(env *testEnv, lp *middleware.LoginProtection, events EventRecorder) *AuthHandler {
	return NewAuthHandler(env.renderer, env.fields, env.session, lp, events, quietLogger())
}

func TestLoginForm(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env, nil, nil)

	w := httptest.NewRecorder()
	h.LoginForm(w, newRequest(http.MethodGet, "/login", locale.EN, "", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="username"`)

	env.loginEditor(false)
	w = httptest.NewRecorder()
	h.LoginForm(w, newRequest(http.MethodGet, "/login", locale.EN, "", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	events := &fakeEvents{}
	lp := middleware.NewLoginProtection(middleware.LoginProtectionConfig{})
	h := newAuthHandler(env, lp, events)

	w := httptest.NewRecorder()
	h.Login(w, loginRequest(" director ", "secret"))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.True(t, env.session.loggedIn)
	assert.Equal(t, "director", env.session.username)
	assert.Equal(t, []string{"Editor logged in"}, events.messages())
	assert.Equal(t, model.EventCategoryAuth, events.events[0].Category)
	assert.Contains(t, events.events[0].Metadata, `"username":"director"`)
}

func TestLogin_MissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env, nil, nil)

	w := httptest.NewRecorder()
	h.Login(w, loginRequest("director", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username and password are required.")
	assert.Equal(t, 0, env.session.logins)
}

func TestLogin_InvalidCredentialsLockOut(t *testing.T) {
	env := newTestEnv(t)
	env.session.loginErr = fmt.Errorf("login director: %w", backend.ErrUnauthorized)
	events := &fakeEvents{}
	lp := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		MaxFailedAttempts: 2,
		LockoutDuration:   time.Minute,
	})
	h := newAuthHandler(env, lp, events)

	w := httptest.NewRecorder()
	h.Login(w, loginRequest("director", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password.")
	assert.Contains(t, w.Body.String(), `value="director"`)

	w = httptest.NewRecorder()
	h.Login(w, loginRequest("director", "wrong"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many login attempts.")

	// Locked accounts are refused before the backend is asked.
	env.session.loginErr = nil
	w = httptest.NewRecorder()
	h.Login(w, loginRequest("director", "secret"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.session.loggedIn)

	assert.Contains(t, events.messages(), "Account locked due to failed attempts")
	assert.Contains(t, events.messages(), "Login attempt on locked account")
}

func TestLogin_BackendUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.session.loginErr = errBackend
	lp := middleware.NewLoginProtection(middleware.LoginProtectionConfig{})
	h := newAuthHandler(env, lp, nil)

	w := httptest.NewRecorder()
	h.Login(w, loginRequest("director", "secret"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "The login service is unavailable.")
	assert.Equal(t, lp.RemainingAttempts("director"), middleware.DefaultLoginProtectionConfig().MaxFailedAttempts,
		"outages do not count as failed attempts")
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.loginEditor(true)
	events := &fakeEvents{}
	h := newAuthHandler(env, nil, events)

	r := newRequest(http.MethodPost, "/logout", locale.EN, "/contacts", nil)
	w := httptest.NewRecorder()
	h.Logout(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/contacts", w.Header().Get("Location"))
	assert.Equal(t, 1, env.session.logouts)
	assert.False(t, env.session.loggedIn)
	assert.Equal(t, []string{"Editor logged out"}, events.messages())
}

func TestLogin_AuditEventPersisted(t *testing.T) {
	env := newTestEnv(t)
	queries := store.New(testutil.TestDB(t))
	h := newAuthHandler(env, nil, queries)

	r := loginRequest("director", "secret")
	r.RemoteAddr = "192.0.2.10:51000"
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	h.Login(httptest.NewRecorder(), r)

	events, err := queries.ListEvents(context.Background(), store.ListEventsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventLevelInfo, events[0].Level)
	assert.Equal(t, model.EventCategoryAuth, events[0].Category)
	assert.Contains(t, events[0].Metadata, `"ip":"192.0.2.10"`)
	assert.Contains(t, events[0].Metadata, `"browser":"Chrome"`)
	assert.Contains(t, events[0].Metadata, `"os":"Windows"`)
}
