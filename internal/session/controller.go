// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/schoolsite/internal/backend"
	"github.com/olegiv/schoolsite/internal/model"
)

// Session data keys.
const (
	keyToken    = "auth_token"
	keyUsername = "username"
	keyEditing  = "editing"
	keyError    = "error"
)

// ErrNotLoggedIn is returned by operations that need an editor session.
var ErrNotLoggedIn = errors.New("session: not logged in")

// Authenticator exchanges credentials for a backend token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context) error
}

// Controller reads and changes the editor state of the session in ctx.
// Reading never requires a session: without one the visitor is anonymous.
type Controller struct {
	sm     *scs.SessionManager
	auth   Authenticator
	logger *slog.Logger

	mu       sync.RWMutex
	onLogin  []func(ctx context.Context)
	onLogout []func(ctx context.Context, token string)
}

// NewController creates a controller over sm.
func NewController(sm *scs.SessionManager, auth Authenticator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{sm: sm, auth: auth, logger: logger}
}

// OnLogin registers fn to run after a successful login. ctx carries the
// new session and the backend token.
func (c *Controller) OnLogin(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onLogin = append(c.onLogin, fn)
	c.mu.Unlock()
}

// OnLogout registers fn to run when an editor logs out, before the
// token is forgotten.
func (c *Controller) OnLogout(fn func(ctx context.Context, token string)) {
	c.mu.Lock()
	c.onLogout = append(c.onLogout, fn)
	c.mu.Unlock()
}

// scs panics when ctx carries no session data: background jobs and
// requests outside LoadAndSave are treated as anonymous.
func (c *Controller) getString(ctx context.Context, key string) (v string) {
	defer func() {
		if recover() != nil {
			v = ""
		}
	}()
	return c.sm.GetString(ctx, key)
}

func (c *Controller) getBool(ctx context.Context, key string) (v bool) {
	defer func() {
		if recover() != nil {
			v = false
		}
	}()
	return c.sm.GetBool(ctx, key)
}

// Token returns the backend token, or "" for visitors.
func (c *Controller) Token(ctx context.Context) string {
	return c.getString(ctx, keyToken)
}

// Username returns the logged-in editor's name.
func (c *Controller) Username(ctx context.Context) string {
	return c.getString(ctx, keyUsername)
}

// IsLoggedIn reports whether the session holds a backend token.
func (c *Controller) IsLoggedIn(ctx context.Context) bool {
	return c.Token(ctx) != ""
}

// IsEditing reports whether edit mode is on. It is never true for
// visitors.
func (c *Controller) IsEditing(ctx context.Context) bool {
	return c.IsLoggedIn(ctx) && c.getBool(ctx, keyEditing)
}

// SetEditing turns edit mode on or off.
func (c *Controller) SetEditing(ctx context.Context, on bool) error {
	if !c.IsLoggedIn(ctx) {
		return ErrNotLoggedIn
	}
	c.sm.Put(ctx, keyEditing, on)
	return nil
}

// WithToken returns ctx carrying the session's backend token for
// outbound calls.
func (c *Controller) WithToken(ctx context.Context) context.Context {
	if token := c.Token(ctx); token != "" {
		return backend.WithToken(ctx, token)
	}
	return ctx
}

// Login authenticates against the backend and stores the token in a
// renewed session. Edit mode starts off.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	token, err := c.auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login %s: %w", username, err)
	}

	if err := c.sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session: %w", err)
	}
	c.sm.Put(ctx, keyToken, token)
	c.sm.Put(ctx, keyUsername, username)
	c.sm.Remove(ctx, keyEditing)
	c.sm.Remove(ctx, keyError)

	c.logger.Info("editor logged in", "category", model.EventCategoryAuth, "username", username)

	c.mu.RLock()
	hooks := append([]func(context.Context){}, c.onLogin...)
	c.mu.RUnlock()
	hookCtx := backend.WithToken(ctx, token)
	for _, fn := range hooks {
		fn(hookCtx)
	}
	return nil
}

// Logout ends the editor session. The backend call is best effort;
// local state is always cleared. Site content is left untouched.
func (c *Controller) Logout(ctx context.Context) error {
	token := c.Token(ctx)
	if token == "" {
		return nil
	}

	if err := c.auth.Logout(backend.WithToken(ctx, token)); err != nil {
		c.logger.Warn("backend logout failed", "category", model.EventCategoryAuth, "error", err)
	}

	c.mu.RLock()
	hooks := append([]func(context.Context, string){}, c.onLogout...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, token)
	}

	username := c.Username(ctx)
	c.sm.Remove(ctx, keyToken)
	c.sm.Remove(ctx, keyUsername)
	c.sm.Remove(ctx, keyEditing)
	c.sm.Remove(ctx, keyError)
	if err := c.sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session: %w", err)
	}

	c.logger.Info("editor logged out", "category", model.EventCategoryAuth, "username", username)
	return nil
}

// SetError records a message for the editor. Without a session it is
// dropped.
func (c *Controller) SetError(ctx context.Context, msg string) {
	defer func() { _ = recover() }()
	c.sm.Put(ctx, keyError, msg)
}

// Error returns the pending error message.
func (c *Controller) Error(ctx context.Context) string {
	return c.getString(ctx, keyError)
}

// PopError returns and clears the pending error message.
func (c *Controller) PopError(ctx context.Context) (msg string) {
	defer func() {
		if recover() != nil {
			msg = ""
		}
	}()
	return c.sm.PopString(ctx, keyError)
}

// ClearError drops the pending error message.
func (c *Controller) ClearError(ctx context.Context) {
	defer func() { _ = recover() }()
	c.sm.Remove(ctx, keyError)
}
