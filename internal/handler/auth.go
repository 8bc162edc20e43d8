// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/schoolsite/internal/backend"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/middleware"
	"github.com/olegiv/schoolsite/internal/model"
	"github.com/olegiv/schoolsite/internal/render"
	"github.com/olegiv/schoolsite/internal/store"
)

// EventRecorder stores audit events. *store.Queries implements it.
type EventRecorder interface {
	CreateEvent(ctx context.Context, arg store.CreateEventParams) (model.Event, error)
}

// LoginSession signs editors in and out.
type LoginSession interface {
	IsLoggedIn(ctx context.Context) bool
	Username(ctx context.Context) string
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
}

// AuthHandler handles the editor login routes.
type AuthHandler struct {
	renderer        *render.Renderer
	fields          *render.Fields
	session         LoginSession
	loginProtection *middleware.LoginProtection
	events          EventRecorder
	logger          *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. lp and events may be nil.
func NewAuthHandler(renderer *render.Renderer, fields *render.Fields, s LoginSession, lp *middleware.LoginProtection, events EventRecorder, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		renderer:        renderer,
		fields:          fields,
		session:         s,
		loginProtection: lp,
		events:          events,
		logger:          logger,
	}
}

// loginData is passed to pages/login.
type loginData struct {
	Message  string
	Username string
}

// LoginForm renders the login page. Logged-in editors go back home.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.session.IsLoggedIn(r.Context()) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginData{})
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, loginData{Message: h.t(ctx, "auth.required")})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		h.renderLogin(w, r, http.StatusBadRequest, loginData{Message: h.t(ctx, "auth.required"), Username: username})
		return
	}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(username); locked {
			h.audit(r, model.EventLevelWarning, "Login attempt on locked account", username)
			h.renderLogin(w, r, http.StatusTooManyRequests, loginData{
				Message:  h.t(ctx, "auth.too_many", seconds(remaining)),
				Username: username,
			})
			return
		}
	}

	err := h.session.Login(ctx, username, password)
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrUnauthorized):
		h.audit(r, model.EventLevelWarning, "Login failed: invalid credentials", username)
		msg := h.t(ctx, "auth.invalid")
		status := http.StatusUnauthorized
		if h.loginProtection != nil {
			if locked, lockDuration := h.loginProtection.RecordFailedAttempt(username); locked {
				h.audit(r, model.EventLevelWarning, "Account locked due to failed attempts", username)
				msg = h.t(ctx, "auth.too_many", seconds(lockDuration))
				status = http.StatusTooManyRequests
			}
		}
		h.renderLogin(w, r, status, loginData{Message: msg, Username: username})
		return
	default:
		h.logger.Error("login failed", "category", model.EventCategoryAuth, "error", err)
		h.renderLogin(w, r, http.StatusBadGateway, loginData{Message: h.t(ctx, "auth.unavailable"), Username: username})
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(username)
	}
	h.audit(r, model.EventLevelInfo, "Editor logged in", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout ends the editor session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := h.session.Username(ctx)

	if err := h.session.Logout(ctx); err != nil {
		h.logger.Error("logout failed", "category", model.EventCategoryAuth, "error", err)
	}
	if username != "" {
		h.audit(r, model.EventLevelInfo, "Editor logged out", username)
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginData) {
	view := render.NewView(r.Context(), h.fields)
	td := render.TemplateData{
		Title: view.T("auth.login"),
		View:  view,
		Data:  data,
	}
	if err := h.renderer.RenderStatus(w, r, status, "pages/login", td); err != nil {
		logAndInternalError(w, "failed to render login page", "error", err)
	}
}

func (h *AuthHandler) t(ctx context.Context, key string, args ...any) string {
	return h.fields.Catalog().T(locale.FromContext(ctx), key, args...)
}

// audit records an auth event. Failures are logged only.
func (h *AuthHandler) audit(r *http.Request, level, message, username string) {
	if h.events == nil {
		return
	}
	ua := useragent.Parse(r.UserAgent())
	metadata, _ := json.Marshal(map[string]string{
		"username": username,
		"ip":       middleware.GetClientIP(r),
		"url":      r.URL.Path,
		"browser":  ua.Name,
		"os":       ua.OS,
	})
	_, err := h.events.CreateEvent(r.Context(), store.CreateEventParams{
		Level:     level,
		Category:  model.EventCategoryAuth,
		Message:   message,
		Metadata:  string(metadata),
		CreatedAt: time.Now(),
	})
	if err != nil {
		h.logger.Debug("recording auth event failed", "error", err)
	}
}

func seconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
