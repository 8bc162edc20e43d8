// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers of the school site.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/schoolsite/internal/feed"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
	"github.com/olegiv/schoolsite/internal/render"
	"github.com/olegiv/schoolsite/internal/util"
)

// Editor is the session state a page needs to decide on edit controls.
type Editor interface {
	IsLoggedIn(ctx context.Context) bool
	IsEditing(ctx context.Context) bool
	Username(ctx context.Context) string
	Token(ctx context.Context) string
}

// PageSource lists the sections attached to a dynamic page.
type PageSource interface {
	ByPage(ctx context.Context, pageID string, l locale.Locale) []model.ContentSection
}

// StaffSource lists staff members.
type StaffSource interface {
	Public(ctx context.Context) []model.StaffMember
	All(ctx context.Context, token string) ([]model.StaffMember, error)
}

// StaffImages resolves staff portraits.
type StaffImages interface {
	Load(ctx context.Context, members []model.StaffMember) map[string]string
}

// FeedSource provides news and calendar entries.
type FeedSource interface {
	News(ctx context.Context, l locale.Locale) []model.NewsItem
	Events(ctx context.Context, l locale.Locale) []model.CalendarEvent
}

// SiteConfig holds the dependencies of SiteHandler.
type SiteConfig struct {
	Renderer *render.Renderer
	Fields   *render.Fields
	Session  Editor
	Pages    PageSource
	Staff    StaffSource
	Images   StaffImages
	Feed     FeedSource
	Status   FeedStatus
	Logger   *slog.Logger
}

// SiteHandler serves the public pages.
type SiteHandler struct {
	renderer *render.Renderer
	fields   *render.Fields
	session  Editor
	pages    PageSource
	staff    StaffSource
	images   StaffImages
	feed     FeedSource
	status   FeedStatus
	logger   *slog.Logger
}

// NewSiteHandler creates a SiteHandler.
func NewSiteHandler(cfg SiteConfig) *SiteHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteHandler{
		renderer: cfg.Renderer,
		fields:   cfg.Fields,
		session:  cfg.Session,
		pages:    cfg.Pages,
		staff:    cfg.Staff,
		images:   cfg.Images,
		feed:     cfg.Feed,
		status:   cfg.Status,
		logger:   logger,
	}
}

// Static returns a handler for a page made only of editable fields.
func (h *SiteHandler) Static(template, titleKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, template, titleKey, nil)
	}
}

// pageData is passed to pages/page.
type pageData struct {
	PageID   string
	Sections []model.ContentSection
}

// Dynamic returns a handler for the slug pages under prefix
// ("/school/{slug}" and alike).
func (h *SiteHandler) Dynamic(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if !util.IsValidSlug(slug) {
			h.NotFound(w, r)
			return
		}

		pageID := prefix + "-" + slug
		data := pageData{PageID: pageID}
		if h.pages != nil {
			data.Sections = h.pages.ByPage(r.Context(), pageID, locale.FromContext(r.Context()))
		}
		h.render(w, r, http.StatusOK, "pages/page", "nav."+prefix, data)
	}
}

// staffData is passed to pages/staff.
type staffData struct {
	Members []model.StaffMember
	Images  map[string]string
}

// Staff renders the staff directory. Editors see inactive members too.
func (h *SiteHandler) Staff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var members []model.StaffMember
	if h.session != nil && h.session.IsLoggedIn(ctx) {
		all, err := h.staff.All(ctx, h.session.Token(ctx))
		if err != nil {
			h.logger.Warn("loading full staff list failed, showing public list", "error", err)
			members = h.staff.Public(ctx)
		} else {
			members = all
		}
	} else {
		members = h.staff.Public(ctx)
	}

	data := staffData{Members: members}
	if h.images != nil {
		data.Images = h.images.Load(ctx, members)
	}
	h.render(w, r, http.StatusOK, "pages/staff", "nav.staff", data)
}

// newsData is passed to pages/news.
type newsData struct {
	News    []model.NewsItem
	Offline bool
}

// eventsData is passed to pages/events.
type eventsData struct {
	Events  []model.CalendarEvent
	Offline bool
}

// News renders the news list, from the archive when the backend is down.
func (h *SiteHandler) News(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := newsData{News: h.feed.News(ctx, locale.FromContext(ctx)), Offline: h.offline()}
	h.render(w, r, http.StatusOK, "pages/news", "nav.news", data)
}

// Events renders the school calendar.
func (h *SiteHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := eventsData{Events: h.feed.Events(ctx, locale.FromContext(ctx)), Offline: h.offline()}
	h.render(w, r, http.StatusOK, "pages/events", "nav.events", data)
}

func (h *SiteHandler) offline() bool {
	if h.status == nil {
		return false
	}
	s := h.status.Status()
	return s.Checked && !s.Available
}

// errorData is passed to pages/error.
type errorData struct {
	Status  int
	Message string
}

// NotFound renders the 404 page.
func (h *SiteHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	msg := h.fields.Catalog().T(locale.FromContext(r.Context()), "error.not_found")
	h.render(w, r, http.StatusNotFound, "pages/error", "error.not_found", errorData{
		Status:  http.StatusNotFound,
		Message: msg,
	})
}

// render fills the session part of the template data and renders name.
func (h *SiteHandler) render(w http.ResponseWriter, r *http.Request, status int, name, titleKey string, data any) {
	ctx := r.Context()
	view := render.NewView(ctx, h.fields)

	td := render.TemplateData{
		Title: view.T(titleKey),
		View:  view,
		Data:  data,
	}
	if h.session != nil && h.session.IsLoggedIn(ctx) {
		td.LoggedIn = true
		td.Editing = h.session.IsEditing(ctx)
		td.Username = h.session.Username(ctx)
	}

	if err := h.renderer.RenderStatus(w, r, status, name, td); err != nil {
		logAndInternalError(w, "failed to render page", "template", name, "error", err)
	}
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, logMsg string, args ...any) {
	slog.Error(logMsg, args...)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

var _ FeedStatus = (*feed.Availability)(nil)
