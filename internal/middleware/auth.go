// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for locale detection,
// editor gating and request context handling.
package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/locale"
)

// PagePathHeader carries the page an inline edit was made on.
const PagePathHeader = "X-Page-Path"

// Editor is the part of the session controller the gating middleware needs.
type Editor interface {
	IsLoggedIn(ctx context.Context) bool
	WithToken(ctx context.Context) context.Context
}

// LocaleLoader starts loading content the first time a locale is
// requested. The returned channel reports the outcome.
type LocaleLoader interface {
	EnsureLocale(ctx context.Context, l locale.Locale) <-chan error
}

// RequestPath stores the page path in the request context so edits can
// derive their page id. Page requests use their own path; edit requests
// send the page in PagePathHeader, falling back to the Referer.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := pagePath(r)
		next.ServeHTTP(w, r.WithContext(content.WithPath(r.Context(), p)))
	})
}

func pagePath(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.Path
	}
	if p := r.Header.Get(PagePathHeader); isLocalPath(p) {
		return p
	}
	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && isLocalPath(u.Path) {
			return u.Path
		}
	}
	return r.URL.Path
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//")
}

// Content makes sure the content cache gets loaded for the request
// locale. It never waits for the load; fields show defaults until it lands.
func Content(loader LocaleLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			_ = loader.EnsureLocale(ctx, locale.FromContext(ctx))
			next.ServeHTTP(w, r)
		})
	}
}

// Token attaches the editor's backend token to the request context when
// a session is logged in.
func Token(editor Editor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(editor.WithToken(r.Context())))
		})
	}
}

// RequireEditor rejects requests without a logged-in session. JSON
// clients get 401; browsers are redirected to the login page.
func RequireEditor(editor Editor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !editor.IsLoggedIn(r.Context()) {
				if wantsJSON(r) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"success":false,"error":"login required"}`))
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
