// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"

	"github.com/olegiv/schoolsite/internal/locale"
)

// LanguageCookieName is the cookie name for language preference.
const LanguageCookieName = "school_lang"

// LanguageCookieMaxAge keeps the preference for one year.
const LanguageCookieMaxAge = 365 * 24 * 60 * 60

// Language creates middleware that detects and sets the current locale.
// Priority order:
// 1. Query parameter ?lang=XX (explicit switch, updates cookie)
// 2. Cookie preference
// 3. Accept-Language header
// 4. Default locale
func Language(next http.Handler) http.Handler {
	return LanguageWithDefault(locale.Default)(next)
}

// LanguageWithDefault is Language with a configured fallback locale.
func LanguageWithDefault(def locale.Locale) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := DetectLanguage(w, r, def)
			next.ServeHTTP(w, r.WithContext(locale.WithLocale(r.Context(), l)))
		})
	}
}

// DetectLanguage picks the request locale, falling back to def. An
// explicit ?lang= switch is persisted in the cookie.
func DetectLanguage(w http.ResponseWriter, r *http.Request, def locale.Locale) locale.Locale {
	if q := r.URL.Query().Get("lang"); q != "" {
		if l, ok := locale.Parse(q); ok {
			SetLanguageCookie(w, l)
			return l
		}
	}

	if cookie, err := r.Cookie(LanguageCookieName); err == nil {
		if l, ok := locale.Parse(cookie.Value); ok {
			return l
		}
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if l, ok := locale.Match(accept); ok {
			return l
		}
	}

	return def
}

// SetLanguageCookie sets the language preference cookie.
func SetLanguageCookie(w http.ResponseWriter, l locale.Locale) {
	http.SetCookie(w, &http.Cookie{
		Name:     LanguageCookieName,
		Value:    l.String(),
		Path:     "/",
		MaxAge:   LanguageCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
