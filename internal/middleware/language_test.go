// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/schoolsite/internal/locale"
)

func TestLanguage(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		cookie     string
		accept     string
		want       locale.Locale
		wantCookie bool
	}{
		{"default", "/", "", "", locale.BG, false},
		{"query wins", "/?lang=en", "bg", "bg", locale.EN, true},
		{"query is case insensitive", "/?lang=EN", "", "", locale.EN, true},
		{"invalid query falls through to cookie", "/?lang=de", "en", "", locale.EN, false},
		{"cookie over header", "/", "en", "bg-BG", locale.EN, false},
		{"invalid cookie falls through to header", "/", "fr", "en-US,en;q=0.9", locale.EN, false},
		{"accept language", "/contacts", "", "bg-BG,bg;q=0.9,en;q=0.5", locale.BG, false},
		{"unsupported header", "/", "", "ja-JP", locale.BG, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got locale.Locale
			handler := Language(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = locale.FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LanguageCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got != tt.want {
				t.Errorf("locale = %q, want %q", got, tt.want)
			}

			var set *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == LanguageCookieName {
					set = c
				}
			}
			if tt.wantCookie != (set != nil) {
				t.Fatalf("cookie set = %v, want %v", set != nil, tt.wantCookie)
			}
			if set != nil {
				if set.Value != tt.want.String() {
					t.Errorf("cookie value = %q, want %q", set.Value, tt.want)
				}
				if set.MaxAge != LanguageCookieMaxAge {
					t.Errorf("cookie MaxAge = %d, want one year", set.MaxAge)
				}
			}
		})
	}
}

func TestLanguageWithDefault(t *testing.T) {
	var got locale.Locale
	handler := LanguageWithDefault(locale.EN)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = locale.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ja-JP")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != locale.EN {
		t.Errorf("locale = %q, want en", got)
	}
}
