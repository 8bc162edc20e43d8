// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"slices"

	"filippo.io/csrf/gorilla"

	"github.com/olegiv/schoolsite/internal/model"
)

// CSRFConfig configures cross-site request protection. The gorilla
// compatible API of filippo.io/csrf checks Fetch metadata and Origin,
// so the inline editor posts JSON without a form token.
type CSRFConfig struct {
	// AuthKey is the 32-byte session secret. Only the gorilla API needs it.
	AuthKey []byte

	// TrustedOrigins are host:port values allowed to post cross-origin.
	TrustedOrigins []string

	// ErrorHandler replaces the default rejection response.
	ErrorHandler http.Handler
}

// DefaultCSRFConfig trusts nothing extra in production. In development the
// listen address is trusted under its own name and as localhost and
// 127.0.0.1 on the same port, because editors open the site through any
// of them.
func DefaultCSRFConfig(authKey []byte, isDev bool, addr string) CSRFConfig {
	cfg := CSRFConfig{AuthKey: authKey}
	if !isDev {
		return cfg
	}

	port := "8080"
	if _, p, err := net.SplitHostPort(addr); err == nil && p != "" {
		port = p
	}
	for _, origin := range []string{net.JoinHostPort("localhost", port), net.JoinHostPort("127.0.0.1", port), addr} {
		if origin != "" && !slices.Contains(cfg.TrustedOrigins, origin) {
			cfg.TrustedOrigins = append(cfg.TrustedOrigins, origin)
		}
	}
	return cfg
}

// CSRF rejects cross-site state-changing requests.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	onFail := cfg.ErrorHandler
	if onFail == nil {
		onFail = http.HandlerFunc(rejectCrossSite)
	}
	opts := []csrf.Option{csrf.ErrorHandler(onFail)}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	return csrf.Protect(cfg.AuthKey, opts...)
}

// rejectCrossSite answers edit calls with the JSON envelope the editor
// script expects and everything else with plain text.
func rejectCrossSite(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("cross-site request rejected",
		"category", model.EventCategoryAuth,
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"error":"cross-site request rejected"}`))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}
