// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package locale defines the site languages and carries the active one
// through request contexts.
package locale

import (
	"context"
	"strings"

	"golang.org/x/text/language"
)

// Locale is a site language code.
type Locale string

// Supported site languages.
const (
	BG Locale = "bg"
	EN Locale = "en"
)

// Default is used when no preference is known.
const Default = BG

// Supported lists the site languages in matcher order.
var Supported = []Locale{BG, EN}

var matcher = language.NewMatcher([]language.Tag{language.Bulgarian, language.English})

type contextKey struct{}

// Parse normalizes s and reports whether it names a supported locale.
func Parse(s string) (Locale, bool) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range Supported {
		if l == supported {
			return l, true
		}
	}
	return "", false
}

// String implements fmt.Stringer.
func (l Locale) String() string {
	return string(l)
}

// Other returns the alternate site language, used for the language switcher.
func (l Locale) Other() Locale {
	if l == EN {
		return BG
	}
	return EN
}

// Match picks the best supported locale for an Accept-Language header.
func Match(acceptLanguage string) (Locale, bool) {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "", false
	}

	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No || idx < 0 || idx >= len(Supported) {
		return "", false
	}
	return Supported[idx], true
}

// WithLocale returns a copy of ctx carrying l.
func WithLocale(ctx context.Context, l Locale) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the locale stored in ctx, or Default.
func FromContext(ctx context.Context) Locale {
	if l, ok := ctx.Value(contextKey{}).(Locale); ok && l != "" {
		return l
	}
	return Default
}
