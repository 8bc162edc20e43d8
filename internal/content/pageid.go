// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"strings"

	"github.com/olegiv/schoolsite/internal/locale"
)

// PageUnknown is attributed to edits made outside the known routes.
const PageUnknown = "unknown"

var exactPages = map[string]string{
	"/":             "home",
	"/contacts":     "contacts",
	"/gallery":      "gallery",
	"/info-access":  "info-access",
	"/useful-links": "useful-links",
}

var prefixPages = []string{"school", "documents", "projects"}

// QualifiedID returns the store key of a field in one language.
func QualifiedID(fieldID string, l locale.Locale) string {
	return fieldID + "_" + l.String()
}

// PageIDFromPath maps a route path to the page id attached to writes.
func PageIDFromPath(path string) string {
	if id, ok := exactPages[path]; ok {
		return id
	}

	for _, prefix := range prefixPages {
		rest, ok := strings.CutPrefix(path, "/"+prefix+"/")
		if !ok {
			continue
		}
		rest = strings.TrimRight(rest, "/")
		if rest == "" {
			return PageUnknown
		}
		return prefix + "-" + rest[strings.LastIndex(rest, "/")+1:]
	}

	return PageUnknown
}

type pathKey struct{}

// WithPath returns a copy of ctx carrying the route path of the page being edited.
func WithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, pathKey{}, path)
}

// PathFromContext returns the route path stored by WithPath.
func PathFromContext(ctx context.Context) string {
	p, _ := ctx.Value(pathKey{}).(string)
	return p
}

// IsDynamicPage reports whether pageID names a slug page under one of the
// prefix routes, such as "school-history".
func IsDynamicPage(pageID string) bool {
	for _, prefix := range prefixPages {
		if rest, ok := strings.CutPrefix(pageID, prefix+"-"); ok && rest != "" {
			return true
		}
	}
	return false
}
