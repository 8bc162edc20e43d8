// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"encoding/json"
	"strings"
)

// Getter resolves a stored payload or falls back to a default.
type Getter interface {
	Get(id string, def any) any
}

// Resolve returns the stored payload for id when it has type T, else def.
func Resolve[T any](g Getter, id string, def T) T {
	if v, ok := g.Get(id, nil).(T); ok {
		return v
	}
	return def
}

// String resolves a text payload.
func String(g Getter, id, def string) string {
	return Resolve(g, id, def)
}

// List resolves a list payload, falling back to def on absence or bad shape.
func List(g Getter, id string, def []string) []string {
	return ParseList(g.Get(id, nil)).Or(def)
}

// ListResult is the outcome of coercing a stored list payload.
// OK is false when the payload must be replaced by a default.
type ListResult struct {
	Items []string
	OK    bool
}

// Or returns the parsed items, or a copy of def for a fallback result.
func (r ListResult) Or(def []string) []string {
	if r.OK {
		return r.Items
	}
	return append([]string(nil), def...)
}

// ParseList accepts a native array or a JSON-encoded array of strings.
// Anything else, including arrays holding non-strings, is a fallback.
func ParseList(payload any) ListResult {
	switch v := payload.(type) {
	case []string:
		return ListResult{Items: append([]string{}, v...), OK: true}
	case []any:
		return fromAny(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if !strings.HasPrefix(trimmed, "[") {
			return ListResult{}
		}
		var decoded []any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil || decoded == nil {
			return ListResult{}
		}
		return fromAny(decoded)
	}
	return ListResult{}
}

func fromAny(values []any) ListResult {
	items := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return ListResult{}
		}
		items = append(items, s)
	}
	return ListResult{Items: items, OK: true}
}
