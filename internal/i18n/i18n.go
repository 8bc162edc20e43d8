// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n provides the static bg/en dictionaries: UI strings and the
// built-in defaults shown by editable fields when no content is stored.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/olegiv/schoolsite/internal/locale"
)

//go:embed locales
var localesFS embed.FS

// Message represents a single translatable message. List defaults carry
// their entries in Items.
type Message struct {
	ID          string   `json:"id"`
	Message     string   `json:"message"`
	Translation string   `json:"translation"`
	Items       []string `json:"items,omitempty"`
}

// MessageFile represents the structure of a messages JSON file.
type MessageFile struct {
	Language string    `json:"language"`
	Messages []Message `json:"messages"`
}

// Catalog holds all translations for the supported locales.
// It is read-only after New returns.
type Catalog struct {
	translations map[locale.Locale]map[string]string
	lists        map[locale.Locale]map[string][]string
	logger       *slog.Logger
}

// New loads every supported locale from the embedded files.
func New(logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		translations: make(map[locale.Locale]map[string]string, len(locale.Supported)),
		lists:        make(map[locale.Locale]map[string][]string, len(locale.Supported)),
		logger:       logger,
	}

	for _, l := range locale.Supported {
		if err := c.loadLocale(l); err != nil {
			return nil, fmt.Errorf("loading locale %s: %w", l, err)
		}
	}

	logger.Info("i18n initialized", "languages", locale.Supported)
	return c, nil
}

func readMessageFile(l locale.Locale) (MessageFile, error) {
	path := fmt.Sprintf("locales/%s/messages.json", l)
	data, err := localesFS.ReadFile(path)
	if err != nil {
		return MessageFile{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var msgFile MessageFile
	if err := json.Unmarshal(data, &msgFile); err != nil {
		return MessageFile{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return msgFile, nil
}

func (c *Catalog) loadLocale(l locale.Locale) error {
	msgFile, err := readMessageFile(l)
	if err != nil {
		return err
	}

	texts := make(map[string]string, len(msgFile.Messages))
	lists := make(map[string][]string)
	for _, msg := range msgFile.Messages {
		if msg.Items != nil {
			lists[msg.ID] = msg.Items
			continue
		}
		texts[msg.ID] = msg.Translation
	}
	c.translations[l] = texts
	c.lists[l] = lists

	c.logger.Debug("loaded translations", "language", l, "texts", len(texts), "lists", len(lists))
	return nil
}

// T translates key into l, falling back to the default locale and then to
// the key itself. Args are applied with fmt.Sprintf.
func (c *Catalog) T(l locale.Locale, key string, args ...any) string {
	translation, ok := c.translations[l][key]
	if !ok && l != locale.Default {
		translation, ok = c.translations[locale.Default][key]
		if ok {
			c.logger.Debug("missing translation, using default", "key", key, "lang", l)
		}
	}
	if !ok {
		return key
	}

	if len(args) > 0 {
		return fmt.Sprintf(translation, args...)
	}
	return translation
}

// Defaults returns the per-locale built-in text for a field id.
// Locales without an entry are absent from the map.
func (c *Catalog) Defaults(fieldID string) map[locale.Locale]string {
	out := make(map[locale.Locale]string, len(c.translations))
	for l, texts := range c.translations {
		if v, ok := texts[fieldID]; ok {
			out[l] = v
		}
	}
	return out
}

// ListDefaults returns the per-locale built-in entries for a list field.
// Each slice is a copy.
func (c *Catalog) ListDefaults(fieldID string) map[locale.Locale][]string {
	out := make(map[locale.Locale][]string, len(c.lists))
	for l, lists := range c.lists {
		if items, ok := lists[fieldID]; ok {
			out[l] = append([]string(nil), items...)
		}
	}
	return out
}

// Count returns the number of text and list entries loaded for l.
func (c *Catalog) Count(l locale.Locale) int {
	return len(c.translations[l]) + len(c.lists[l])
}

// Missing returns keys present in some locale but absent from l, sorted.
func (c *Catalog) Missing(l locale.Locale) []string {
	seen := make(map[string]bool)
	for other := range c.translations {
		if other == l {
			continue
		}
		for k := range c.translations[other] {
			if _, ok := c.translations[l][k]; !ok {
				seen[k] = true
			}
		}
		for k := range c.lists[other] {
			if _, ok := c.lists[l][k]; !ok {
				seen[k] = true
			}
		}
	}

	missing := make([]string, 0, len(seen))
	for k := range seen {
		missing = append(missing, k)
	}
	sort.Strings(missing)
	return missing
}
