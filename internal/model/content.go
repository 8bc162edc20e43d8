// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// SectionType identifies how a content section payload is interpreted.
type SectionType string

// Section types accepted by the content store.
const (
	SectionText     SectionType = "text"
	SectionImage    SectionType = "image"
	SectionList     SectionType = "list"
	SectionTable    SectionType = "table"
	SectionStaff    SectionType = "staff"
	SectionRichText SectionType = "rich_text"
)

// Valid reports whether t is one of the known section types.
func (t SectionType) Valid() bool {
	switch t {
	case SectionText, SectionImage, SectionList, SectionTable, SectionStaff, SectionRichText:
		return true
	}
	return false
}

// ContentSection is one editable unit of site content.
// ID is the locale-qualified field id, e.g. "hero-title_bg".
// Content is whatever the store returned: a string for text and image
// sections, a JSON-encoded or native array for lists, opaque otherwise.
type ContentSection struct {
	ID      string      `json:"id"`
	Type    SectionType `json:"type"`
	Content any         `json:"content"`
	Label   string      `json:"label,omitempty"`
	PageID  string      `json:"page_id,omitempty"`
}

// HasContent reports whether the section carries a payload that overrides defaults.
func (s ContentSection) HasContent() bool {
	return s.Content != nil
}

// ImageMapping associates an image field with the picture shown for it.
type ImageMapping struct {
	FieldID  string `json:"field_id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	AltText  string `json:"alt_text,omitempty"`
}
