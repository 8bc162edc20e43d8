// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"context"
	"strings"
	"sync"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/field"
	"github.com/olegiv/schoolsite/internal/i18n"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

// PageBodySuffix names the rich text body of a dynamic page: the field id
// is the page id followed by this suffix.
const PageBodySuffix = "-body"

// FieldDef describes one editable field placed on the site's pages.
type FieldDef struct {
	ID    string
	Label string
	Type  model.SectionType
	// DefaultSrc is the built-in picture of image fields.
	DefaultSrc string
}

var fieldDefs = map[string]FieldDef{}

func def(id, label string, typ model.SectionType) {
	fieldDefs[id] = FieldDef{ID: id, Label: label, Type: typ}
}

func imageDef(id, label, src string) {
	fieldDefs[id] = FieldDef{ID: id, Label: label, Type: model.SectionImage, DefaultSrc: src}
}

func init() {
	def("hero-title", "Home: title", model.SectionText)
	def("hero-subtitle", "Home: subtitle", model.SectionText)
	def("about-title", "Home: about title", model.SectionText)
	def("about-text", "Home: about text", model.SectionRichText)
	def("subjects-title", "Home: subjects title", model.SectionText)
	def("subjects", "Home: subjects", model.SectionList)
	def("activities-title", "Home: activities title", model.SectionText)
	def("activities", "Home: activities", model.SectionList)
	imageDef("hero-image", "Home: picture", "/static/img/hero.svg")

	def("contacts-title", "Contacts: title", model.SectionText)
	def("contacts-address", "Contacts: address", model.SectionText)
	def("contacts-phone", "Contacts: phone", model.SectionText)
	def("contacts-email", "Contacts: email", model.SectionText)
	def("contacts-hours", "Contacts: office hours", model.SectionText)

	def("gallery-title", "Gallery: title", model.SectionText)
	def("gallery-intro", "Gallery: introduction", model.SectionText)
	imageDef("gallery-image-1", "Gallery: picture 1", "/static/img/gallery-1.svg")
	imageDef("gallery-image-2", "Gallery: picture 2", "/static/img/gallery-2.svg")
	imageDef("gallery-image-3", "Gallery: picture 3", "/static/img/gallery-3.svg")

	def("info-access-title", "Access to information: title", model.SectionText)
	def("info-access-text", "Access to information: text", model.SectionRichText)

	def("useful-links-title", "Useful links: title", model.SectionText)
	def("useful-links", "Useful links: list", model.SectionList)
}

// LookupField returns the definition of an editable field. Dynamic page
// bodies ("school-history-body") are recognized by their suffix.
func LookupField(id string) (FieldDef, bool) {
	if d, ok := fieldDefs[id]; ok {
		return d, true
	}
	if page, ok := strings.CutSuffix(id, PageBodySuffix); ok && content.IsDynamicPage(page) {
		return FieldDef{ID: id, Label: page + ": body", Type: model.SectionRichText}, true
	}
	return FieldDef{}, false
}

// Fields builds the state machines of editable fields for one request.
// The machines live only as long as the request, so Fields also tracks
// which fields are being saved across all requests.
type Fields struct {
	content field.Content
	images  field.ImageResolver
	session field.Session
	catalog *i18n.Catalog

	mu     sync.Mutex
	saving map[string]struct{}
}

// NewFields creates a field builder.
func NewFields(c field.Content, images field.ImageResolver, s field.Session, catalog *i18n.Catalog) *Fields {
	return &Fields{content: c, images: images, session: s, catalog: catalog, saving: map[string]struct{}{}}
}

// Claim reserves a stored field id (qualified for text and lists, bare for
// images) for one edit. While it is held, other claims of the same id
// fail with field.ErrBusy. The returned func releases it.
func (f *Fields) Claim(key string) (release func(), err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.saving[key]; busy {
		return nil, field.ErrBusy
	}
	f.saving[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.saving, key)
			f.mu.Unlock()
		})
	}, nil
}

// Text returns the text or rich text field for id.
func (f *Fields) Text(id string) (*field.Text, bool) {
	d, ok := LookupField(id)
	if !ok || (d.Type != model.SectionText && d.Type != model.SectionRichText) {
		return nil, false
	}
	t := field.NewText(d.ID, d.Label, f.catalog.Defaults(d.ID), f.content, f.session)
	t.Type = d.Type
	return t, true
}

// List returns the list field for id.
func (f *Fields) List(id string) (*field.List, bool) {
	d, ok := LookupField(id)
	if !ok || d.Type != model.SectionList {
		return nil, false
	}
	return field.NewList(d.ID, d.Label, f.catalog.ListDefaults(d.ID), f.content, f.session), true
}

// Image returns the image field for id. The default alt text follows the
// ctx locale.
func (f *Fields) Image(ctx context.Context, id string) (*field.Image, bool) {
	d, ok := LookupField(id)
	if !ok || d.Type != model.SectionImage {
		return nil, false
	}
	alt := f.catalog.T(locale.FromContext(ctx), d.ID)
	return field.NewImage(d.ID, d.DefaultSrc, alt, f.images, f.session), true
}

// Editable reports whether edit controls should be shown under ctx.
func (f *Fields) Editable(ctx context.Context) bool {
	return f.session != nil && f.session.IsLoggedIn(ctx) && f.session.IsEditing(ctx)
}

// Catalog returns the dictionaries the fields take their defaults from.
func (f *Fields) Catalog() *i18n.Catalog {
	return f.catalog
}
