// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"context"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

// View exposes the editable fields of one request to templates.
type View struct {
	ctx      context.Context
	fields   *Fields
	Locale   locale.Locale
	Editable bool
}

// NewView binds fields to the request context.
func NewView(ctx context.Context, fields *Fields) *View {
	return &View{
		ctx:      ctx,
		fields:   fields,
		Locale:   locale.FromContext(ctx),
		Editable: fields.Editable(ctx),
	}
}

// T translates a UI string into the request locale.
func (v *View) T(key string, args ...any) string {
	return v.fields.Catalog().T(v.Locale, key, args...)
}

// TextView is a text or rich text field ready for display.
type TextView struct {
	ID          string
	QualifiedID string
	Type        model.SectionType
	Value       string
	State       string
	Editable    bool
}

// HTML renders rich text fields from markdown; plain text is escaped.
func (t TextView) HTML() template.HTML {
	if t.Type == model.SectionRichText {
		return RichText(t.Value)
	}
	return template.HTML(template.HTMLEscapeString(t.Value))
}

// Empty reports whether there is nothing to show.
func (t TextView) Empty() bool {
	return t.Value == ""
}

// Text returns the field id as it should be displayed now. Unknown ids
// render as empty text so a template typo never breaks a page.
func (v *View) Text(id string) TextView {
	f, ok := v.fields.Text(id)
	if !ok {
		return TextView{ID: id, Type: model.SectionText}
	}
	return TextView{
		ID:          f.ID,
		QualifiedID: content.QualifiedID(f.ID, v.Locale),
		Type:        f.Type,
		Value:       f.Value(v.ctx),
		State:       f.State().String(),
		Editable:    v.Editable,
	}
}

// PageBody returns the rich text body of a dynamic page.
func (v *View) PageBody(pageID string) TextView {
	return v.Text(pageID + PageBodySuffix)
}

// ListView is a list field ready for display.
type ListView struct {
	ID          string
	QualifiedID string
	Items       []string
	State       string
	Editable    bool
}

// JSON encodes the items for the inline list editor.
func (l ListView) JSON() string {
	data, err := json.Marshal(l.Items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// List returns the list field id.
func (v *View) List(id string) ListView {
	f, ok := v.fields.List(id)
	if !ok {
		return ListView{ID: id}
	}
	return ListView{
		ID:          f.ID,
		QualifiedID: content.QualifiedID(f.ID, v.Locale),
		Items:       f.Value(v.ctx),
		State:       f.State().String(),
		Editable:    v.Editable,
	}
}

// ImageView is an image field ready for display.
type ImageView struct {
	ID       string
	Src      string
	Alt      string
	State    string
	Editable bool
}

// Image returns the image field id, resolved through its mapping.
func (v *View) Image(id string) ImageView {
	f, ok := v.fields.Image(v.ctx, id)
	if !ok {
		return ImageView{ID: id}
	}
	src, alt := f.Src(v.ctx)
	return ImageView{
		ID:       f.ID,
		Src:      src,
		Alt:      alt,
		State:    f.State().String(),
		Editable: v.Editable,
	}
}

// Section renders one section fetched for a dynamic page.
func (v *View) Section(s model.ContentSection) template.HTML {
	switch s.Type {
	case model.SectionRichText:
		if text, ok := s.Content.(string); ok {
			return RichText(text)
		}
	case model.SectionText:
		if text, ok := s.Content.(string); ok {
			return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
		}
	case model.SectionList:
		items := content.ParseList(s.Content).Or(nil)
		if len(items) == 0 {
			return ""
		}
		var b strings.Builder
		b.WriteString("<ul>")
		for _, item := range items {
			b.WriteString("<li>" + template.HTMLEscapeString(item) + "</li>")
		}
		b.WriteString("</ul>")
		return template.HTML(b.String())
	}
	return ""
}
