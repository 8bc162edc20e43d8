// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package field implements the view/edit state machines behind editable
// text, list and image fields. A field never writes another field's id.
package field

import (
	"context"
	"errors"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

// State of an editable field.
type State int

const (
	Resolving State = iota
	Viewing
	Editing
	Saving
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	}
	return "unknown"
}

// Key is a keyboard key relevant to inline editing.
type Key string

const (
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// Errors returned by field transitions.
var (
	ErrNotEditable = errors.New("field: editing is not allowed")
	ErrNotEditing  = errors.New("field: not in editing state")
	ErrBusy        = errors.New("field: save in progress")
)

// Target describes where a click landed.
type Target struct {
	InAnchor bool
}

// ClickResult tells the caller how to treat the click event.
type ClickResult struct {
	Entered         bool
	PreventDefault  bool
	StopPropagation bool
}

// Content is the cache a field reads from and writes through.
type Content interface {
	Loaded() bool
	Get(id string, def any) any
	Update(ctx context.Context, id string, payload any, typ model.SectionType, label, pageID string) error
}

// Session gates edit entry.
type Session interface {
	IsLoggedIn(ctx context.Context) bool
	IsEditing(ctx context.Context) bool
}

// Defaults holds the built-in value of a field per language.
type Defaults[T any] map[locale.Locale]T

// For returns the default for l, then for the site default language.
func (d Defaults[T]) For(l locale.Locale) T {
	if v, ok := d[l]; ok {
		return v
	}
	return d[locale.Default]
}

func canEdit(ctx context.Context, s Session) bool {
	return s != nil && s.IsLoggedIn(ctx) && s.IsEditing(ctx)
}

// target returns the qualified id and page of a commit made under ctx.
func target(ctx context.Context, fieldID string) (id, pageID string) {
	return content.QualifiedID(fieldID, locale.FromContext(ctx)),
		content.PageIDFromPath(content.PathFromContext(ctx))
}

func clickResult(entered bool, t Target) ClickResult {
	return ClickResult{
		Entered:         entered,
		PreventDefault:  t.InAnchor,
		StopPropagation: t.InAnchor,
	}
}
