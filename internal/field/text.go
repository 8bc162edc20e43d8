// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package field

import (
	"context"
	"sync"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

// Text is an inline-editable string field.
type Text struct {
	ID       string
	Label    string
	Type     model.SectionType // text or rich_text
	Defaults Defaults[string]

	content Content
	session Session

	mu    sync.Mutex
	state State
	draft string
}

// NewText creates a text field reading from c and gated by s.
func NewText(id, label string, defaults Defaults[string], c Content, s Session) *Text {
	return &Text{
		ID:       id,
		Label:    label,
		Type:     model.SectionText,
		Defaults: defaults,
		content:  c,
		session:  s,
		state:    Viewing,
	}
}

// State returns the current state; an idle field is Resolving until the
// cache has loaded.
func (f *Text) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Text) stateLocked() State {
	if f.state == Viewing && !f.content.Loaded() {
		return Resolving
	}
	return f.state
}

// Value returns the text to display under ctx's locale. While editing
// it is the draft.
func (f *Text) Value(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Editing || f.state == Saving {
		return f.draft
	}
	return f.resolved(ctx)
}

func (f *Text) resolved(ctx context.Context) string {
	l := locale.FromContext(ctx)
	return content.String(f.content, content.QualifiedID(f.ID, l), f.Defaults.For(l))
}

// Click enters edit mode when the session allows it.
func (f *Text) Click(ctx context.Context, t Target) ClickResult {
	if !canEdit(ctx, f.session) {
		return ClickResult{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Editing || f.state == Saving {
		return clickResult(false, t)
	}
	f.draft = f.resolved(ctx)
	f.state = Editing
	return clickResult(true, t)
}

// Input replaces the draft.
func (f *Text) Input(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Editing {
		return ErrNotEditing
	}
	f.draft = text
	return nil
}

// KeyDown commits on Enter without Shift and cancels on Escape.
// Other keys are ignored.
func (f *Text) KeyDown(ctx context.Context, key Key, shift bool) error {
	switch {
	case key == KeyEnter && !shift:
		return f.commit(ctx)
	case key == KeyEscape:
		f.Cancel()
	}
	return nil
}

// Blur commits a pending edit.
func (f *Text) Blur(ctx context.Context) error {
	return f.commit(ctx)
}

// Cancel discards the draft without any network call.
func (f *Text) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Editing {
		f.state = Viewing
		f.draft = ""
	}
}

// EditModeChanged discards an open draft when edit mode is switched off.
func (f *Text) EditModeChanged(editing bool) {
	if !editing {
		f.Cancel()
	}
}

// commit writes the draft through the cache. On failure the field shows
// the last resolved value again and the error is returned.
func (f *Text) commit(ctx context.Context) error {
	f.mu.Lock()
	if f.state != Editing {
		f.mu.Unlock()
		return nil
	}
	value := f.draft
	f.state = Saving
	f.mu.Unlock()

	id, pageID := target(ctx, f.ID)
	err := f.content.Update(ctx, id, value, f.Type, f.Label, pageID)

	f.mu.Lock()
	f.state = Viewing
	f.draft = ""
	f.mu.Unlock()
	return err
}
