// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package field

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

// ErrIndex is returned for a staging position outside the list.
var ErrIndex = errors.New("field: list index out of range")

// List is an editable array of strings. Edits go to a staging copy that
// is saved or discarded as a whole.
type List struct {
	ID       string
	Label    string
	Defaults Defaults[[]string]

	content Content
	session Session

	mu      sync.Mutex
	state   State
	staging []string
}

// NewList creates a list field.
func NewList(id, label string, defaults Defaults[[]string], c Content, s Session) *List {
	return &List{
		ID:       id,
		Label:    label,
		Defaults: defaults,
		content:  c,
		session:  s,
		state:    Viewing,
	}
}

// State returns the current state.
func (f *List) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Viewing && !f.content.Loaded() {
		return Resolving
	}
	return f.state
}

// Value returns the items to display: the staging copy while editing,
// else the stored list or the default.
func (f *List) Value(ctx context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Editing || f.state == Saving {
		return slices.Clone(f.staging)
	}
	return f.resolved(ctx)
}

func (f *List) resolved(ctx context.Context) []string {
	l := locale.FromContext(ctx)
	return content.List(f.content, content.QualifiedID(f.ID, l), f.Defaults.For(l))
}

// Edit opens a staging copy of the current items.
func (f *List) Edit(ctx context.Context) error {
	if !canEdit(ctx, f.session) {
		return ErrNotEditable
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Saving:
		return ErrBusy
	case Editing:
		return nil
	}
	f.staging = f.resolved(ctx)
	if f.staging == nil {
		f.staging = []string{}
	}
	f.state = Editing
	return nil
}

// Click enters editing like Edit and reports how to treat the event.
func (f *List) Click(ctx context.Context, t Target) ClickResult {
	if !canEdit(ctx, f.session) {
		return ClickResult{}
	}
	f.mu.Lock()
	idle := f.state != Editing && f.state != Saving
	f.mu.Unlock()
	return clickResult(idle && f.Edit(ctx) == nil, t)
}

func (f *List) stage(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Editing {
		return ErrNotEditing
	}
	return fn()
}

// Add appends an item to the staging copy.
func (f *List) Add(item string) error {
	return f.stage(func() error {
		f.staging = append(f.staging, item)
		return nil
	})
}

// Remove deletes the item at i.
func (f *List) Remove(i int) error {
	return f.stage(func() error {
		if i < 0 || i >= len(f.staging) {
			return ErrIndex
		}
		f.staging = slices.Delete(f.staging, i, i+1)
		return nil
	})
}

// Set replaces the item at i.
func (f *List) Set(i int, item string) error {
	return f.stage(func() error {
		if i < 0 || i >= len(f.staging) {
			return ErrIndex
		}
		f.staging[i] = item
		return nil
	})
}

// Move shifts the item at from to position to.
func (f *List) Move(from, to int) error {
	return f.stage(func() error {
		n := len(f.staging)
		if from < 0 || from >= n || to < 0 || to >= n {
			return ErrIndex
		}
		item := f.staging[from]
		f.staging = slices.Delete(f.staging, from, from+1)
		f.staging = slices.Insert(f.staging, to, item)
		return nil
	})
}

// Replace swaps the whole staging copy, as submitted by an edit form.
func (f *List) Replace(items []string) error {
	return f.stage(func() error {
		f.staging = append([]string{}, items...)
		return nil
	})
}

// Save commits the staging copy as one list section. On failure the
// staging copy is dropped and the stored value is shown again.
func (f *List) Save(ctx context.Context) error {
	f.mu.Lock()
	if f.state != Editing {
		f.mu.Unlock()
		return ErrNotEditing
	}
	items := slices.Clone(f.staging)
	f.state = Saving
	f.mu.Unlock()

	id, pageID := target(ctx, f.ID)
	err := f.content.Update(ctx, id, items, model.SectionList, f.Label, pageID)

	f.mu.Lock()
	f.state = Viewing
	f.staging = nil
	f.mu.Unlock()
	return err
}

// Cancel discards the staging copy.
func (f *List) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Editing {
		f.state = Viewing
		f.staging = nil
	}
}

// EditModeChanged discards staging when edit mode is switched off.
func (f *List) EditModeChanged(editing bool) {
	if !editing {
		f.Cancel()
	}
}
