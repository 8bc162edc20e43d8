// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package field

import (
	"context"
	"fmt"
	"sync"

	"github.com/olegiv/schoolsite/internal/model"
	"github.com/olegiv/schoolsite/internal/util"
)

// ImageResolver looks up and registers image mappings by field id.
type ImageResolver interface {
	Resolve(ctx context.Context, fieldID string) (model.ImageMapping, error)
	Register(ctx context.Context, m model.ImageMapping) error
}

// Image is an editable picture. Its source comes from the image mapping
// of its id, not from content sections.
type Image struct {
	ID         string
	DefaultSrc string
	DefaultAlt string

	images  ImageResolver
	session Session

	mu       sync.Mutex
	state    State
	current  *model.ImageMapping
	resolved bool
}

// NewImage creates an image field.
func NewImage(id, defaultSrc, defaultAlt string, images ImageResolver, s Session) *Image {
	return &Image{
		ID:         id,
		DefaultSrc: defaultSrc,
		DefaultAlt: defaultAlt,
		images:     images,
		session:    s,
		state:      Viewing,
	}
}

// State returns Resolving until the first lookup has settled.
func (f *Image) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Viewing && !f.resolved {
		return Resolving
	}
	return f.state
}

// Src returns the picture to show and its alt text. Lookup failures and
// missing mappings yield the defaults.
func (f *Image) Src(ctx context.Context) (src, alt string) {
	f.mu.Lock()
	if f.current != nil {
		m := *f.current
		f.mu.Unlock()
		return m.URL, f.altOr(m.AltText)
	}
	f.mu.Unlock()

	m, err := f.images.Resolve(ctx, f.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = true
	if err != nil || m.URL == "" {
		return f.DefaultSrc, f.DefaultAlt
	}
	f.current = &m
	return m.URL, f.altOr(m.AltText)
}

func (f *Image) altOr(alt string) string {
	if alt == "" {
		return f.DefaultAlt
	}
	return alt
}

// Edit opens the URL entry form.
func (f *Image) Edit(ctx context.Context) error {
	if !canEdit(ctx, f.session) {
		return ErrNotEditable
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Saving {
		return ErrBusy
	}
	f.state = Editing
	return nil
}

// Click opens the form and reports how to treat the event.
func (f *Image) Click(ctx context.Context, t Target) ClickResult {
	if !canEdit(ctx, f.session) {
		return ClickResult{}
	}
	f.mu.Lock()
	idle := f.state == Viewing
	f.mu.Unlock()
	return clickResult(idle && f.Edit(ctx) == nil, t)
}

// Submit registers rawURL for the field and shows it at once. The
// filename is the last segment of the URL path.
func (f *Image) Submit(ctx context.Context, rawURL, alt string) error {
	if err := util.ValidateImageURL(rawURL); err != nil {
		return err
	}
	filename, err := util.FilenameFromURL(rawURL)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.state != Editing {
		f.mu.Unlock()
		return ErrNotEditing
	}
	f.state = Saving
	f.mu.Unlock()

	m := model.ImageMapping{FieldID: f.ID, Filename: filename, URL: rawURL, AltText: alt}
	err = f.images.Register(ctx, m)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Viewing
	if err != nil {
		return fmt.Errorf("saving image %s: %w", f.ID, err)
	}
	f.current = &m
	f.resolved = true
	return nil
}

// Cancel closes the form.
func (f *Image) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Editing {
		f.state = Viewing
	}
}

// EditModeChanged closes the form when edit mode is switched off.
func (f *Image) EditModeChanged(editing bool) {
	if !editing {
		f.Cancel()
	}
}
