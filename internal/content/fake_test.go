// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"errors"
	"sync"

	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

var errBackend = errors.New("backend unreachable")

// fakeStore is an in-memory content API.
type fakeStore struct {
	mu       sync.Mutex
	sections []model.ContentSection
	calls    int
	upserts  []model.ContentSection
	loadErr  error
	saveErr  error
	pageErr  error
	pages    map[string][]model.ContentSection

	// block, when set, is waited on inside Sections.
	block chan struct{}
}

func (f *fakeStore) Sections(ctx context.Context) ([]model.ContentSection, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	err := f.loadErr
	out := append([]model.ContentSection(nil), f.sections...)
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeStore) UpsertSection(_ context.Context, s model.ContentSection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.upserts = append(f.upserts, s)
	return nil
}

func (f *fakeStore) PageSections(_ context.Context, pageID string, l locale.Locale) ([]model.ContentSection, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.pages[pageID+"_"+l.String()], nil
}

func (f *fakeStore) loadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeReporter records session error messages.
type fakeReporter struct {
	loggedIn bool
	mu       sync.Mutex
	msgs     []string
}

func (r *fakeReporter) IsLoggedIn(context.Context) bool { return r.loggedIn }

func (r *fakeReporter) SetError(_ context.Context, msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}
