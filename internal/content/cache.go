// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content keeps the site-wide snapshot of editable content sections
// and writes edits back to the content API.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

// Catalog keys of the banners shown to logged-in editors when the content
// API fails.
const (
	MsgLoadFailed = "error.load_failed"
	MsgSaveFailed = "error.save_failed"
)

// Messages localizes banner keys for the request locale.
type Messages interface {
	T(l locale.Locale, key string, args ...any) string
}

// Option configures a Cache.
type Option func(*Cache)

// WithMessages translates editor banners. Without it the banner carries
// the catalog key.
func WithMessages(m Messages) Option {
	return func(c *Cache) { c.messages = m }
}

// Store is the remote side of the cache.
type Store interface {
	Sections(ctx context.Context) ([]model.ContentSection, error)
	UpsertSection(ctx context.Context, section model.ContentSection) error
	PageSections(ctx context.Context, pageID string, l locale.Locale) ([]model.ContentSection, error)
}

// Reporter receives failures that a logged-in editor can act on.
type Reporter interface {
	IsLoggedIn(ctx context.Context) bool
	SetError(ctx context.Context, msg string)
}

// snapshot is never mutated after publication.
type snapshot struct {
	sections map[string]model.ContentSection
}

// patch is a write-through update applied on top of loaded data.
type patch struct {
	section model.ContentSection
	seq     uint64
}

// Cache maps qualified content ids to the latest known section.
// Reads are lock-free lookups on an immutable snapshot; loads and patches
// publish a new snapshot.
type Cache struct {
	store    Store
	reporter Reporter
	messages Messages
	logger   *slog.Logger

	snap   atomic.Pointer[snapshot]
	loaded atomic.Bool
	clock  atomic.Uint64
	group  singleflight.Group

	mu        sync.Mutex
	committed uint64
	patches   map[string]patch
	locales   map[locale.Locale]bool
}

// NewCache creates an empty cache. reporter may be nil.
func NewCache(store Store, reporter Reporter, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		store:    store,
		reporter: reporter,
		logger:   logger,
		patches:  make(map[string]patch),
		locales:  make(map[locale.Locale]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(&snapshot{sections: map[string]model.ContentSection{}})
	return c
}

// Loaded reports whether at least one load has succeeded.
func (c *Cache) Loaded() bool {
	return c.loaded.Load()
}

// Load fetches every section and replaces the snapshot.
// Concurrent callers share one request, which runs detached from the
// caller's cancellation: a caller that gives up returns ctx.Err() while
// the fetch still commits for the others. Visitors never see the error;
// logged-in editors get a session message.
func (c *Cache) Load(ctx context.Context) error {
	select {
	case res := <-c.start(ctx):
		if res.Err != nil {
			c.report(ctx, MsgLoadFailed, res.Err)
			return res.Err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start joins the in-flight load or begins a new one.
func (c *Cache) start(ctx context.Context) <-chan singleflight.Result {
	detached := context.WithoutCancel(ctx)
	return c.group.DoChan("load", func() (any, error) {
		return nil, c.load(detached)
	})
}

func (c *Cache) load(ctx context.Context) error {
	start := c.clock.Add(1)

	sections, err := c.store.Sections(ctx)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	c.commit(start, sections)
	return nil
}

// commit publishes rows fetched by the load tagged start. A load that
// finishes after a newer one has committed is discarded; patches newer
// than start survive the replacement.
func (c *Cache) commit(start uint64, sections []model.ContentSection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if start < c.committed {
		c.logger.Debug("discarding stale content load", "load", start, "committed", c.committed)
		return false
	}

	next := make(map[string]model.ContentSection, len(sections)+len(c.patches))
	for _, s := range sections {
		if s.ID == "" {
			continue
		}
		next[s.ID] = s
	}
	for id, p := range c.patches {
		if p.seq > start {
			next[id] = p.section
		} else {
			delete(c.patches, id)
		}
	}

	c.snap.Store(&snapshot{sections: next})
	c.committed = start
	c.loaded.Store(true)
	c.logger.Debug("content loaded", "sections", len(next))
	return true
}

// EnsureLocale starts a load in the background the first time a locale is
// used and returns at once, so rendering never waits for the content API.
// The locale counts as used before the load finishes; a failed load is not
// retried here but by the next login, reload or content-reload run.
// The returned channel yields the load result. It yields nil at once for a
// locale that was already used.
func (c *Cache) EnsureLocale(ctx context.Context, l locale.Locale) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	seen := c.locales[l]
	c.locales[l] = true
	c.mu.Unlock()
	if seen {
		done <- nil
		close(done)
		return done
	}

	flight := c.start(ctx)
	go func() {
		defer close(done)
		res := <-flight
		if res.Err != nil {
			// The request that triggered the load is likely finished, so
			// its session cannot take a banner any more.
			c.logger.Warn("content load failed", "category", model.EventCategoryContent, "lang", l, "error", res.Err)
		}
		done <- res.Err
	}()
	return done
}

// Section returns the stored section for id.
func (c *Cache) Section(id string) (model.ContentSection, bool) {
	s, ok := c.snap.Load().sections[id]
	return s, ok
}

// Get returns the stored payload for id, or def when the id has no
// section or the section has no content. Presence, not difference, decides.
func (c *Cache) Get(id string, def any) any {
	s, ok := c.Section(id)
	if !ok || !s.HasContent() {
		return def
	}
	return s.Content
}

// Len returns the number of sections in the current snapshot.
func (c *Cache) Len() int {
	return len(c.snap.Load().sections)
}

// Update writes one section through to the store and, on success, replaces
// the cached entry with the transmitted value. Non-string payloads are
// JSON-encoded first.
func (c *Cache) Update(ctx context.Context, id string, payload any, typ model.SectionType, label, pageID string) error {
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}

	section := model.ContentSection{
		ID:      id,
		Type:    typ,
		Content: encoded,
		Label:   label,
		PageID:  pageID,
	}

	if err := c.store.UpsertSection(ctx, section); err != nil {
		err = fmt.Errorf("updating content %s: %w", id, err)
		c.report(ctx, MsgSaveFailed, err)
		return err
	}

	c.replace(section)
	return nil
}

// replace publishes a copy of the snapshot with one entry swapped.
func (c *Cache) replace(section model.ContentSection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.snap.Load().sections
	next := make(map[string]model.ContentSection, len(current)+1)
	for id, s := range current {
		next[id] = s
	}
	next[section.ID] = section

	c.patches[section.ID] = patch{section: section, seq: c.clock.Add(1)}
	c.snap.Store(&snapshot{sections: next})
}

// ByPage returns the sections of a page. It is not cached; failures
// yield an empty list because a page without content is a normal state.
func (c *Cache) ByPage(ctx context.Context, pageID string, l locale.Locale) []model.ContentSection {
	sections, err := c.store.PageSections(ctx, pageID, l)
	if err != nil {
		c.logger.Debug("page content unavailable", "page_id", pageID, "lang", l, "error", err)
		return []model.ContentSection{}
	}
	if sections == nil {
		return []model.ContentSection{}
	}
	return sections
}

// report logs err and forwards the localized banner to editors.
// Anonymous failures stay silent.
func (c *Cache) report(ctx context.Context, key string, err error) {
	if c.reporter == nil || !c.reporter.IsLoggedIn(ctx) {
		c.logger.Debug("content operation failed", "error", err)
		return
	}
	c.logger.Warn("content operation failed", "category", model.EventCategoryContent, "error", err)

	msg := key
	if c.messages != nil {
		msg = c.messages.T(locale.FromContext(ctx), key)
	}
	c.reporter.SetError(ctx, msg)
}

func encodePayload(payload any) (string, error) {
	if s, ok := payload.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
