// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render turns page templates and editable fields into HTML.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/util"
)

// Banner yields the one-shot error message shown to a logged-in editor.
type Banner interface {
	PopError(ctx context.Context) string
}

// Renderer handles template rendering with caching.
type Renderer struct {
	templates map[string]*template.Template
	banner    Banner
	logger    *slog.Logger
	now       func() time.Time
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS fs.FS
	Banner      Banner
	Logger      *slog.Logger
}

// New creates a Renderer with parsed templates.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		banner:    cfg.Banner,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}
	return r, nil
}

// parseTemplates pairs every page with the base layout and all partials.
func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := templateFiles(templatesFS, "partials")
	if err != nil {
		return fmt.Errorf("getting partials: %w", err)
	}

	pages, err := templateFiles(templatesFS, "pages")
	if err != nil {
		return fmt.Errorf("getting pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	for _, tmplPath := range pages {
		name := "pages/" + strings.TrimSuffix(path.Base(tmplPath), ".html")

		files := []string{"layouts/base.html"}
		files = append(files, partials...)
		files = append(files, tmplPath)

		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	r.logger.Debug("templates parsed", "count", len(r.templates))
	return nil
}

func templateFiles(templatesFS fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(templatesFS, dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,
		"richText":       RichText,
		"truncate":       truncate,
		"slug":           util.Slugify,
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
	}
}

func formatDate(l locale.Locale, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if l == locale.EN {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("02.01.2006")
}

func formatDateTime(l locale.Locale, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if l == locale.EN {
		return t.Format("Jan 2, 2006 3:04 PM")
	}
	return t.Format("02.01.2006 15:04")
}

// truncate shortens s to length runes.
func truncate(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	runes := []rune(s)
	return string(runes[:length]) + "..."
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title       string
	Locale      locale.Locale
	OtherLocale locale.Locale
	Path        string
	LoggedIn    bool
	Editing     bool
	Username    string
	Error       string
	View        *View
	Data        any
	CurrentYear int
}

// Has reports whether a page template is registered.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render renders a page with status 200.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, name string, data TemplateData) error {
	return r.RenderStatus(w, req, http.StatusOK, name, data)
}

// RenderStatus renders a page into a buffer first so template errors never
// produce a half-written response.
func (r *Renderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	ctx := req.Context()
	data.CurrentYear = r.now().Year()
	if data.Locale == "" {
		data.Locale = locale.FromContext(ctx)
	}
	data.OtherLocale = data.Locale.Other()
	if data.Path == "" {
		data.Path = req.URL.Path
	}
	if data.Error == "" && data.LoggedIn && r.banner != nil {
		data.Error = r.banner.PopError(ctx)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}
