// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package web embeds the page templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates holds layouts, partials and pages rooted at the templates directory.
var Templates = sub(templatesFS, "templates")

// Static holds the assets served under /static/.
var Static = sub(staticFS, "static")

func sub(fsys embed.FS, dir string) fs.FS {
	s, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return s
}
