// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// MaxImageURLLength is the longest image URL accepted from editors.
const MaxImageURLLength = 2048

// SanitizeFilename returns the last path element of name, rejecting
// names that resolve to a directory.
func SanitizeFilename(name string) (string, error) {
	safe := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if safe == "." || safe == ".." || safe == "" || safe == "/" {
		return "", fmt.Errorf("invalid filename: %q", name)
	}
	return safe, nil
}

// FilenameFromURL derives the stored filename of an image from the last
// segment of its URL path. Query and fragment are ignored.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid image URL: %w", err)
	}
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		p = u.Path
	}
	return SanitizeFilename(p)
}

// ValidateImageURL checks that an editor-supplied image URL is an
// absolute http(s) URL or a site-relative path.
func ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("image URL is required")
	}
	if len(rawURL) > MaxImageURLLength {
		return fmt.Errorf("image URL exceeds %d characters", MaxImageURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid image URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return errors.New("image URL must include a host")
		}
	case "":
		if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(rawURL, "//") {
			return errors.New("relative image URL must start with a single /")
		}
	default:
		return fmt.Errorf("unsupported image URL scheme %q", u.Scheme)
	}
	return nil
}
