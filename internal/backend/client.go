// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backend is the HTTP client for the school content API.
// The API owns content sections, image mappings, staff, news, events and
// editor authentication; this package only consumes it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

// Client configuration defaults.
const (
	DefaultTimeout = 10 * time.Second
	MaxErrorBody   = 4 * 1024
	UserAgent      = "schoolsite/1.0"
)

// Sentinel errors returned by Client methods. Use errors.Is to match.
var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrNotFound     = errors.New("backend: not found")
)

// APIError describes a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// Is maps auth and lookup statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the content API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a client for the API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("backend: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend: unsupported URL scheme %q", base.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{baseURL: base, http: httpClient}, nil
}

// Sections returns every stored content section.
func (c *Client) Sections(ctx context.Context) ([]model.ContentSection, error) {
	var sections []model.ContentSection
	if err := c.do(ctx, http.MethodGet, "/api/content", nil, nil, &sections); err != nil {
		return nil, fmt.Errorf("fetching sections: %w", err)
	}
	return sections, nil
}

// UpsertSection creates or replaces one section.
func (c *Client) UpsertSection(ctx context.Context, section model.ContentSection) error {
	p := "/api/content/" + url.PathEscape(section.ID)
	if err := c.do(ctx, http.MethodPut, p, nil, section, nil); err != nil {
		return fmt.Errorf("saving section %s: %w", section.ID, err)
	}
	return nil
}

// PageSections returns the sections attached to a page in one language.
func (c *Client) PageSections(ctx context.Context, pageID string, l locale.Locale) ([]model.ContentSection, error) {
	p := "/api/content/page/" + url.PathEscape(pageID)
	q := url.Values{"lang": {l.String()}}
	var sections []model.ContentSection
	if err := c.do(ctx, http.MethodGet, p, q, nil, &sections); err != nil {
		return nil, fmt.Errorf("fetching page %s sections: %w", pageID, err)
	}
	return sections, nil
}

// ImageMapping returns the image registered for a field.
func (c *Client) ImageMapping(ctx context.Context, fieldID string) (model.ImageMapping, error) {
	var m model.ImageMapping
	if err := c.do(ctx, http.MethodGet, "/api/images/"+url.PathEscape(fieldID), nil, nil, &m); err != nil {
		return model.ImageMapping{}, fmt.Errorf("fetching image %s: %w", fieldID, err)
	}
	if m.FieldID == "" {
		m.FieldID = fieldID
	}
	return m, nil
}

// SetImageMapping registers the image shown for a field.
func (c *Client) SetImageMapping(ctx context.Context, m model.ImageMapping) error {
	if err := c.do(ctx, http.MethodPut, "/api/images/"+url.PathEscape(m.FieldID), nil, m, nil); err != nil {
		return fmt.Errorf("saving image %s: %w", m.FieldID, err)
	}
	return nil
}

// Probe performs the cheap availability check. Callers bound it with a
// short deadline on ctx.
func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges editor credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, loginRequest{Username: username, Password: password}, &resp); err != nil {
		return "", fmt.Errorf("logging in: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("logging in: %w", ErrUnauthorized)
	}
	return resp.Token, nil
}

// Logout invalidates the token carried by ctx.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Staff returns every staff member, active or not.
func (c *Client) Staff(ctx context.Context) ([]model.StaffMember, error) {
	var members []model.StaffMember
	if err := c.do(ctx, http.MethodGet, "/api/staff", nil, nil, &members); err != nil {
		return nil, fmt.Errorf("fetching staff: %w", err)
	}
	return members, nil
}

// News returns published news in one language.
func (c *Client) News(ctx context.Context, l locale.Locale) ([]model.NewsItem, error) {
	var items []model.NewsItem
	if err := c.do(ctx, http.MethodGet, "/api/news", url.Values{"lang": {l.String()}}, nil, &items); err != nil {
		return nil, fmt.Errorf("fetching news: %w", err)
	}
	return items, nil
}

// Events returns upcoming events in one language.
func (c *Client) Events(ctx context.Context, l locale.Locale) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	if err := c.do(ctx, http.MethodGet, "/api/events", url.Values{"lang": {l.String()}}, nil, &events); err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	return events, nil
}

// do sends one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, p string, query url.Values, in, out any) error {
	target := c.baseURL.String() + p
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// newAPIError reads a bounded error body; JSON {"error": "..."} is unwrapped.
func newAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBody))
	msg := strings.TrimSpace(string(data))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
