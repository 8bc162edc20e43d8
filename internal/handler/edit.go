// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/olegiv/schoolsite/internal/backend"
	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/field"
	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
	"github.com/olegiv/schoolsite/internal/render"
)

// Text edit actions sent by the inline editor.
const (
	ActionBlur       = "blur"
	ActionEnter      = "enter"
	ActionShiftEnter = "shift-enter"
	ActionEscape     = "escape"
)

// EditSession is the session state edit requests read and change.
type EditSession interface {
	SetEditing(ctx context.Context, on bool) error
	SetError(ctx context.Context, msg string)
	ClearError(ctx context.Context)
}

// Reloader reloads all site content.
type Reloader interface {
	Load(ctx context.Context) error
}

// EditHandler applies inline edits by driving the field state machines.
type EditHandler struct {
	fields  *render.Fields
	session EditSession
	content Reloader
	logger  *slog.Logger
}

// NewEditHandler creates an EditHandler.
func NewEditHandler(fields *render.Fields, s EditSession, content Reloader, logger *slog.Logger) *EditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EditHandler{fields: fields, session: s, content: content, logger: logger}
}

type textEditRequest struct {
	ID     string `json:"id"`
	Value  string `json:"value"`
	Action string `json:"action"`
}

// Text handles POST /edit/text. The field enters editing, takes the new
// value and commits on blur or Enter. Escape and Shift+Enter leave the
// stored value untouched.
func (h *EditHandler) Text(w http.ResponseWriter, r *http.Request) {
	var req textEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}

	f, ok := h.fields.Text(req.ID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown field")
		return
	}

	ctx := r.Context()
	release, err := h.fields.Claim(content.QualifiedID(req.ID, locale.FromContext(ctx)))
	if err != nil {
		h.rejectEdit(w, err)
		return
	}
	defer release()

	if res := f.Click(ctx, field.Target{}); !res.Entered {
		writeJSONError(w, http.StatusForbidden, "editing is not allowed")
		return
	}

	if err := f.Input(req.Value); err != nil {
		writeJSONFailure(w, http.StatusConflict, err.Error(), f.Value(ctx))
		return
	}

	switch req.Action {
	case ActionBlur, "":
		err = f.Blur(ctx)
	case ActionEnter:
		err = f.KeyDown(ctx, field.KeyEnter, false)
	case ActionShiftEnter, ActionEscape:
		f.Cancel()
		writeJSONSuccess(w, map[string]any{"value": f.Value(ctx), "saved": false})
		return
	default:
		f.Cancel()
		writeJSONError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		h.saveFailed(w, r, req.ID, err, f.Value(ctx))
		return
	}
	h.saved(ctx, req.ID, f.Type)
	writeJSONSuccess(w, map[string]any{"value": f.Value(ctx), "saved": true})
}

// listOp is one staged change of a list edit.
type listOp struct {
	Op    string `json:"op"`
	Item  string `json:"item,omitempty"`
	Index int    `json:"index,omitempty"`
	To    int    `json:"to,omitempty"`
}

type listEditRequest struct {
	ID    string   `json:"id"`
	Items []string `json:"items,omitempty"`
	Ops   []listOp `json:"ops,omitempty"`
}

// List handles POST /edit/list. The request carries either the complete
// new item list (an explicit empty list clears it) or a non-empty sequence
// of operations on the stored one; the result is saved as one section.
func (h *EditHandler) List(w http.ResponseWriter, r *http.Request) {
	var req listEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if (req.Items == nil) == (len(req.Ops) == 0) {
		writeJSONError(w, http.StatusBadRequest, "expected either items or ops")
		return
	}

	f, ok := h.fields.List(req.ID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown field")
		return
	}

	ctx := r.Context()
	release, err := h.fields.Claim(content.QualifiedID(req.ID, locale.FromContext(ctx)))
	if err != nil {
		h.rejectEdit(w, err)
		return
	}
	defer release()

	if err := f.Edit(ctx); err != nil {
		h.rejectEdit(w, err)
		return
	}

	if err := applyListEdit(f, req); err != nil {
		f.Cancel()
		writeJSONFailure(w, http.StatusBadRequest, err.Error(), f.Value(ctx))
		return
	}

	if err := f.Save(ctx); err != nil {
		h.saveFailed(w, r, req.ID, err, f.Value(ctx))
		return
	}
	h.saved(ctx, req.ID, model.SectionList)
	writeJSONSuccess(w, map[string]any{"value": f.Value(ctx)})
}

func applyListEdit(f *field.List, req listEditRequest) error {
	if len(req.Ops) == 0 {
		return f.Replace(req.Items)
	}
	for _, op := range req.Ops {
		var err error
		switch op.Op {
		case "add":
			err = f.Add(op.Item)
		case "remove":
			err = f.Remove(op.Index)
		case "set":
			err = f.Set(op.Index, op.Item)
		case "move":
			err = f.Move(op.Index, op.To)
		default:
			err = errors.New("unknown list operation " + strconv.Quote(op.Op))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type imageEditRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Image handles POST /edit/image: it registers a new picture URL for the
// field and responds with what the field shows now.
func (h *EditHandler) Image(w http.ResponseWriter, r *http.Request) {
	var req imageEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx := r.Context()
	f, ok := h.fields.Image(ctx, req.ID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown field")
		return
	}

	release, err := h.fields.Claim(req.ID)
	if err != nil {
		h.rejectEdit(w, err)
		return
	}
	defer release()

	if err := f.Edit(ctx); err != nil {
		h.rejectEdit(w, err)
		return
	}

	err = f.Submit(ctx, strings.TrimSpace(req.URL), strings.TrimSpace(req.Alt))
	switch {
	case errors.Is(err, field.ErrNotEditing):
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	case err != nil && f.State() == field.Editing:
		// Rejected before saving: the URL did not validate.
		f.Cancel()
		writeJSONFailure(w, http.StatusBadRequest, err.Error(), imageValue(ctx, f))
		return
	case err != nil:
		h.saveFailed(w, r, req.ID, err, imageValue(ctx, f))
		return
	}

	h.saved(ctx, req.ID, model.SectionImage)
	writeJSONSuccess(w, map[string]any{"value": imageValue(ctx, f)})
}

func imageValue(ctx context.Context, f *field.Image) map[string]string {
	src, alt := f.Src(ctx)
	return map[string]string{"src": src, "alt": alt}
}

// Mode handles POST /edit/mode. Forms post "editing=true|false"; JSON
// clients send {"editing": bool}.
func (h *EditHandler) Mode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var on bool
	if wantsJSONBody(r) {
		var req struct {
			Editing bool `json:"editing"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request")
			return
		}
		on = req.Editing
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		v, err := strconv.ParseBool(r.FormValue("editing"))
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		on = v
	}

	if err := h.session.SetEditing(ctx, on); err != nil {
		h.logger.Warn("edit mode change rejected", "category", model.EventCategoryAuth, "error", err)
		if wantsJSONBody(r) {
			writeJSONError(w, http.StatusUnauthorized, "login required")
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if !on {
		h.session.ClearError(ctx)
	}

	if wantsJSONBody(r) {
		writeJSONSuccess(w, map[string]any{"editing": on})
		return
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

// Reload handles POST /edit/reload: the whole content cache is fetched
// again. Failures reach the editor through the session banner.
func (h *EditHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.content.Load(ctx)
	if err != nil {
		h.logger.Warn("content reload failed", "category", model.EventCategoryContent, "error", err)
	} else {
		h.logger.Info("content reloaded by editor", "category", model.EventCategoryContent)
	}

	if wantsJSONBody(r) {
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, h.message(ctx, "error.load_failed"))
			return
		}
		writeJSONSuccess(w, nil)
		return
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func (h *EditHandler) rejectEdit(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, field.ErrNotEditable):
		writeJSONError(w, http.StatusForbidden, "editing is not allowed")
	case errors.Is(err, field.ErrBusy):
		writeJSONError(w, http.StatusConflict, "save in progress")
	default:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	}
}

// saveFailed reports a failed write. The response carries the value the
// field falls back to, and the editor sees the message on the next page.
func (h *EditHandler) saveFailed(w http.ResponseWriter, r *http.Request, id string, err error, value any) {
	ctx := r.Context()
	msg := h.message(ctx, "error.save_failed")
	h.session.SetError(ctx, msg)

	h.logger.Warn("field save failed",
		"category", model.EventCategoryContent,
		"edit_id", uuid.NewString(),
		"field_id", id,
		"page_id", content.PageIDFromPath(content.PathFromContext(ctx)),
		"lang", locale.FromContext(ctx),
		"error", err,
	)

	status := http.StatusBadGateway
	if errors.Is(err, backend.ErrUnauthorized) {
		status = http.StatusUnauthorized
	}
	writeJSONFailure(w, status, msg, value)
}

func (h *EditHandler) saved(ctx context.Context, id string, typ model.SectionType) {
	h.logger.Info("field saved",
		"category", model.EventCategoryContent,
		"edit_id", uuid.NewString(),
		"field_id", id,
		"type", typ,
		"page_id", content.PageIDFromPath(content.PathFromContext(ctx)),
		"lang", locale.FromContext(ctx),
	)
}

func (h *EditHandler) message(ctx context.Context, key string) string {
	return h.fields.Catalog().T(locale.FromContext(ctx), key)
}

// wantsJSONBody reports whether the request body is JSON.
func wantsJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// returnPath is the local page a form post came from.
func returnPath(r *http.Request) string {
	if p := content.PathFromContext(r.Context()); strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") {
		return p
	}
	return "/"
}
