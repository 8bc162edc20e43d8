// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/schoolsite/internal/locale"
	"github.com/olegiv/schoolsite/internal/model"
)

var subjectDefaults = Defaults[[]string]{
	locale.BG: {"Математика", "Музика"},
	locale.EN: {"Maths", "Music"},
}

func TestList_DisplayFallsBackOnMalformed(t *testing.T) {
	c, _ := newContent(t, model.ContentSection{ID: "subjects_bg", Type: model.SectionList, Content: "{oops"})
	f := NewList("subjects", "", subjectDefaults, c, &fakeSession{})

	assert.Equal(t, []string{"Математика", "Музика"}, f.Value(ctxFor(locale.BG, "/")))
	assert.Equal(t, []string{"Maths", "Music"}, f.Value(ctxFor(locale.EN, "/")))
}

func TestList_StagingAndSave(t *testing.T) {
	c, store := newContent(t)
	f := NewList("subjects", "Subjects", subjectDefaults, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.EN, "/projects/stem")

	require.NoError(t, f.Edit(ctx))
	require.NoError(t, f.Add("Art"))
	require.NoError(t, f.Set(0, "Mathematics"))
	require.NoError(t, f.Move(2, 0))
	require.NoError(t, f.Remove(2))
	assert.Equal(t, []string{"Art", "Mathematics"}, f.Value(ctx))

	// Nothing is written until Save.
	assert.Empty(t, store.saved)

	require.NoError(t, f.Save(ctx))
	require.Len(t, store.saved, 1)
	assert.Equal(t, "subjects_en", store.saved[0].ID)
	assert.Equal(t, model.SectionList, store.saved[0].Type)
	assert.Equal(t, `["Art","Mathematics"]`, store.saved[0].Content)
	assert.Equal(t, "projects-stem", store.saved[0].PageID)

	assert.Equal(t, []string{"Art", "Mathematics"}, f.Value(ctx))
	assert.Equal(t, []string{"Математика", "Музика"}, f.Value(ctxFor(locale.BG, "/")))
}

func TestList_CancelDiscardsStaging(t *testing.T) {
	c, store := newContent(t, model.ContentSection{ID: "subjects_bg", Content: []any{"A", "B"}})
	f := NewList("subjects", "", subjectDefaults, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.BG, "/")

	require.NoError(t, f.Edit(ctx))
	require.NoError(t, f.Replace([]string{"X"}))
	f.Cancel()

	assert.Equal(t, []string{"A", "B"}, f.Value(ctx))
	assert.Empty(t, store.saved)
}

func TestList_FailedSaveReverts(t *testing.T) {
	c, store := newContent(t, model.ContentSection{ID: "subjects_bg", Content: `["A"]`})
	f := NewList("subjects", "", subjectDefaults, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.BG, "/")

	require.NoError(t, f.Edit(ctx))
	_ = f.Add("B")
	store.failNext = true

	assert.ErrorIs(t, f.Save(ctx), errSave)
	assert.Equal(t, []string{"A"}, f.Value(ctx))
	assert.Equal(t, Viewing, f.State())
}

func TestList_Guards(t *testing.T) {
	c, _ := newContent(t)
	ctx := ctxFor(locale.BG, "/")

	anon := NewList("subjects", "", subjectDefaults, c, &fakeSession{})
	assert.ErrorIs(t, anon.Edit(ctx), ErrNotEditable)
	assert.ErrorIs(t, anon.Add("x"), ErrNotEditing)
	assert.ErrorIs(t, anon.Save(ctx), ErrNotEditing)

	f := NewList("subjects", "", subjectDefaults, c, &fakeSession{loggedIn: true, editing: true})
	require.NoError(t, f.Edit(ctx))
	assert.ErrorIs(t, f.Remove(5), ErrIndex)
	assert.ErrorIs(t, f.Set(-1, "x"), ErrIndex)
	assert.ErrorIs(t, f.Move(0, 9), ErrIndex)
}

func TestList_EditModeOff(t *testing.T) {
	c, _ := newContent(t)
	f := NewList("subjects", "", subjectDefaults, c, &fakeSession{loggedIn: true, editing: true})
	ctx := ctxFor(locale.BG, "/")

	require.True(t, f.Click(ctx, Target{}).Entered)
	_ = f.Add("extra")
	f.EditModeChanged(false)
	assert.Equal(t, []string{"Математика", "Музика"}, f.Value(ctx))
}
