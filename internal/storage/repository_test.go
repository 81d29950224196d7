package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestRepository_LoadMissingFileIsEmpty(t *testing.T) {
	repo := NewRepository[widget](filepath.Join(t.TempDir(), "nope.json"))

	var dst widget
	ok, err := repo.Load(&dst)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, widget{}, dst)
}

func TestRepository_SaveThenLoadRoundTrips(t *testing.T) {
	repo := NewRepository[widget](filepath.Join(t.TempDir(), "nested", "widget.json"))

	want := widget{Name: "gizmo", Count: 7}
	require.NoError(t, repo.Save(want))

	var got widget
	ok, err := repo.Load(&got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRepository_SaveOverwritesPreviousContent(t *testing.T) {
	repo := NewRepository[widget](filepath.Join(t.TempDir(), "widget.json"))

	require.NoError(t, repo.Save(widget{Name: "first", Count: 1}))
	require.NoError(t, repo.Save(widget{Name: "second", Count: 2}))

	var got widget
	ok, err := repo.Load(&got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, widget{Name: "second", Count: 2}, got)
}

func TestRepository_RemoveMissingFileIsNotAnError(t *testing.T) {
	repo := NewRepository[widget](filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, repo.Remove())
}

func TestRepository_RemoveThenLoadIsEmpty(t *testing.T) {
	repo := NewRepository[widget](filepath.Join(t.TempDir(), "widget.json"))
	require.NoError(t, repo.Save(widget{Name: "gizmo", Count: 1}))
	require.NoError(t, repo.Remove())

	var got widget
	ok, err := repo.Load(&got)
	require.NoError(t, err)
	assert.False(t, ok)
}
