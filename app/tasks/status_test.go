package tasks

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFileLoadMissing(t *testing.T) {
	f := NewStatusFile(filepath.Join(t.TempDir(), "status.json"))

	statuses, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestStatusFileSaveMerges(t *testing.T) {
	f := NewStatusFile(filepath.Join(t.TempDir(), "state", "status.json"))
	first := time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	_, err := f.Save([]Status{
		{Name: "b", Succeeded: true, ItemCount: 4, CheckedAt: first},
		{Name: "a", Succeeded: true, ItemCount: 2, CheckedAt: first},
	})
	require.NoError(t, err)

	saved, err := f.Save([]Status{
		{Name: "b", Succeeded: false, Error: "fetch failed", CheckedAt: second},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, "a", saved[0].Name, "feeds missing from a run keep their entry")
	assert.True(t, saved[0].Succeeded)

	assert.Equal(t, "b", saved[1].Name)
	assert.False(t, saved[1].Succeeded)
	assert.Equal(t, "fetch failed", saved[1].Error)
	require.NotNil(t, saved[1].LastSuccess)
	assert.True(t, saved[1].LastSuccess.Equal(first))

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestStatusFileSaveReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	f := NewStatusFile(path)
	_, err := f.Load()
	assert.Error(t, err)

	saved, err := f.Save([]Status{{Name: "a", Succeeded: true, CheckedAt: time.Now()}})
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestEmptyResultError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &EmptyResultError{Feed: "nieuws", Sources: 2, Failures: []error{cause}}

	assert.Equal(t, "feed nieuws produced no items from 2 source(s): connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
