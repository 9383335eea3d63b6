package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SetGet(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Set("A1", "R1")
	require.NoError(t, err)

	tokens, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "A1", tokens.Access)
	assert.Equal(t, "R1", tokens.Refresh)
}

func TestFileStore_EmptyStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	tokens, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, tokens.Access)
	assert.Empty(t, tokens.Refresh)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewFileStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("A1", "R1"))

	// A fresh store over the same directory sees the same session.
	reopened, err := NewFileStore(tmpDir)
	require.NoError(t, err)

	tokens, err := reopened.Get()
	require.NoError(t, err)
	assert.Equal(t, "A1", tokens.Access)
	assert.Equal(t, "R1", tokens.Refresh)
}

func TestFileStore_SetAccessKeepsRefresh(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("A1", "R1"))

	err = store.SetAccess("A2")
	require.NoError(t, err)

	tokens, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "A2", tokens.Access)
	assert.Equal(t, "R1", tokens.Refresh)
}

func TestFileStore_Clear(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewFileStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("A1", "R1"))

	err = store.Clear()
	require.NoError(t, err)

	tokens, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, tokens.Access)
	assert.Empty(t, tokens.Refresh)

	_, err = os.Stat(filepath.Join(tmpDir, "tokens.json"))
	assert.True(t, os.IsNotExist(err))

	// Clearing an already empty store succeeds.
	require.NoError(t, store.Clear())
}

func TestFileStore_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewFileStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("A1", "R1"))

	info, err := os.Stat(filepath.Join(tmpDir, "tokens.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestMemStore(t *testing.T) {
	store := NewMemStore()

	tokens, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, tokens.Access)

	require.NoError(t, store.Set("A1", "R1"))
	require.NoError(t, store.SetAccess("A2"))

	tokens, err = store.Get()
	require.NoError(t, err)
	assert.Equal(t, "A2", tokens.Access)
	assert.Equal(t, "R1", tokens.Refresh)

	require.NoError(t, store.Clear())

	tokens, err = store.Get()
	require.NoError(t, err)
	assert.Empty(t, tokens.Access)
	assert.Empty(t, tokens.Refresh)
}
