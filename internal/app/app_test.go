package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conntree/internal/config"
	"conntree/internal/persist"
	"conntree/internal/tree"
)

func TestLoadTree_MissingFileStartsEmpty(t *testing.T) {
	store, lastSelected, err := LoadTree(filepath.Join(t.TempDir(), "connections.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, tree.DefaultRootName, store.Root().Name)
	assert.Empty(t, lastSelected)
}

func TestLoadTree_ReadsSavedTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.json")
	saved := tree.New()
	folder, err := saved.AddFolder(saved.RootID())
	require.NoError(t, err)
	conn, err := saved.AddConnection(folder.ID)
	require.NoError(t, err)
	require.NoError(t, persist.Save(path, persist.Document{Tree: saved.Snapshot(), LastSelected: conn.ID}))

	store, lastSelected, err := LoadTree(path)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, lastSelected)
	loaded, ok := store.Node(conn.ID)
	require.True(t, ok)
	assert.Equal(t, folder.ID, loaded.ParentID)
}

func TestLoadTree_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := LoadTree(path)
	assert.Error(t, err)
}

func TestSavePreferences_KeepsStoredSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connections_file: /srv/conns.json\ntheme: dark\n"), 0o600))

	require.NoError(t, savePreferences(path, config.Config{Theme: "light", SwitchToOpen: false}))

	stored, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/conns.json", stored.ConnectionsFile)
	assert.Equal(t, "light", stored.Theme)
	assert.False(t, stored.SwitchToOpen)
}
