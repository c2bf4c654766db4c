package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conntree/internal/domain"
	"conntree/internal/state"
	"conntree/internal/tree"
)

func rowNames(rows []state.VisibleNode) []string {
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Node.Name)
	}
	return names
}

func build(t *testing.T) (*tree.Store, *domain.Node, *domain.Node) {
	t.Helper()
	store := tree.New()
	folder, err := store.AddFolder(store.RootID())
	require.NoError(t, err)
	require.NoError(t, store.Rename(folder.ID, "prod"))
	conn, err := store.AddConnection(folder.ID)
	require.NoError(t, err)
	require.NoError(t, store.Rename(conn.ID, "db"))
	return store, folder, conn
}

func TestVisibleNodes_FollowExpandedFlags(t *testing.T) {
	store, folder, _ := build(t)
	appState := state.NewState(store, state.Preferences{}, nil)

	assert.Equal(t, []string{tree.DefaultRootName, "prod"}, rowNames(appState.VisibleNodes()))

	assert.True(t, appState.Toggle(folder.ID))
	rows := appState.VisibleNodes()
	assert.Equal(t, []string{tree.DefaultRootName, "prod", "db"}, rowNames(rows))
	assert.Equal(t, 2, rows[2].Depth)
}

func TestSelect_ExpandsAncestors(t *testing.T) {
	store, folder, conn := build(t)
	appState := state.NewState(store, state.Preferences{}, nil)

	require.True(t, appState.Select(conn.ID))
	assert.True(t, folder.Expanded)
	assert.Equal(t, 2, appState.Cursor)
	assert.Equal(t, conn.ID, appState.CurrentID())

	assert.False(t, appState.Select("missing"))
}

func TestCollapse_LeafJumpsToParent(t *testing.T) {
	store, folder, conn := build(t)
	appState := state.NewState(store, state.Preferences{}, nil)
	appState.Select(conn.ID)

	appState.Collapse(conn.ID)
	assert.Equal(t, folder.ID, appState.CurrentID())
	assert.True(t, folder.Expanded)

	appState.Collapse(folder.ID)
	assert.False(t, folder.Expanded)

	appState.Collapse(store.RootID())
	assert.True(t, store.Root().Expanded)
}

func TestMoveCursor_Clamps(t *testing.T) {
	store, _, _ := build(t)
	appState := state.NewState(store, state.Preferences{}, nil)

	appState.MoveCursor(-3)
	assert.Equal(t, 0, appState.Cursor)
	appState.MoveCursor(10)
	assert.Equal(t, 1, appState.Cursor)
}

func TestCutAndTake(t *testing.T) {
	store, folder, conn := build(t)
	appState := state.NewState(store, state.Preferences{}, nil)

	assert.False(t, appState.Cut(store.RootID()))
	require.True(t, appState.Cut(conn.ID))
	assert.Equal(t, conn.ID, appState.TakeCut())
	assert.Empty(t, appState.TakeCut())

	require.True(t, appState.Cut(folder.ID))
	require.NoError(t, store.Delete(folder.ID))
	assert.Empty(t, appState.TakeCut())
}
