package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conntree/internal/domain"
	"conntree/internal/tree"
)

func TestPrintTree(t *testing.T) {
	store := tree.New()
	folder, err := store.AddFolder(store.RootID())
	require.NoError(t, err)
	require.NoError(t, store.Rename(folder.ID, "prod"))
	conn, err := store.AddConnection(folder.ID)
	require.NoError(t, err)
	require.NoError(t, store.Rename(conn.ID, "db"))
	host, protocol, port := "db.internal", domain.ProtocolSSH2, 22
	require.NoError(t, store.UpdateConnection(conn.ID, tree.ConnectionEdit{Hostname: &host, Protocol: &protocol, Port: &port}))

	var out bytes.Buffer
	printTree(&out, store, store.Root(), 0)

	assert.Equal(t, "Connections\n  prod\n    db  SSH2 db.internal:22\n", out.String())
}
