package main

import (
	"path/filepath"
	"testing"

	"github.com/encodeous/nylon/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNodeInit_WritesUsableNodeConfig(t *testing.T) {
	dir := t.TempDir()

	cmd := newNodeCmd()
	cmd.SetArgs([]string{"init", "alice", "--dir", dir, "--vlan", "10.10.0.2/24"})
	require.NoError(t, cmd.Execute())

	nc, err := config.LoadNodeConfig(filepath.Join(dir, "node.json"))
	require.NoError(t, err)
	require.NoError(t, nc.Validate())
	require.Equal(t, "nylon", nc.InterfaceOrDefault())
}
