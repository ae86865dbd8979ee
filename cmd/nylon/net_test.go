package main

import (
	"path/filepath"
	"testing"

	"github.com/encodeous/nylon/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNetInitThenSign_RoundTrips(t *testing.T) {
	dir := t.TempDir()

	initCmd := newNetCmd()
	initCmd.SetArgs([]string{"init", "--dir", dir})
	require.NoError(t, initCmd.Execute())

	netPath := filepath.Join(dir, "net.json")
	rootPath := filepath.Join(dir, "root.json")

	sc, err := config.LoadCentralConfig(netPath)
	require.NoError(t, err)
	require.NoError(t, config.ValidateCentralConfig(*sc))
	require.EqualValues(t, 0, sc.Claim.Data.Version)

	signCmd := newNetCmd()
	signCmd.SetArgs([]string{"sign", netPath, rootPath})
	require.NoError(t, signCmd.Execute())

	resigned, err := config.LoadCentralConfig(netPath)
	require.NoError(t, err)
	require.NoError(t, config.ValidateCentralConfig(*resigned))
	require.EqualValues(t, 1, resigned.Claim.Data.Version)
	require.NotEqual(t, sc.Claim.Serial, resigned.Claim.Serial)
}

func TestNetSign_RejectsMismatchedRoot(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()

	initA := newNetCmd()
	initA.SetArgs([]string{"init", "--dir", dirA})
	require.NoError(t, initA.Execute())

	initB := newNetCmd()
	initB.SetArgs([]string{"init", "--dir", dirB})
	require.NoError(t, initB.Execute())

	signCmd := newNetCmd()
	signCmd.SetArgs([]string{"sign", filepath.Join(dirA, "net.json"), filepath.Join(dirB, "root.json")})
	require.Error(t, signCmd.Execute())
}
