package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func TestIPCidr_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := ParseIPCidr("10.88.0.5/24")
	require.NoError(t, err)

	b, err := json.Marshal(c)
	require.NoError(t, err)
	require.Equal(t, `"10.88.0.5/24"`, string(b))

	var out IPCidr
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, c.String(), out.String())
}

func TestNodeConfig_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	secret, err := identity.Generate()
	require.NoError(t, err)
	wgKey, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)

	nc := NodeConfig{
		NodePrivkey: secret,
		WgPrivkey:   wgKey,
		Sock: LinkInfo{
			Control:   "0.0.0.0:7000",
			Datagram:  "0.0.0.0:7001",
			DataPlane: "0.0.0.0:51820",
		},
		InterfaceName: "nylon",
	}

	b, err := json.Marshal(nc)
	require.NoError(t, err)

	var out NodeConfig
	require.NoError(t, json.Unmarshal(b, &out))
	require.NoError(t, out.Validate())
	require.Equal(t, nc.WgPrivkey, out.WgPrivkey)
	require.Equal(t, nc.Sock, out.Sock)
}

func TestLoadNodeConfig_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadNodeConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestCentralConfig_ValidateCentralConfig(t *testing.T) {
	t.Parallel()

	root, err := identity.Generate()
	require.NoError(t, err)
	rootPub, err := root.Public()
	require.NoError(t, err)

	cc := CentralConfig{Version: 0, RootCA: rootPub}
	now := time.Now()
	claim := identity.NewClaim(cc, now, identity.Forever)
	signed, err := identity.SignClaim(claim, root)
	require.NoError(t, err)

	require.NoError(t, ValidateCentralConfig(signed))

	other, err := identity.Generate()
	require.NoError(t, err)
	otherPub, err := other.Public()
	require.NoError(t, err)
	wrongRoot := CentralConfig{Version: 0, RootCA: otherPub}
	wrongClaim := identity.NewClaim(wrongRoot, now, identity.Forever)
	wrongSigned, err := identity.SignClaim(wrongClaim, root) // signed by root, but claims otherPub as the CA
	require.NoError(t, err)
	require.Error(t, ValidateCentralConfig(wrongSigned))
}

func TestCentralConfig_Trusted(t *testing.T) {
	t.Parallel()

	secret, err := identity.Generate()
	require.NoError(t, err)
	pub, err := secret.Public()
	require.NoError(t, err)

	cc := CentralConfig{Nodes: []NodeInfo{{Identity: NodeIdentity{Pubkey: pub, FriendlyID: "n1"}}}}
	require.True(t, cc.Trusted(pub))

	other, err := identity.Generate()
	require.NoError(t, err)
	otherPub, err := other.Public()
	require.NoError(t, err)
	require.False(t, cc.Trusted(otherPub))
}

func TestAtomicWriteJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, AtomicWriteJSON(path, map[string]int{"a": 1}, 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]int
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, 1, out["a"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
