// Package config implements the on-disk shapes of node.json and net.json,
// the central-config root-signature check, and the atomic JSON
// persistence helper also used to dump route_table.json on shutdown.
package config

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/encodeous/nylon/internal/identity"
)

// IPCidr wraps a net.IPNet so it round-trips through JSON as its CIDR
// string form ("10.0.0.1/24"), matching how the rest of the on-disk
// configuration favours compact textual encodings over nested structs.
type IPCidr struct {
	net.IPNet
}

// ParseIPCidr parses s ("10.0.0.1/24") into an IPCidr.
func ParseIPCidr(s string) (IPCidr, error) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return IPCidr{}, fmt.Errorf("config: parsing cidr %q: %w", s, err)
	}
	ipnet.IP = ip
	return IPCidr{IPNet: *ipnet}, nil
}

// String renders c in CIDR form.
func (c IPCidr) String() string {
	ones, _ := c.IPNet.Mask.Size()
	return fmt.Sprintf("%s/%d", c.IPNet.IP.String(), ones)
}

// MarshalJSON encodes c as its CIDR string.
func (c IPCidr) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a CIDR string into c.
func (c *IPCidr) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("config: decoding cidr: %w", err)
	}
	parsed, err := ParseIPCidr(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// LinkInfo is the triple of socket addresses a node advertises: the
// control-stream TCP address, the datagram (UDP probe) address, and the
// data-plane (WireGuard tunnel) UDP address.
type LinkInfo struct {
	Control   string `json:"control"`
	Datagram  string `json:"datagram"`
	DataPlane string `json:"data_plane"`
}

// NodeIdentity is a globally-unique-by-Pubkey member of the network: its
// operator-facing name, its control-plane public key, and its WireGuard
// (data-plane) public key.
type NodeIdentity struct {
	FriendlyID string          `json:"friendly_id"`
	Pubkey     identity.Entity `json:"pubkey"`
	DpPubkey   string          `json:"dp_pubkey"`
}

// NodeInfo is one roster entry inside the central configuration: the
// identity, the sockets it is reachable on, and its overlay VLAN address.
type NodeInfo struct {
	Identity     NodeIdentity `json:"identity"`
	ReachableVia []LinkInfo   `json:"reachable_via"`
	AddrVlan     IPCidr       `json:"addr_vlan"`
}

// CentralConfig is the network-wide roster distributed on disk as
// net.json, wrapped in a SignedClaim signed by RootCA.
type CentralConfig struct {
	Version     uint64          `json:"version"`
	ConfigRepos []string        `json:"config_repos"`
	Nodes       []NodeInfo      `json:"nodes"`
	RootCA      identity.Entity `json:"root_ca"`
}

// NodeByPubkey returns the roster entry for pub, if trusted.
func (c CentralConfig) NodeByPubkey(pub identity.Entity) (NodeInfo, bool) {
	for _, n := range c.Nodes {
		if n.Identity.Pubkey.Equal(pub) {
			return n, true
		}
	}
	return NodeInfo{}, false
}

// Trusted reports whether pub appears in the roster.
func (c CentralConfig) Trusted(pub identity.Entity) bool {
	_, ok := c.NodeByPubkey(pub)
	return ok
}
