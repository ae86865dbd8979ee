package config

import (
	"fmt"

	"github.com/encodeous/nylon/internal/identity"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// NodeConfig is node.json: the node's local secret material plus the
// sockets it listens on and the tunnel interface it programs.
type NodeConfig struct {
	NodePrivkey   identity.EntitySecret `json:"node_privkey"`
	WgPrivkey     wgtypes.Key           `json:"wg_privkey"`
	Sock          LinkInfo              `json:"sock"`
	InterfaceName string                `json:"interface_name"`
}

// InterfaceOrDefault returns the interface name, or "nylon" if unset (as it
// is in the node.json that `node init` writes).
func (n NodeConfig) InterfaceOrDefault() string {
	if n.InterfaceName == "" {
		return "nylon"
	}
	return n.InterfaceName
}

// Validate checks that the loaded node.json carries usable key material.
func (n NodeConfig) Validate() error {
	if _, err := n.NodePrivkey.Public(); err != nil {
		return fmt.Errorf("config: node.json has invalid node private key: %w", err)
	}
	var zero wgtypes.Key
	if n.WgPrivkey == zero {
		return fmt.Errorf("config: node.json is missing a WireGuard private key")
	}
	return nil
}
