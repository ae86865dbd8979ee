package actor

import (
	"net"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/encodeous/nylon/internal/tunnel"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// reconcileTunnel recomputes the WireGuard peer set from the current route
// table and link registry, and pushes it to the kernel only if it changed.
// Each directly reachable peer's AllowedIPs is its own VLAN address plus the
// VLAN addresses of every destination currently routed through it, each as
// a single-host prefix (/32 or /128).
func (a *Actor) reconcileTunnel() {
	hostPrefix := func(ip net.IP) net.IPNet {
		if v4 := ip.To4(); v4 != nil {
			return net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
		}
		return net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
	}

	routes := a.engine.Routes()
	transiting := make(map[string][]net.IPNet)
	for destKey, r := range routes {
		if r.Metric >= routing.Inf {
			continue
		}
		dest := identity.NewEntity([]byte(destKey))
		if dest.Equal(r.NextHop) {
			continue // the direct route to a neighbour; its own address is added below
		}
		destNode, ok := a.central.NodeByPubkey(dest)
		if !ok {
			continue
		}
		k := r.NextHop.String()
		transiting[k] = append(transiting[k], hostPrefix(destNode.AddrVlan.IP))
	}

	var peers []tunnel.PeerConfig
	for _, l := range a.links.All() {
		peerNode, ok := a.central.NodeByPubkey(l.Destination())
		if !ok {
			continue
		}
		pubkey, err := wgtypes.ParseKey(peerNode.Identity.DpPubkey)
		if err != nil {
			a.log.Warn("actor: peer advertises an invalid wireguard key", "peer", l.Destination().String(), "error", err)
			continue
		}

		var endpoint *net.UDPAddr
		for _, sock := range peerNode.ReachableVia {
			if sock.DataPlane == "" {
				continue
			}
			if addr, err := net.ResolveUDPAddr("udp", sock.DataPlane); err == nil {
				endpoint = addr
				break
			}
		}

		allowed := append([]net.IPNet{hostPrefix(peerNode.AddrVlan.IP)}, transiting[l.Destination().String()]...)
		peers = append(peers, tunnel.PeerConfig{Pubkey: pubkey, Endpoint: endpoint, AllowedIPs: allowed})
	}

	listenPort := listenPortOf(a.node.Sock.DataPlane)
	changed, err := a.tun.Configure(a.node.WgPrivkey, listenPort, peers)
	if err != nil {
		a.log.Error("actor: tunnel reconciliation failed", "error", err)
		return
	}
	if changed {
		a.log.Info("actor: tunnel peers reconciled", "peer_count", len(peers))
	}
}
