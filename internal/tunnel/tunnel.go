// Package tunnel programs the kernel WireGuard interface that carries
// data-plane IP traffic between peers. It is the concrete collaborator
// referenced throughout the core as "the tunnel": the actor calls it
// whenever the route table or peer set changes, but never mutates kernel
// state from anywhere but its own goroutine.
package tunnel

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"syscall"
	"time"

	nl "github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ErrInterfaceExists is returned by Create when the named link is already
// present.
var ErrInterfaceExists = errors.New("tunnel: interface already exists")

// PersistentKeepalive matches the teacher-pack idiom of always keeping a
// NAT-traversal keepalive on overlay peers.
const PersistentKeepalive = 25 * time.Second

// PeerConfig is one WireGuard peer entry: its data-plane public key, its
// last-known UDP endpoint, and the VLAN prefixes routed through it.
type PeerConfig struct {
	Pubkey     wgtypes.Key
	Endpoint   *net.UDPAddr
	AllowedIPs []net.IPNet
}

// Manager owns the wgctrl client and the name of the interface it
// programs. It is intended to be driven exclusively by the core actor
// goroutine, like every other piece of mutable state in this system.
type Manager struct {
	client *wgctrl.Client
	name   string

	prevSerialized string
}

// New opens a wgctrl client for the interface named name. The interface
// itself is not created until Create is called.
func New(name string) (*Manager, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("tunnel: opening wgctrl client: %w", err)
	}
	return &Manager{client: client, name: name}, nil
}

// Create adds a WireGuard-type netlink link named m.name and brings it up.
// Mirrors the teacher's netlink.TunnelAdd, generalized from a GRE link
// kind to "wireguard".
func (m *Manager) Create() error {
	link := &nl.GenericLink{
		LinkAttrs: nl.LinkAttrs{Name: m.name},
		LinkType:  "wireguard",
	}
	if err := nl.LinkAdd(link); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return ErrInterfaceExists
		}
		return fmt.Errorf("tunnel: creating interface %s: %w", m.name, err)
	}
	if err := nl.LinkSetUp(link); err != nil {
		return fmt.Errorf("tunnel: bringing up interface %s: %w", m.name, err)
	}
	return nil
}

// AddAddress assigns addr to the interface.
func (m *Manager) AddAddress(addr net.IPNet) error {
	link, err := nl.LinkByName(m.name)
	if err != nil {
		return fmt.Errorf("tunnel: finding interface %s: %w", m.name, err)
	}
	nlAddr := &nl.Addr{IPNet: &addr}
	if err := nl.AddrAdd(link, nlAddr); err != nil && !errors.Is(err, syscall.EEXIST) {
		return fmt.Errorf("tunnel: assigning address to %s: %w", m.name, err)
	}
	return nil
}

// Configure builds a wgtypes.Config from privkey/listenPort/peers and
// pushes it via wgctrl, but only if the serialized peer set differs from
// the last one applied — mirroring the teacher's prev_itf_config
// diff-before-apply pattern so a no-op SysRouteUpdate tick never touches
// the kernel.
func (m *Manager) Configure(privkey wgtypes.Key, listenPort int, peers []PeerConfig) (changed bool, err error) {
	serialized := serializePeers(listenPort, peers)
	if serialized == m.prevSerialized {
		return false, nil
	}

	wgPeers := make([]wgtypes.PeerConfig, 0, len(peers))
	for _, p := range peers {
		keepalive := PersistentKeepalive
		wgPeers = append(wgPeers, wgtypes.PeerConfig{
			PublicKey:                   p.Pubkey,
			Endpoint:                    p.Endpoint,
			AllowedIPs:                  p.AllowedIPs,
			PersistentKeepaliveInterval: &keepalive,
			ReplaceAllowedIPs:           true,
		})
	}

	cfg := wgtypes.Config{
		PrivateKey:   &privkey,
		ListenPort:   &listenPort,
		ReplacePeers: true,
		Peers:        wgPeers,
	}
	if err := m.client.ConfigureDevice(m.name, cfg); err != nil {
		return false, fmt.Errorf("tunnel: configuring device %s: %w", m.name, err)
	}
	m.prevSerialized = serialized
	return true, nil
}

// Remove deletes the interface.
func (m *Manager) Remove() error {
	link := &nl.GenericLink{LinkAttrs: nl.LinkAttrs{Name: m.name}}
	if err := nl.LinkDel(link); err != nil {
		return fmt.Errorf("tunnel: removing interface %s: %w", m.name, err)
	}
	return nil
}

// Close releases the wgctrl client.
func (m *Manager) Close() error {
	return m.client.Close()
}

// serializePeers produces a deterministic string representation of a peer
// set, used only to detect whether Configure needs to touch the kernel.
func serializePeers(listenPort int, peers []PeerConfig) string {
	sorted := make([]PeerConfig, len(peers))
	copy(sorted, peers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Pubkey.String() < sorted[j].Pubkey.String()
	})

	s := fmt.Sprintf("port=%d;", listenPort)
	for _, p := range sorted {
		s += fmt.Sprintf("peer=%s;endpoint=%v;allowed=", p.Pubkey.String(), p.Endpoint)
		ips := make([]string, len(p.AllowedIPs))
		for i, n := range p.AllowedIPs {
			ips[i] = n.String()
		}
		sort.Strings(ips)
		for _, ip := range ips {
			s += ip + ","
		}
		s += ";"
	}
	return s
}
