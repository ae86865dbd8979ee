package actor

import (
	"encoding/hex"
	"strings"

	"github.com/encodeous/nylon/internal/forwarder"
	"github.com/encodeous/nylon/internal/identity"
)

// handleCommand parses one operator-typed line and acts on it directly —
// this is the "DispatchCommandEvent... wired to a small interpreter, not a
// no-op" surface described in SPEC_FULL.md §11.
func (a *Actor) handleCommand(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "help":
		a.log.Info("actor: available commands", "commands", "help, route, ls, ping <peer>, tr|traceroute <peer>, msg <peer> <text>, exit")

	case "route":
		for destKey, r := range a.engine.Routes() {
			dest := identity.NewEntity([]byte(destKey))
			a.log.Info("actor: route", "dest", dest.String(), "next_hop", r.NextHop.String(), "metric", r.Metric, "link_id", r.Link.String())
		}

	case "ls":
		for _, l := range a.links.All() {
			a.log.Info("actor: active link", "link_id", l.ID.String(), "peer", l.Destination().String())
		}

	case "ping":
		if len(fields) < 2 {
			a.log.Warn("actor: usage: ping <peer>")
			return
		}
		peer, ok := a.resolveEntity(fields[1])
		if !ok {
			a.log.Warn("actor: unknown peer", "arg", fields[1])
			return
		}
		route, ok := a.engine.RouteFor(peer)
		if !ok {
			a.log.Warn("actor: no route to peer", "peer", peer.String())
			return
		}
		a.pending.Start(peer)
		a.SendCourier(route.Link, forwarder.Deliver{Dst: peer, Sender: a.self, Data: forwarder.Ping{}})

	case "tr", "traceroute":
		if len(fields) < 2 {
			a.log.Warn("actor: usage: tr <peer>")
			return
		}
		peer, ok := a.resolveEntity(fields[1])
		if !ok {
			a.log.Warn("actor: unknown peer", "arg", fields[1])
			return
		}
		route, ok := a.engine.RouteFor(peer)
		if !ok {
			a.log.Warn("actor: no route to peer", "peer", peer.String())
			return
		}
		a.SendCourier(route.Link, forwarder.TraceRoute{Dst: peer, Sender: a.self, Path: []identity.Entity{a.self}})

	case "msg":
		if len(fields) < 3 {
			a.log.Warn("actor: usage: msg <peer> <text>")
			return
		}
		peer, ok := a.resolveEntity(fields[1])
		if !ok {
			a.log.Warn("actor: unknown peer", "arg", fields[1])
			return
		}
		route, ok := a.engine.RouteFor(peer)
		if !ok {
			a.log.Warn("actor: no route to peer", "peer", peer.String())
			return
		}
		a.SendCourier(route.Link, forwarder.Deliver{Dst: peer, Sender: a.self, Data: forwarder.Message{Text: strings.Join(fields[2:], " ")}})

	case "exit":
		a.queue.Shutdown()

	default:
		a.log.Warn("actor: unknown command", "line", line)
	}
}

// resolveEntity accepts either a friendly_id from the central roster or a
// raw hex-encoded public key.
func (a *Actor) resolveEntity(arg string) (identity.Entity, bool) {
	for _, n := range a.central.Nodes {
		if n.Identity.FriendlyID == arg {
			return n.Identity.Pubkey, true
		}
	}
	raw, err := hex.DecodeString(arg)
	if err != nil {
		return identity.Entity{}, false
	}
	return identity.NewEntity(raw), true
}
