// Package forwarder implements hop-by-hop delivery of application-level
// datagrams (ping/pong, trace-route, text message) along the routes
// computed by the routing engine.
package forwarder

import (
	"log/slog"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/google/uuid"
)

// RoutedPacket is the application payload carried end-to-end inside a
// Deliver or produced by a TraceRoute's reply.
type RoutedPacket interface{ isRoutedPacket() }

// Ping requests a Pong from the destination.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

// TracedRoute carries the accumulated hop path of a completed trace-route.
type TracedRoute struct {
	Path []identity.Entity `json:"path"`
}

// Message is an arbitrary operator-originated text payload.
type Message struct {
	Text string `json:"text"`
}

// Undeliverable reports that To could not be reached.
type Undeliverable struct {
	To identity.Entity `json:"to"`
}

func (Ping) isRoutedPacket()          {}
func (Pong) isRoutedPacket()          {}
func (TracedRoute) isRoutedPacket()   {}
func (Message) isRoutedPacket()       {}
func (Undeliverable) isRoutedPacket() {}

// CourierPacket is the control-channel envelope for forwarding a
// RoutedPacket, or for the path-vector exchange of a trace-route.
type CourierPacket interface{ isCourierPacket() }

// Deliver asks for Data to be handed to Dst, forwarding hop-by-hop if this
// node is not Dst.
type Deliver struct {
	Dst    identity.Entity `json:"dst"`
	Sender identity.Entity `json:"sender"`
	Data   RoutedPacket    `json:"data"`
}

// TraceRoute accumulates Path as it is forwarded toward Dst.
type TraceRoute struct {
	Dst    identity.Entity   `json:"dst"`
	Sender identity.Entity   `json:"sender"`
	Path   []identity.Entity `json:"path"`
}

func (Deliver) isCourierPacket()    {}
func (TraceRoute) isCourierPacket() {}

// Router resolves routes and ships outbound courier packets on a link; it
// is satisfied by the core actor.
type Router interface {
	RouteFor(dst identity.Entity) (routing.Route, bool)
	SendCourier(link uuid.UUID, pkt CourierPacket)
}

// PendingPings tracks outstanding local pings awaiting a Pong, keyed by the
// peer entity, so RTT can be logged on arrival.
type PendingPings interface {
	Started(peer identity.Entity) (startedAtUnixNano int64, ok bool)
	Clear(peer identity.Entity)
}

// Courier drives Deliver/TraceRoute handling for one node.
type Courier struct {
	Self     identity.Entity
	Router   Router
	Pending  PendingPings
	Log      *slog.Logger
}

// HandleCourierPacket dispatches an inbound CourierPacket arriving on link.
func (c *Courier) HandleCourierPacket(pkt CourierPacket, link uuid.UUID) {
	switch p := pkt.(type) {
	case Deliver:
		c.handleDeliver(p, link)
	case TraceRoute:
		c.handleTraceRoute(p, link)
	}
}

func (c *Courier) handleDeliver(d Deliver, link uuid.UUID) {
	if d.Dst.Equal(c.Self) {
		c.deliverLocal(d.Sender, d.Data)
		return
	}
	route, ok := c.Router.RouteFor(d.Dst)
	if !ok {
		c.Router.SendCourier(link, Deliver{Dst: d.Sender, Sender: c.Self, Data: Undeliverable{To: d.Dst}})
		return
	}
	c.Router.SendCourier(route.Link, d)
}

func (c *Courier) handleTraceRoute(tr TraceRoute, link uuid.UUID) {
	tr.Path = append(append([]identity.Entity{}, tr.Path...), c.Self)
	if tr.Dst.Equal(c.Self) {
		c.Router.SendCourier(link, Deliver{Dst: tr.Sender, Sender: c.Self, Data: TracedRoute{Path: tr.Path}})
		return
	}
	route, ok := c.Router.RouteFor(tr.Dst)
	if !ok {
		// Hops with no forward route drop a trace-route silently; partial
		// paths are an accepted outcome of this exchange.
		return
	}
	c.Router.SendCourier(route.Link, tr)
}

func (c *Courier) deliverLocal(sender identity.Entity, data RoutedPacket) {
	switch p := data.(type) {
	case Ping:
		route, ok := c.Router.RouteFor(sender)
		if !ok {
			return
		}
		c.Router.SendCourier(route.Link, Deliver{Dst: sender, Sender: c.Self, Data: Pong{}})
	case Pong:
		if _, ok := c.Pending.Started(sender); ok {
			c.Pending.Clear(sender)
			c.Log.Info("courier: received pong", "from", sender.String())
		}
	case TracedRoute:
		c.Log.Info("courier: trace route complete", "path", entityStrings(p.Path))
	case Message:
		c.Log.Info("courier: message", "from", sender.String(), "text", p.Text)
	case Undeliverable:
		c.Log.Warn("courier: undeliverable", "to", p.To.String())
	}
}

func entityStrings(es []identity.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.String()
	}
	return out
}
