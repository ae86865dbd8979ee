// Package events defines the tagged event union consumed by the core
// actor and the single message queue that carries it, decoupling
// networking goroutines, timers, and the CLI's operator command loop from
// the single-threaded actor that owns all routing state.
package events

import (
	"context"
	"net"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/link"
	"github.com/encodeous/nylon/internal/metric"
	"github.com/google/uuid"
)

// NylonEvent is the sealed union of everything the actor dispatches.
// Exactly one concrete type below satisfies it at a time; the actor
// switches on the dynamic type.
type NylonEvent interface{ isNylonEvent() }

// Network wraps an event originating from, or destined for, a peer
// connection or datagram socket.
type Network struct{ Event NetworkEvent }

// Timer wraps a periodic or scheduled internal tick.
type Timer struct{ Event TimerEvent }

// DispatchCommand carries one line typed at the interactive operator
// prompt (see cmd/nylon's run command). It is parsed and acted on by the
// actor's command interpreter, not a no-op.
type DispatchCommand struct{ Line string }

// Shutdown cancels the actor's context and begins the drain-then-persist
// sequence.
type Shutdown struct{}

// NoOp is an idempotent wake-up used to unblock the actor's queue receive
// once its context has already been cancelled.
type NoOp struct{}

func (Network) isNylonEvent()         {}
func (Timer) isNylonEvent()           {}
func (DispatchCommand) isNylonEvent() {}
func (Shutdown) isNylonEvent()        {}
func (NoOp) isNylonEvent()            {}

// NetworkEvent is the sub-union of events that cross a socket or link
// boundary.
type NetworkEvent interface{ isNetworkEvent() }

// ValidateConnect asks the actor whether a proactive dial to Peer should
// go ahead (it is rejected if a link to Peer already exists); Result
// receives nil on success or the rejection reason, and must be
// buffered by at least 1 so the networking goroutine never blocks the
// actor.
type ValidateConnect struct {
	Peer   identity.Entity
	Result chan<- error
}

// SetupLink is posted once a handshake has completed on either side. The
// actor spawns reader/writer goroutines over Stream and registers an
// ActiveLink.
type SetupLink struct {
	ID     uuid.UUID
	AddrDg *net.UDPAddr
	Dst    identity.Entity
	Stream net.Conn
}

// SpawnLink asks the actor to dial Dst proactively (used at startup to
// connect to every reachable peer in the central config).
type SpawnLink struct {
	Dst   identity.Entity
	Addrs []string
}

// InboundPacket is a decoded CtlPacket that arrived on an established
// link, tagged with the link it arrived on.
type InboundPacket struct {
	Link uuid.UUID
	Pkt  link.CtlPacket
}

// InboundDatagram is a decoded UDP probe packet, tagged with its source.
type InboundDatagram struct {
	Src *net.UDPAddr
	Pkt metric.Packet
}

// OutboundPacket asks the actor to ship pkt over the writer owned by
// link. OnFailure, if set, is invoked when the send is dropped.
type OutboundPacket struct {
	Link      uuid.UUID
	Pkt       link.CtlPacket
	OnFailure func()
}

// OutboundDatagram asks the actor's UDP-sending goroutine to transmit pkt
// to addr.
type OutboundDatagram struct {
	Addr *net.UDPAddr
	Pkt  metric.Packet
}

// LinkClosed reports that a link's reader or writer goroutine has exited,
// so the actor can remove it from the registry and withdraw its routes.
type LinkClosed struct{ ID uuid.UUID }

// LinkIDTaken asks the actor whether id already names an ActiveLink. A
// handshake goroutine uses this instead of touching the registry itself,
// preserving the invariant that only the actor goroutine ever reads or
// writes it; Result must be buffered by at least 1.
type LinkIDTaken struct {
	ID     uuid.UUID
	Result chan<- bool
}

func (ValidateConnect) isNetworkEvent()  {}
func (SetupLink) isNetworkEvent()        {}
func (SpawnLink) isNetworkEvent()        {}
func (InboundPacket) isNetworkEvent()    {}
func (InboundDatagram) isNetworkEvent()  {}
func (OutboundPacket) isNetworkEvent()   {}
func (OutboundDatagram) isNetworkEvent() {}
func (LinkClosed) isNetworkEvent()       {}
func (LinkIDTaken) isNetworkEvent()      {}

// TimerEvent is the sub-union of scheduled ticks the actor's timers post.
type TimerEvent interface{ isTimerEvent() }

// MetricUpdate fires every metric.ProbeInterval; the actor pings every
// active link.
type MetricUpdate struct{}

// RouteUpdate fires every 10s; the actor runs a full routing update.
type RouteUpdate struct{}

// SysRouteUpdate fires on the same cadence as RouteUpdate (see
// SPEC_FULL.md §10) and drives tunnel peer/allowed-IP reconciliation.
type SysRouteUpdate struct{}

// PingLink asks the actor to ping a single link. The MetricUpdate handler
// pings every active link directly and does not post PingLink.
type PingLink struct{ LinkID uuid.UUID }

// PingCheck fires metric.PingCheckDelay after a PingLink, to detect a
// missing Pong.
type PingCheck struct {
	LinkID uuid.UUID
	Seq    uint8
}

func (MetricUpdate) isTimerEvent()    {}
func (RouteUpdate) isTimerEvent()     {}
func (SysRouteUpdate) isTimerEvent()  {}
func (PingLink) isTimerEvent()        {}
func (PingCheck) isTimerEvent()       {}

// Queue is the single MPSC channel feeding the actor, plus the
// cancellation context shared by every goroutine in the system. It
// replaces a hand-rolled CancellationToken with the idiomatic
// context.Context/CancelFunc pair.
type Queue struct {
	ch     chan NylonEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue builds a Queue with the given buffer depth, derived from
// parent.
func NewQueue(parent context.Context, buffer int) *Queue {
	ctx, cancel := context.WithCancel(parent)
	return &Queue{
		ch:     make(chan NylonEvent, buffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled once Shutdown is called; every goroutine in the
// system should select on it before its next blocking operation.
func (q *Queue) Context() context.Context { return q.ctx }

// Post enqueues ev for the actor. If the queue is full the caller's
// goroutine blocks until there is room or the queue's context is
// cancelled; in the latter case ev is dropped.
func (q *Queue) Post(ev NylonEvent) {
	select {
	case q.ch <- ev:
	case <-q.ctx.Done():
	}
}

// Recv blocks until an event is available or the context is cancelled.
// Buffered events are returned before cancellation is reported, so a
// shutdown drains whatever is already queued.
func (q *Queue) Recv() (NylonEvent, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
	}
	select {
	case ev := <-q.ch:
		return ev, true
	case <-q.ctx.Done():
		return nil, false
	}
}

// Shutdown cancels the context, then posts NoOp so a blocked Recv wakes
// even though ctx.Done() and the channel read race in the same select.
func (q *Queue) Shutdown() {
	q.cancel()
	select {
	case q.ch <- NoOp{}:
	default:
	}
}
