package link

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/metric"
	"github.com/encodeous/nylon/internal/wire"
	"github.com/google/uuid"
)

// OutPacket is posted to a link's writer goroutine. If the write fails and
// OnFailure is set, it is invoked so the actor can react (e.g. drop a
// pending route through the link).
type OutPacket struct {
	Packet    CtlPacket
	OnFailure func()
}

// ActiveLink is an authenticated, duplex control channel to one peer, plus
// its optional datagram probe address. It is created by SpawnLink on
// handshake success and is only ever mutated by the core actor goroutine
// that owns the Registry it lives in.
type ActiveLink struct {
	ID     uuid.UUID
	Dst    identity.Entity
	AddrDg *net.UDPAddr

	out    chan OutPacket
	cancel context.CancelFunc
	conn   net.Conn
}

// Send attempts a non-blocking write of pkt to the link's writer goroutine.
// It reports false if the channel is full, in which case the caller must
// treat the packet as dropped.
func (a *ActiveLink) Send(pkt CtlPacket, onFailure func()) bool {
	select {
	case a.out <- OutPacket{Packet: pkt, OnFailure: onFailure}:
		return true
	default:
		return false
	}
}

// Close cancels the link's goroutines and closes its underlying stream.
func (a *ActiveLink) Close() {
	a.cancel()
	_ = a.conn.Close()
}

// Destination returns the peer identity this link authenticates, satisfying
// metric.Link.
func (a *ActiveLink) Destination() identity.Entity { return a.Dst }

// ProbeAddr returns the link's known UDP probe address, if any, satisfying
// metric.Link.
func (a *ActiveLink) ProbeAddr() *net.UDPAddr { return a.AddrDg }

// SetProbeAddr records the peer's UDP probe address once learned from its
// first inbound Ping, satisfying metric.Link.
func (a *ActiveLink) SetProbeAddr(addr *net.UDPAddr) { a.AddrDg = addr }

// Registry is the set of currently active links, keyed by LinkId. It is
// not internally synchronised: per the single-actor invariant, only the
// core actor goroutine may touch it.
type Registry struct {
	links map[uuid.UUID]*ActiveLink
}

// NewRegistry creates an empty link registry.
func NewRegistry() *Registry {
	return &Registry{links: make(map[uuid.UUID]*ActiveLink)}
}

// Add inserts l, overwriting any previous entry at the same id (callers
// must have already checked Has to honour the at-most-one-per-LinkId
// invariant).
func (r *Registry) Add(l *ActiveLink) { r.links[l.ID] = l }

// Remove deletes id from the registry, if present.
func (r *Registry) Remove(id uuid.UUID) { delete(r.links, id) }

// Get returns the link for id, if active.
func (r *Registry) Get(id uuid.UUID) (*ActiveLink, bool) {
	l, ok := r.links[id]
	return l, ok
}

// Has reports whether id already names an active link.
func (r *Registry) Has(id uuid.UUID) bool {
	_, ok := r.links[id]
	return ok
}

// ByDest returns the first active link to dst, if any. Multiple concurrent
// links to the same peer can exist transiently during reconnect races;
// callers needing a specific one should track LinkId directly.
func (r *Registry) ByDest(dst identity.Entity) (*ActiveLink, bool) {
	for _, l := range r.links {
		if l.Dst.Equal(dst) {
			return l, true
		}
	}
	return nil, false
}

// All returns every active link.
func (r *Registry) All() []*ActiveLink {
	out := make([]*ActiveLink, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, l)
	}
	return out
}

// ProbeLinks adapts a Registry to metric.Links, which expects Get to return
// the narrower metric.Link interface rather than the concrete *ActiveLink.
type ProbeLinks struct{ Registry *Registry }

// Get implements metric.Links.
func (p ProbeLinks) Get(id uuid.UUID) (metric.Link, bool) {
	l, ok := p.Registry.Get(id)
	if !ok {
		return nil, false
	}
	return l, true
}

// Deliver is invoked by a link's reader goroutine for every successfully
// decoded CtlPacket, and must forward it into the core actor's event queue.
type Deliver func(linkID uuid.UUID, pkt CtlPacket)

// SpawnLink wires a freshly validated connection into an ActiveLink: it
// starts the reader and writer goroutines and registers wg so the actor's
// shutdown sequence can wait for them to exit. onClose is invoked exactly
// once, from the reader goroutine, after the link's stream has died for any
// reason, so the actor can drop it from the registry and withdraw its
// routes; it must not block.
func SpawnLink(parent context.Context, conn net.Conn, id uuid.UUID, dst identity.Entity, addrDg *net.UDPAddr, deliver Deliver, onClose func(uuid.UUID), wg *sync.WaitGroup, log *slog.Logger) *ActiveLink {
	ctx, cancel := context.WithCancel(parent)
	l := &ActiveLink{
		ID:     id,
		Dst:    dst,
		AddrDg: addrDg,
		out:    make(chan OutPacket, 512),
		cancel: cancel,
		conn:   conn,
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		readerLoop(ctx, conn, id, deliver, log)
		cancel()
		onClose(id)
	}()
	go func() {
		defer wg.Done()
		writerLoop(ctx, conn, l.out, log)
	}()

	return l
}

func readerLoop(ctx context.Context, conn net.Conn, id uuid.UUID, deliver Deliver, log *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			log.Debug("link: reader exiting", "link_id", id, "error", err)
			return
		}
		var pkt CtlPacket
		if err := json.Unmarshal(frame, &pkt); err != nil {
			log.Debug("link: dropping malformed ctl packet, terminating link", "link_id", id, "error", err)
			return
		}
		deliver(id, pkt)
	}
}

func writerLoop(ctx context.Context, conn net.Conn, in <-chan OutPacket, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-in:
			if !ok {
				return
			}
			frame, err := json.Marshal(out.Packet)
			if err != nil {
				log.Warn("link: failed to encode outbound ctl packet", "error", err)
				if out.OnFailure != nil {
					out.OnFailure()
				}
				continue
			}
			if err := wire.WriteFrame(conn, frame); err != nil {
				log.Debug("link: write failed, exiting writer", "error", err)
				if out.OnFailure != nil {
					out.OnFailure()
				}
				return
			}
		}
	}
}
