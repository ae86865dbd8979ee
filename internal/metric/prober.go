package metric

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/google/uuid"
)

// Inf mirrors routing.Inf: a metric this large is reported as unreachable.
const Inf = routing.Inf

// PingCheckDelay is how long the prober waits for a Pong before declaring a
// link unreachable.
const PingCheckDelay = 5 * time.Second

// ProbeInterval is how often the actor schedules a PingLink for every
// active link.
const ProbeInterval = 10 * time.Second

// Sender transmits an encoded probe datagram to addr.
type Sender interface {
	SendDatagram(addr *net.UDPAddr, pkt Packet) error
}

// Link is the subset of link.ActiveLink the prober needs: its destination
// identity (for feeding the routing engine) and its known, possibly absent,
// UDP probe address.
type Link interface {
	Destination() identity.Entity
	ProbeAddr() *net.UDPAddr
	SetProbeAddr(*net.UDPAddr)
}

type health struct {
	lastPong  time.Time
	ping      time.Duration
	pingStart time.Time
	pingSeq   uint8
}

// Engine is the subset of the routing engine the prober drives.
type Engine interface {
	SetLinkMetric(nb identity.Entity, link uuid.UUID, metric uint16)
}

// Links resolves an ActiveLink by id, as seen by the metric prober.
type Links interface {
	Get(id uuid.UUID) (Link, bool)
}

// Prober measures per-link RTT over UDP and feeds the results into a
// routing engine as link metrics.
type Prober struct {
	mu     sync.Mutex
	health map[uuid.UUID]*health

	sender Sender
	links  Links
	engine Engine
	log    *slog.Logger
}

// NewProber builds a Prober over the given collaborators.
func NewProber(sender Sender, links Links, engine Engine, log *slog.Logger) *Prober {
	return &Prober{
		health: make(map[uuid.UUID]*health),
		sender: sender,
		links:  links,
		engine: engine,
		log:    log,
	}
}

// PingLink sends a fresh Ping to id's known probe address, if any, and
// returns the sequence number a subsequent PingCheck should verify.
func (p *Prober) PingLink(id uuid.UUID) (seq uint8, scheduled bool) {
	l, ok := p.links.Get(id)
	if !ok {
		return 0, false
	}
	addr := l.ProbeAddr()
	if addr == nil {
		return 0, false
	}

	p.mu.Lock()
	h, ok := p.health[id]
	if !ok {
		h = &health{}
		p.health[id] = h
	}
	h.pingStart = time.Now()
	seq = h.pingSeq
	p.mu.Unlock()

	if err := p.sender.SendDatagram(addr, Packet{Kind: KindPing, Link: id, Seq: 0}); err != nil {
		p.log.Debug("metric: ping send failed", "link_id", id, "error", err)
	}
	return seq, true
}

// HandleInbound processes a datagram received from src.
func (p *Prober) HandleInbound(src *net.UDPAddr, pkt Packet) {
	l, ok := p.links.Get(pkt.Link)
	if !ok {
		return
	}

	switch pkt.Kind {
	case KindPing:
		if l.ProbeAddr() == nil {
			l.SetProbeAddr(src)
		}
		if err := p.sender.SendDatagram(src, Packet{Kind: KindPong, Link: pkt.Link}); err != nil {
			p.log.Debug("metric: pong send failed", "link_id", pkt.Link, "error", err)
		}
		if !pkt.IsReversePing() {
			if err := p.sender.SendDatagram(src, Packet{Kind: KindPing, Link: pkt.Link, Seq: 1}); err != nil {
				p.log.Debug("metric: reverse ping send failed", "link_id", pkt.Link, "error", err)
			}
		}
	case KindPong:
		p.mu.Lock()
		h, ok := p.health[pkt.Link]
		if !ok {
			p.mu.Unlock()
			return
		}
		h.ping = time.Since(h.pingStart) / 2
		h.lastPong = time.Now()
		h.pingSeq++
		ping := h.ping
		p.mu.Unlock()
		p.updateMetric(pkt.Link, l.Destination(), ping)
	}
}

// PingCheck fires PingCheckDelay after a PingLink call for (id, seq). If no
// Pong arrived in the interim — i.e. the stored sequence is unchanged — the
// link's metric is set to Inf.
func (p *Prober) PingCheck(id uuid.UUID, seq uint8) {
	l, ok := p.links.Get(id)
	if !ok {
		return
	}

	p.mu.Lock()
	h, ok := p.health[id]
	timedOut := ok && h.pingSeq == seq
	if timedOut {
		h.ping = time.Duration(1<<63 - 1)
	}
	p.mu.Unlock()

	if timedOut {
		p.engine.SetLinkMetric(l.Destination(), id, Inf)
	}
}

func (p *Prober) updateMetric(id uuid.UUID, dst identity.Entity, ping time.Duration) {
	ms := ping.Milliseconds()
	var metric uint16
	switch {
	case ms >= int64(Inf):
		metric = Inf
	case ms < 1:
		metric = 1
	default:
		metric = uint16(ms)
	}
	p.engine.SetLinkMetric(dst, id, metric)
}
