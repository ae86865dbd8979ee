// Package routing implements an in-house, loop-free distance-vector routing
// engine. It is the concrete implementation of the "external routing
// engine" collaborator: nothing in the surrounding pack of examples
// provides this exact handle_packet/full_update/update/routes/links/
// outbound_packets shape (see DESIGN.md), so it is built from scratch here
// in the style of a sequence-numbered, split-horizon distance-vector
// protocol (Babel/DSDV family).
package routing

import (
	"sync"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/google/uuid"
)

// Route is a computed path to a destination: the neighbour to forward
// through, the link that reaches that neighbour, and the metric of the
// best known path.
type Route struct {
	NextHop identity.Entity
	Link    uuid.UUID
	Metric  uint16
	Seq     uint64
}

// OutboundPacket pairs a routing packet with the link it must be sent on.
type OutboundPacket struct {
	Link uuid.UUID
	Data Packet
}

type neighbour struct {
	link   uuid.UUID
	metric uint16
}

// Engine is the authoritative distance-vector table for one node. Every
// method takes an internal mutex; like every other piece of routing state
// in this system, the engine is owned and driven by the core actor
// goroutine.
type Engine struct {
	mu sync.Mutex

	self identity.Entity
	seq  uint64

	neighbours map[string]neighbour         // neighbour entity -> link + link metric
	routes     map[string]Route             // destination entity -> best route
	names      map[string]identity.Entity   // string key -> Entity, for iteration
	dirty      map[string]struct{}          // destinations changed since last drain
	outbound   []OutboundPacket
	warnings   []string
}

// New creates a routing engine for a node identified by self.
func New(self identity.Entity) *Engine {
	return &Engine{
		self:       self,
		neighbours: make(map[string]neighbour),
		routes:     make(map[string]Route),
		names:      make(map[string]identity.Entity),
		dirty:      make(map[string]struct{}),
	}
}

func key(e identity.Entity) string { return string(e.Bytes()) }

// SetLinkMetric records (or updates) the metric of the direct link to
// neighbour, reached via link. A metric of Inf marks the neighbour
// unreachable without removing it, matching the "no Pong in two PingCheck
// intervals" invariant from the metric prober.
func (e *Engine) SetLinkMetric(nb identity.Entity, link uuid.UUID, metric uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := key(nb)
	e.names[k] = nb
	e.neighbours[k] = neighbour{link: link, metric: metric}

	// The direct route to a neighbour is always eligible via the link itself.
	cur, ok := e.routes[k]
	if !ok || cur.Link == link || cur.Link == uuid.Nil || metric < cur.Metric {
		e.seq++
		e.routes[k] = Route{NextHop: nb, Link: link, Metric: metric, Seq: e.seq}
		e.dirty[k] = struct{}{}
	}
	// Routes to other destinations that already transit nb will be
	// refreshed by nb's own next advertisement (triggered by its RouteUpdate
	// timer), since this engine does not retain the pre-addition metric
	// needed to recompute them locally.
}

// RemoveLink withdraws a neighbour entirely, e.g. when its ActiveLink dies.
func (e *Engine) RemoveLink(nb identity.Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := key(nb)
	delete(e.neighbours, k)
	e.withdrawThrough(nb)
}

// HandlePacket folds a neighbour's advertisement into the table. pkt arrived
// on link from neighbour nb.
func (e *Engine) HandlePacket(pkt Packet, link uuid.UUID, nb identity.Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nbk := key(nb)
	direct, ok := e.neighbours[nbk]
	if !ok || direct.link != link {
		e.warnings = append(e.warnings, "routing: packet from unknown or mismatched link for neighbour "+nb.String())
		return
	}

	for _, entry := range pkt.Entries {
		if entry.Dest.Equal(e.self) {
			continue // never route back to ourselves
		}
		dk := key(entry.Dest)
		e.names[dk] = entry.Dest

		candidate := saturatingAdd(entry.Metric, direct.metric)
		if entry.Retract {
			candidate = Inf
		}

		cur, have := e.routes[dk]
		// Split-horizon/feasibility: accept if strictly better, or if the
		// update comes from the neighbour we currently route through (so we
		// also learn retractions and degradations of our own chosen path).
		if !have || cur.Link == uuid.Nil || candidate < cur.Metric || cur.NextHop.Equal(nb) {
			if have && cur.Metric == candidate && cur.NextHop.Equal(nb) && cur.Link == link {
				continue // no change
			}
			e.seq++
			e.routes[dk] = Route{NextHop: nb, Link: link, Metric: candidate, Seq: e.seq}
			e.dirty[dk] = struct{}{}
		}
	}
}

// Update drains pending triggered changes into outbound packets, one per
// active neighbour, honouring split horizon with poison reverse.
func (e *Engine) Update() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emit(e.dirtyEntries())
	e.dirty = make(map[string]struct{})
}

// FullUpdate rebuilds and emits the entire table to every neighbour,
// regardless of what has changed since the last update.
func (e *Engine) FullUpdate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	all := make(map[string]struct{}, len(e.routes))
	for k := range e.routes {
		all[k] = struct{}{}
	}
	e.emit(all)
	e.dirty = make(map[string]struct{})
}

// Routes returns a snapshot of the current route table, keyed by
// destination entity.
func (e *Engine) Routes() map[string]Route {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Route, len(e.routes))
	for k, r := range e.routes {
		out[k] = r
	}
	return out
}

// RouteFor returns the best known route to dst, if any.
func (e *Engine) RouteFor(dst identity.Entity) (Route, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.routes[key(dst)]
	return r, ok
}

// Links returns the measured metric to every known neighbour.
func (e *Engine) Links() map[string]uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]uint16, len(e.neighbours))
	for k, n := range e.neighbours {
		out[k] = n.metric
	}
	return out
}

// OutboundPackets drains and returns the packets queued for transmission
// since the last call.
func (e *Engine) OutboundPackets() []OutboundPacket {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.outbound
	e.outbound = nil
	return out
}

// Warnings drains and returns engine warnings accumulated since the last
// call, mirroring the original's per-event warning drain.
func (e *Engine) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.warnings
	e.warnings = nil
	return out
}

func (e *Engine) withdrawThrough(nb identity.Entity) {
	for dk, r := range e.routes {
		if r.NextHop.Equal(nb) {
			r.Metric = Inf
			e.routes[dk] = r
			e.dirty[dk] = struct{}{}
		}
	}
}

func (e *Engine) dirtyEntries() map[string]struct{} {
	return e.dirty
}

func (e *Engine) emit(which map[string]struct{}) {
	if len(which) == 0 || len(e.neighbours) == 0 {
		return
	}
	for nbk, n := range e.neighbours {
		nbEntity := e.names[nbk]
		var entries []Entry
		for dk := range which {
			r, ok := e.routes[dk]
			if !ok {
				continue
			}
			metric := r.Metric
			retract := metric >= Inf
			if r.NextHop.Equal(nbEntity) {
				// Split horizon with poison reverse: never advertise a
				// route back to the neighbour that supplied it.
				metric = Inf
				retract = true
			}
			entries = append(entries, Entry{
				Dest:    e.names[dk],
				Metric:  metric,
				Seq:     r.Seq,
				Retract: retract,
			})
		}
		if len(entries) == 0 {
			continue
		}
		e.outbound = append(e.outbound, OutboundPacket{Link: n.link, Data: Packet{Entries: entries}})
	}
}

func saturatingAdd(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b)
	if sum >= uint32(Inf) {
		return Inf
	}
	return uint16(sum)
}
