package actor

import (
	"time"

	"github.com/encodeous/nylon/internal/identity"
)

// pendingPings tracks local pings awaiting a Pong, keyed by the peer's
// identity. It satisfies forwarder.PendingPings. Like every other piece of
// state in this package, it is only ever touched from the actor goroutine.
type pendingPings struct {
	started map[string]int64
}

func newPendingPings() *pendingPings {
	return &pendingPings{started: make(map[string]int64)}
}

// Start records that a Ping was just sent to peer.
func (p *pendingPings) Start(peer identity.Entity) {
	p.started[peer.String()] = time.Now().UnixNano()
}

// Started implements forwarder.PendingPings.
func (p *pendingPings) Started(peer identity.Entity) (int64, bool) {
	v, ok := p.started[peer.String()]
	return v, ok
}

// Clear implements forwarder.PendingPings.
func (p *pendingPings) Clear(peer identity.Entity) {
	delete(p.started, peer.String())
}
