// Package link implements the TCP control-stream handshake, the
// ActiveLink registry, and the per-link reader/writer goroutines that
// decouple socket I/O from the core actor.
package link

import (
	"time"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/google/uuid"
)

// HandshakeClaimTTL bounds the validity window of the signed UUID exchanged
// during the handshake.
const HandshakeClaimTTL = 5 * time.Second

// HandshakeTimeout bounds how long a dialer waits for a response, and how
// long a listener waits for the initial Connect.
const HandshakeTimeout = 5 * time.Second

// Connect is the single message type used by both the dialer and the
// listener to authenticate each other and agree on a LinkId.
type Connect struct {
	PeerAddr identity.Entity                  `json:"peer_addr"`
	LinkID   identity.SignedClaim[uuid.UUID] `json:"link_id"`
}
