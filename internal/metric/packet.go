// Package metric implements per-link RTT probing over UDP, including the
// reverse-ping NAT-discovery exchange used by listener-originated links to
// learn their peer's externally visible UDP address.
package metric

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind discriminates a MetricPacket's direction.
type Kind uint8

const (
	// KindPing requests a Pong from the addressed link.
	KindPing Kind = iota
	// KindPong answers a Ping.
	KindPong
)

// packetLen is the fixed wire size: 1 byte kind, 16 bytes link id, 1 byte
// sequence — in the style of the teacher's fixed-layout control packet
// marshalling (internal/liveness/packet.go), substituting for the
// bitcode encoding of the original implementation.
const packetLen = 18

// Packet is the UDP probe message. Seq doubles as the original's "ret"
// discriminant: a nonzero Seq on a Ping marks it as the reverse,
// NAT-discovery probe.
type Packet struct {
	Kind Kind
	Link uuid.UUID
	Seq  uint8
}

// IsReversePing reports whether p is the reverse half of a NAT-discovery
// exchange.
func (p Packet) IsReversePing() bool { return p.Kind == KindPing && p.Seq != 0 }

// Marshal encodes p into its fixed 18-byte wire format.
func (p Packet) Marshal() []byte {
	b := make([]byte, packetLen)
	b[0] = byte(p.Kind)
	copy(b[1:17], p.Link[:])
	b[17] = p.Seq
	return b
}

// Unmarshal decodes a Packet from the wire. Unparseable packets are
// reported via err and must be silently dropped by the caller.
func Unmarshal(b []byte) (Packet, error) {
	if len(b) != packetLen {
		return Packet{}, fmt.Errorf("metric: packet has wrong length %d", len(b))
	}
	if b[0] != byte(KindPing) && b[0] != byte(KindPong) {
		return Packet{}, fmt.Errorf("metric: unknown packet kind %d", b[0])
	}
	var link uuid.UUID
	copy(link[:], b[1:17])
	return Packet{Kind: Kind(b[0]), Link: link, Seq: b[17]}, nil
}
