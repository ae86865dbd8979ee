package routing

import "github.com/encodeous/nylon/internal/identity"

// Inf is the sentinel metric meaning "unreachable", mirroring a u16::MAX
// saturation in the original distance-vector engine.
const Inf uint16 = 1<<16 - 1

// Entry advertises reachability of Dest at Metric, as of sequence Seq. A
// Retract entry withdraws a previously advertised destination.
type Entry struct {
	Dest    identity.Entity `json:"dest"`
	Metric  uint16          `json:"metric"`
	Seq     uint64          `json:"seq"`
	Retract bool            `json:"retract"`
}

// Packet is the wire payload carried inside CtlPacket's routing variant: a
// batch of reachability entries advertised by the sender.
type Packet struct {
	Entries []Entry `json:"entries"`
}
