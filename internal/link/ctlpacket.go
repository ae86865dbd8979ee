package link

import (
	"fmt"

	"github.com/encodeous/nylon/internal/forwarder"
	"github.com/encodeous/nylon/internal/routing"
)

// CtlPacket is the tagged envelope carried over an established control
// stream, once the handshake has completed. Exactly one of Routing or
// Courier is populated, selected by Type.
type CtlPacket struct {
	Type    string           `json:"type"`
	Routing *routing.Packet  `json:"routing,omitempty"`
	Courier *courierEnvelope `json:"courier,omitempty"`
}

// courierEnvelope tags which CourierPacket variant Courier carries, since
// forwarder.CourierPacket is a Go interface with no JSON discriminant of
// its own.
type courierEnvelope struct {
	Kind    string               `json:"kind"`
	Deliver *forwarder.Deliver   `json:"deliver,omitempty"`
	Trace   *forwarder.TraceRoute `json:"trace,omitempty"`
}

const (
	ctlTypeRouting = "routing"
	ctlTypeCourier = "courier"
)

// NewRoutingCtlPacket wraps a routing packet for transmission.
func NewRoutingCtlPacket(p routing.Packet) CtlPacket {
	return CtlPacket{Type: ctlTypeRouting, Routing: &p}
}

// NewCourierCtlPacket wraps a courier packet for transmission.
func NewCourierCtlPacket(p forwarder.CourierPacket) (CtlPacket, error) {
	env := courierEnvelope{}
	switch v := p.(type) {
	case forwarder.Deliver:
		env.Kind = "deliver"
		env.Deliver = &v
	case forwarder.TraceRoute:
		env.Kind = "trace"
		env.Trace = &v
	default:
		return CtlPacket{}, fmt.Errorf("link: unknown courier packet type %T", p)
	}
	return CtlPacket{Type: ctlTypeCourier, Courier: &env}, nil
}

// Unwrap returns the routing packet or courier packet this CtlPacket
// carries (the other is nil), or an error if the tag or payload is
// missing or unknown.
func (c CtlPacket) Unwrap() (routingPkt *routing.Packet, courierPkt forwarder.CourierPacket, err error) {
	switch c.Type {
	case ctlTypeRouting:
		if c.Routing == nil {
			return nil, nil, fmt.Errorf("link: routing ctl packet missing payload")
		}
		return c.Routing, nil, nil
	case ctlTypeCourier:
		if c.Courier == nil {
			return nil, nil, fmt.Errorf("link: courier ctl packet missing payload")
		}
		switch c.Courier.Kind {
		case "deliver":
			if c.Courier.Deliver == nil {
				return nil, nil, fmt.Errorf("link: deliver ctl packet missing payload")
			}
			return nil, *c.Courier.Deliver, nil
		case "trace":
			if c.Courier.Trace == nil {
				return nil, nil, fmt.Errorf("link: trace ctl packet missing payload")
			}
			return nil, *c.Courier.Trace, nil
		default:
			return nil, nil, fmt.Errorf("link: unknown courier kind %q", c.Courier.Kind)
		}
	default:
		return nil, nil, fmt.Errorf("link: unknown ctl packet type %q", c.Type)
	}
}
