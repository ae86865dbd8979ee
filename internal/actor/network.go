package actor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/encodeous/nylon/internal/events"
	"github.com/encodeous/nylon/internal/forwarder"
	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/link"
	"github.com/encodeous/nylon/internal/metric"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/google/uuid"
)

// acceptLoop runs on its own goroutine for the lifetime of the node,
// spawning one short-lived handshake goroutine per inbound TCP connection.
func (a *Actor) acceptLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		conn, err := a.tcpListener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Debug("actor: accept failed", "error", err)
			continue
		}
		a.wg.Add(1)
		go a.acceptHandshake(ctx, conn)
	}
}

func (a *Actor) acceptHandshake(ctx context.Context, conn net.Conn) {
	defer a.wg.Done()
	id, peer, err := link.ListenerHandshake(ctx, conn, a.secret, a.central.Trusted, a.isLinkIDTaken)
	if err != nil {
		a.log.Debug("actor: listener handshake failed", "error", err)
		_ = conn.Close()
		if a.metrics != nil {
			a.metrics.handshakeFailures.Inc()
		}
		return
	}
	if a.metrics != nil {
		a.metrics.handshakeSuccesses.Inc()
	}
	a.queue.Post(events.Network{Event: events.SetupLink{ID: id, AddrDg: nil, Dst: peer, Stream: conn}})
}

// dialPeer tries every known control address for dst in turn, stopping at
// the first successful handshake. It first asks the actor whether it
// should bother, since a concurrent inbound handshake may have already
// established a link to the same peer.
func (a *Actor) dialPeer(ctx context.Context, dst identity.Entity, addrs []string) {
	defer a.wg.Done()

	result := make(chan error, 1)
	a.queue.Post(events.Network{Event: events.ValidateConnect{Peer: dst, Result: result}})
	select {
	case err := <-result:
		if err != nil {
			a.log.Debug("actor: skipping dial", "peer", dst.String(), "reason", err)
			return
		}
	case <-ctx.Done():
		return
	}

	dialer := &net.Dialer{Timeout: link.HandshakeTimeout}
	var lastErr error
	for _, addr := range addrs {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		id, err := link.DialerHandshake(ctx, conn, a.secret, dst, a.central.Trusted, a.isLinkIDTaken)
		if err != nil {
			lastErr = err
			_ = conn.Close()
			if a.metrics != nil {
				a.metrics.handshakeFailures.Inc()
			}
			continue
		}
		if a.metrics != nil {
			a.metrics.handshakeSuccesses.Inc()
		}
		var probeAddr *net.UDPAddr
		if ni, ok := a.central.NodeByPubkey(dst); ok {
			for _, sock := range ni.ReachableVia {
				if sock.Datagram == "" {
					continue
				}
				if resolved, err := net.ResolveUDPAddr("udp", sock.Datagram); err == nil {
					probeAddr = resolved
					break
				}
			}
		}
		a.queue.Post(events.Network{Event: events.SetupLink{ID: id, AddrDg: probeAddr, Dst: dst, Stream: conn}})
		return
	}
	a.log.Debug("actor: dial failed on every known address", "peer", dst.String(), "error", lastErr)
}

// deliverInbound is the link.Deliver callback passed to every ActiveLink: it
// never touches actor state directly, only posts into the main queue.
func (a *Actor) deliverInbound(linkID uuid.UUID, pkt link.CtlPacket) {
	a.queue.Post(events.Network{Event: events.InboundPacket{Link: linkID, Pkt: pkt}})
}

// onLinkClosed is the SpawnLink close callback: it too only posts an event.
func (a *Actor) onLinkClosed(id uuid.UUID) {
	a.queue.Post(events.Network{Event: events.LinkClosed{ID: id}})
}

func (a *Actor) udpReaderLoop(ctx context.Context) {
	defer a.wg.Done()
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = a.udpConn.SetReadDeadline(time.Now().Add(time.Second))
		n, src, err := a.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			a.log.Debug("actor: udp read failed", "error", err)
			continue
		}
		pkt, err := metric.Unmarshal(buf[:n])
		if err != nil {
			continue // unparseable datagrams are silently dropped
		}
		a.queue.Post(events.Network{Event: events.InboundDatagram{Src: src, Pkt: pkt}})
	}
}

func (a *Actor) udpWriterLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-a.udpOut:
			if !ok {
				return
			}
			if _, err := a.udpConn.WriteToUDP(out.Pkt.Marshal(), out.Addr); err != nil {
				a.log.Debug("actor: udp write failed", "addr", out.Addr, "error", err)
			}
		}
	}
}

// SendDatagram implements metric.Sender: a non-blocking enqueue onto the
// bounded channel the udpWriterLoop goroutine drains.
func (a *Actor) SendDatagram(addr *net.UDPAddr, pkt metric.Packet) error {
	select {
	case a.udpOut <- events.OutboundDatagram{Addr: addr, Pkt: pkt}:
		return nil
	default:
		return fmt.Errorf("actor: udp outbound queue is full")
	}
}

// RouteFor implements forwarder.Router.
func (a *Actor) RouteFor(dst identity.Entity) (routing.Route, bool) {
	return a.engine.RouteFor(dst)
}

// SendCourier implements forwarder.Router.
func (a *Actor) SendCourier(linkID uuid.UUID, pkt forwarder.CourierPacket) {
	ctl, err := link.NewCourierCtlPacket(pkt)
	if err != nil {
		a.log.Warn("actor: failed to wrap courier packet", "error", err)
		return
	}
	a.sendOnLink(linkID, ctl, nil)
}

// sendOnLink looks up id and attempts a non-blocking send of pkt, dropping
// and logging if the link is missing or its writer queue is full.
func (a *Actor) sendOnLink(id uuid.UUID, pkt link.CtlPacket, onFailure func()) {
	l, ok := a.links.Get(id)
	if !ok {
		a.log.Debug("actor: dropping packet for unknown link", "link_id", id)
		if onFailure != nil {
			onFailure()
		}
		if a.metrics != nil {
			a.metrics.courierDropped.Inc()
		}
		return
	}
	if !l.Send(pkt, onFailure) {
		a.log.Debug("actor: outbound queue full, packet dropped", "link_id", id)
		if onFailure != nil {
			onFailure()
		}
		if a.metrics != nil {
			a.metrics.courierDropped.Inc()
		}
	}
}

// pingLink pings id's known probe address (if any) and schedules a
// PingCheck to fire PingCheckDelay later.
func (a *Actor) pingLink(id uuid.UUID) {
	seq, scheduled := a.prober.PingLink(id)
	if !scheduled {
		return
	}
	time.AfterFunc(metric.PingCheckDelay, func() {
		a.queue.Post(events.Timer{Event: events.PingCheck{LinkID: id, Seq: seq}})
	})
}
