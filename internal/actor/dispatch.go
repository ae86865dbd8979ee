package actor

import (
	"github.com/encodeous/nylon/internal/events"
	"github.com/encodeous/nylon/internal/forwarder"
	"github.com/encodeous/nylon/internal/link"
)

// dispatch is the actor's sole entry point for every event in the system.
// A panic here is recovered and logged rather than allowed to kill the
// loop, matching the teacher's defensive "errors are values" texture: only
// cancellation ends the dispatch loop.
func (a *Actor) dispatch(ev events.NylonEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("actor: recovered from panic while dispatching event", "panic", r)
		}
	}()

	switch e := ev.(type) {
	case events.Network:
		a.dispatchNetwork(e.Event)
	case events.Timer:
		a.dispatchTimer(e.Event)
	case events.DispatchCommand:
		a.handleCommand(e.Line)
	case events.Shutdown:
		a.queue.Shutdown()
	case events.NoOp:
		// wake-up only
	}
}

func (a *Actor) dispatchNetwork(ev events.NetworkEvent) {
	switch e := ev.(type) {
	case events.ValidateConnect:
		a.handleValidateConnect(e)
	case events.SetupLink:
		a.handleSetupLink(e)
	case events.SpawnLink:
		a.wg.Add(1)
		go a.dialPeer(a.queue.Context(), e.Dst, e.Addrs)
	case events.InboundPacket:
		a.handleInboundPacket(e)
	case events.InboundDatagram:
		a.prober.HandleInbound(e.Src, e.Pkt)
	case events.OutboundPacket:
		a.sendOnLink(e.Link, e.Pkt, e.OnFailure)
	case events.OutboundDatagram:
		select {
		case a.udpOut <- e:
		default:
			a.log.Debug("actor: udp outbound queue full, dropping", "addr", e.Addr)
		}
	case events.LinkClosed:
		a.handleLinkClosed(e)
	case events.LinkIDTaken:
		e.Result <- a.links.Has(e.ID)
	}
}

func (a *Actor) dispatchTimer(ev events.TimerEvent) {
	switch e := ev.(type) {
	case events.MetricUpdate:
		for _, l := range a.links.All() {
			a.pingLink(l.ID)
		}
	case events.RouteUpdate:
		a.engine.FullUpdate()
		a.drainRouting()
	case events.SysRouteUpdate:
		a.reconcileTunnel()
	case events.PingLink:
		a.pingLink(e.LinkID)
	case events.PingCheck:
		a.prober.PingCheck(e.LinkID, e.Seq)
	}
}

func (a *Actor) handleValidateConnect(e events.ValidateConnect) {
	if _, ok := a.links.ByDest(e.Peer); ok {
		e.Result <- errAlreadyLinked
		return
	}
	e.Result <- nil
}

func (a *Actor) handleSetupLink(e events.SetupLink) {
	if a.links.Has(e.ID) {
		_ = e.Stream.Close()
		return
	}
	l := link.SpawnLink(a.queue.Context(), e.Stream, e.ID, e.Dst, e.AddrDg, a.deliverInbound, a.onLinkClosed, &a.wg, a.log)
	a.links.Add(l)
	if a.metrics != nil {
		a.metrics.activeLinks.Set(float64(len(a.links.All())))
	}
	a.pingLink(e.ID)
}

func (a *Actor) handleLinkClosed(e events.LinkClosed) {
	l, ok := a.links.Get(e.ID)
	if !ok {
		return
	}
	a.links.Remove(e.ID)
	a.engine.RemoveLink(l.Destination())
	a.drainRouting()
	if a.metrics != nil {
		a.metrics.activeLinks.Set(float64(len(a.links.All())))
	}
}

func (a *Actor) handleInboundPacket(e events.InboundPacket) {
	routingPkt, courierPkt, err := e.Pkt.Unwrap()
	if err != nil {
		a.log.Debug("actor: dropping malformed ctl packet", "link_id", e.Link, "error", err)
		return
	}

	if routingPkt != nil {
		l, ok := a.links.Get(e.Link)
		if !ok {
			return
		}
		a.engine.HandlePacket(*routingPkt, e.Link, l.Destination())
		a.drainRouting()
		return
	}

	switch p := courierPkt.(type) {
	case forwarder.Deliver:
		if a.metrics != nil {
			if p.Dst.Equal(a.self) {
				a.metrics.courierDelivered.Inc()
			} else {
				a.metrics.courierForwarded.Inc()
			}
		}
	case forwarder.TraceRoute:
		if a.metrics != nil {
			a.metrics.courierForwarded.Inc()
		}
	}
	a.courier.HandleCourierPacket(courierPkt, e.Link)
}

// drainRouting ships every packet the routing engine has queued since the
// last drain and logs any warnings it accumulated along the way.
func (a *Actor) drainRouting() {
	for _, op := range a.engine.OutboundPackets() {
		a.sendOnLink(op.Link, link.NewRoutingCtlPacket(op.Data), nil)
	}
	for _, w := range a.engine.Warnings() {
		a.log.Warn("actor: routing engine warning", "warning", w)
	}
	if a.metrics != nil {
		a.metrics.routeTableSize.Set(float64(len(a.engine.Routes())))
	}
}
