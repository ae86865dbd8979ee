package actor

import (
	"net"
	"testing"

	"github.com/encodeous/nylon/internal/events"
	"github.com/encodeous/nylon/internal/link"
	"github.com/encodeous/nylon/internal/metric"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSendDatagram_DropsWhenQueueFull(t *testing.T) {
	a := newTestActor(t)
	a.udpOut = make(chan events.OutboundDatagram, 1)

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
	pkt := metric.Packet{Kind: metric.KindPing, Link: uuid.New()}

	require.NoError(t, a.SendDatagram(addr, pkt))
	require.Error(t, a.SendDatagram(addr, pkt))
}

func TestSendOnLink_InvokesOnFailureForUnknownLink(t *testing.T) {
	a := newTestActor(t)

	failed := false
	a.sendOnLink(uuid.New(), link.NewRoutingCtlPacket(routing.Packet{}), func() { failed = true })
	require.True(t, failed)
}
