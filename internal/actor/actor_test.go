package actor

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/encodeous/nylon/internal/config"
	"github.com/encodeous/nylon/internal/events"
	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/link"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newTestActor builds an Actor with just enough collaborators wired to
// exercise dispatch logic, bypassing New/Run so tests never touch a real
// socket, kernel tunnel, or wgctrl client.
func newTestActor(t *testing.T) *Actor {
	t.Helper()
	secret, err := identity.Generate()
	require.NoError(t, err)
	self, err := secret.Public()
	require.NoError(t, err)

	return &Actor{
		self:    self,
		secret:  secret,
		links:   link.NewRegistry(),
		engine:  routing.New(self),
		pending: newPendingPings(),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		queue:   events.NewQueue(context.Background(), 8),
	}
}

func TestResolveEntity_FriendlyIDAndHex(t *testing.T) {
	a := newTestActor(t)
	peerSecret, err := identity.Generate()
	require.NoError(t, err)
	peer, err := peerSecret.Public()
	require.NoError(t, err)

	a.central = config.CentralConfig{Nodes: []config.NodeInfo{
		{Identity: config.NodeIdentity{FriendlyID: "alice", Pubkey: peer}},
	}}

	got, ok := a.resolveEntity("alice")
	require.True(t, ok)
	require.True(t, got.Equal(peer))

	got, ok = a.resolveEntity(peer.String())
	require.True(t, ok)
	require.True(t, got.Equal(peer))

	_, ok = a.resolveEntity("not-hex-not-friendly-$$$")
	require.False(t, ok)
}

func TestHandleValidateConnect_RejectsAlreadyLinkedPeer(t *testing.T) {
	a := newTestActor(t)
	peerSecret, err := identity.Generate()
	require.NoError(t, err)
	peer, err := peerSecret.Public()
	require.NoError(t, err)

	result := make(chan error, 1)
	a.dispatchNetwork(events.ValidateConnect{Peer: peer, Result: result})
	require.NoError(t, <-result)

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })
	l := link.SpawnLink(context.Background(), serverConn, uuid.New(), peer, nil, a.deliverInbound, a.onLinkClosed, &a.wg, a.log)
	a.links.Add(l)

	result = make(chan error, 1)
	a.dispatchNetwork(events.ValidateConnect{Peer: peer, Result: result})
	require.ErrorIs(t, <-result, errAlreadyLinked)
}

func TestDispatchNetwork_LinkIDTaken(t *testing.T) {
	a := newTestActor(t)
	peerSecret, err := identity.Generate()
	require.NoError(t, err)
	peer, err := peerSecret.Public()
	require.NoError(t, err)

	id := uuid.New()
	result := make(chan bool, 1)
	a.dispatchNetwork(events.LinkIDTaken{ID: id, Result: result})
	require.False(t, <-result)

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })
	l := link.SpawnLink(context.Background(), serverConn, id, peer, nil, a.deliverInbound, a.onLinkClosed, &a.wg, a.log)
	a.links.Add(l)

	result = make(chan bool, 1)
	a.dispatchNetwork(events.LinkIDTaken{ID: id, Result: result})
	require.True(t, <-result)
}

func TestHandleLinkClosed_WithdrawsRoutes(t *testing.T) {
	a := newTestActor(t)
	peerSecret, err := identity.Generate()
	require.NoError(t, err)
	peer, err := peerSecret.Public()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })
	id := uuid.New()
	l := link.SpawnLink(context.Background(), serverConn, id, peer, nil, a.deliverInbound, a.onLinkClosed, &a.wg, a.log)
	a.links.Add(l)
	a.engine.SetLinkMetric(peer, id, 5)

	_, ok := a.engine.RouteFor(peer)
	require.True(t, ok)

	a.handleLinkClosed(events.LinkClosed{ID: id})

	_, ok = a.links.Get(id)
	require.False(t, ok)
	route, ok := a.engine.RouteFor(peer)
	require.True(t, ok)
	require.GreaterOrEqual(t, route.Metric, routing.Inf)
}

func TestPendingPings_StartedAndClear(t *testing.T) {
	p := newPendingPings()
	peerSecret, err := identity.Generate()
	require.NoError(t, err)
	peer, err := peerSecret.Public()
	require.NoError(t, err)

	_, ok := p.Started(peer)
	require.False(t, ok)

	p.Start(peer)
	_, ok = p.Started(peer)
	require.True(t, ok)

	p.Clear(peer)
	_, ok = p.Started(peer)
	require.False(t, ok)
}
