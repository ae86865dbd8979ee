package routing

import (
	"testing"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestEntity(t *testing.T) identity.Entity {
	t.Helper()
	secret, err := identity.Generate()
	require.NoError(t, err)
	pub, err := secret.Public()
	require.NoError(t, err)
	return pub
}

func TestEngine_DirectNeighbourRoute(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	nb := newTestEntity(t)
	link := uuid.New()

	eng := New(self)
	eng.SetLinkMetric(nb, link, 10)

	route, ok := eng.RouteFor(nb)
	require.True(t, ok)
	require.Equal(t, uint16(10), route.Metric)
	require.Equal(t, link, route.Link)
	require.True(t, route.NextHop.Equal(nb))
}

func TestEngine_HandlePacket_TransitRoute(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	nb := newTestEntity(t)
	dest := newTestEntity(t)
	link := uuid.New()

	eng := New(self)
	eng.SetLinkMetric(nb, link, 5)

	eng.HandlePacket(Packet{Entries: []Entry{{Dest: dest, Metric: 5, Seq: 1}}}, link, nb)

	route, ok := eng.RouteFor(dest)
	require.True(t, ok)
	require.Equal(t, uint16(10), route.Metric)
	require.True(t, route.NextHop.Equal(nb))
}

func TestEngine_HandlePacket_IgnoresSelfAdvertisement(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	nb := newTestEntity(t)
	link := uuid.New()

	eng := New(self)
	eng.SetLinkMetric(nb, link, 5)
	eng.HandlePacket(Packet{Entries: []Entry{{Dest: self, Metric: 1, Seq: 1}}}, link, nb)

	_, ok := eng.RouteFor(self)
	require.False(t, ok)
}

func TestEngine_HandlePacket_RejectsUnknownLink(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	nb := newTestEntity(t)
	dest := newTestEntity(t)

	eng := New(self)
	eng.HandlePacket(Packet{Entries: []Entry{{Dest: dest, Metric: 5, Seq: 1}}}, uuid.New(), nb)

	_, ok := eng.RouteFor(dest)
	require.False(t, ok)
	require.NotEmpty(t, eng.Warnings())
}

func TestEngine_RemoveLink_WithdrawsTransitRoutes(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	nb := newTestEntity(t)
	dest := newTestEntity(t)
	link := uuid.New()

	eng := New(self)
	eng.SetLinkMetric(nb, link, 5)
	eng.HandlePacket(Packet{Entries: []Entry{{Dest: dest, Metric: 5, Seq: 1}}}, link, nb)

	eng.RemoveLink(nb)

	route, ok := eng.RouteFor(dest)
	require.True(t, ok)
	require.Equal(t, Inf, route.Metric)
}

func TestEngine_FullUpdate_SplitHorizonPoisonsReverse(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	nb := newTestEntity(t)
	link := uuid.New()

	eng := New(self)
	eng.SetLinkMetric(nb, link, 5)
	eng.FullUpdate()

	packets := eng.OutboundPackets()
	require.Len(t, packets, 1)
	require.Equal(t, link, packets[0].Link)
	require.Len(t, packets[0].Data.Entries, 1)
	require.True(t, packets[0].Data.Entries[0].Retract)
	require.Equal(t, Inf, packets[0].Data.Entries[0].Metric)
}

func TestEngine_Update_OnlyEmitsDirtyDestinations(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	nbA := newTestEntity(t)
	nbB := newTestEntity(t)
	destA := newTestEntity(t)

	eng := New(self)
	eng.SetLinkMetric(nbA, uuid.New(), 5)
	eng.SetLinkMetric(nbB, uuid.New(), 5)
	eng.FullUpdate()
	eng.OutboundPackets() // drain initial full update

	eng.HandlePacket(Packet{Entries: []Entry{{Dest: destA, Metric: 5, Seq: 1}}}, eng.neighbours[key(nbA)].link, nbA)
	eng.Update()

	packets := eng.OutboundPackets()
	require.NotEmpty(t, packets)
	for _, p := range packets {
		for _, e := range p.Data.Entries {
			require.True(t, e.Dest.Equal(destA))
		}
	}
}
