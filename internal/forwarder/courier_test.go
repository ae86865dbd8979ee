package forwarder

import (
	"log/slog"
	"testing"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	routes map[string]routing.Route
	sent   []sentPacket
}

type sentPacket struct {
	link uuid.UUID
	pkt  CourierPacket
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{routes: make(map[string]routing.Route)}
}

func (f *fakeRouter) RouteFor(dst identity.Entity) (routing.Route, bool) {
	r, ok := f.routes[dst.String()]
	return r, ok
}

func (f *fakeRouter) SendCourier(link uuid.UUID, pkt CourierPacket) {
	f.sent = append(f.sent, sentPacket{link: link, pkt: pkt})
}

type fakePending struct{}

func (fakePending) Started(identity.Entity) (int64, bool) { return 0, true }
func (fakePending) Clear(identity.Entity)                 {}

func newTestEntity(t *testing.T) identity.Entity {
	t.Helper()
	secret, err := identity.Generate()
	require.NoError(t, err)
	pub, err := secret.Public()
	require.NoError(t, err)
	return pub
}

func newCourier(t *testing.T, self identity.Entity, router *fakeRouter) *Courier {
	t.Helper()
	return &Courier{Self: self, Router: router, Pending: fakePending{}, Log: slog.Default()}
}

func TestCourier_Deliver_LocalPing_RepliesPong(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	sender := newTestEntity(t)
	link := uuid.New()

	router := newFakeRouter()
	router.routes[sender.String()] = routing.Route{NextHop: sender, Link: link, Metric: 1}

	c := newCourier(t, self, router)
	c.HandleCourierPacket(Deliver{Dst: self, Sender: sender, Data: Ping{}}, link)

	require.Len(t, router.sent, 1)
	deliver, ok := router.sent[0].pkt.(Deliver)
	require.True(t, ok)
	require.IsType(t, Pong{}, deliver.Data)
	require.Equal(t, link, router.sent[0].link)
}

func TestCourier_Deliver_ForwardsToRoute(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	sender := newTestEntity(t)
	dst := newTestEntity(t)
	inLink := uuid.New()
	outLink := uuid.New()

	router := newFakeRouter()
	router.routes[dst.String()] = routing.Route{NextHop: dst, Link: outLink, Metric: 1}

	c := newCourier(t, self, router)
	c.HandleCourierPacket(Deliver{Dst: dst, Sender: sender, Data: Message{Text: "hi"}}, inLink)

	require.Len(t, router.sent, 1)
	require.Equal(t, outLink, router.sent[0].link)
}

func TestCourier_Deliver_NoRoute_RepliesUndeliverable(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	sender := newTestEntity(t)
	dst := newTestEntity(t)
	link := uuid.New()

	router := newFakeRouter()
	router.routes[sender.String()] = routing.Route{NextHop: sender, Link: link, Metric: 1}

	c := newCourier(t, self, router)
	c.HandleCourierPacket(Deliver{Dst: dst, Sender: sender, Data: Message{Text: "hi"}}, link)

	require.Len(t, router.sent, 1)
	deliver := router.sent[0].pkt.(Deliver)
	undeliverable, ok := deliver.Data.(Undeliverable)
	require.True(t, ok)
	require.True(t, undeliverable.To.Equal(dst))
}

func TestCourier_TraceRoute_AppendsSelfAndRepliesAtDestination(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	sender := newTestEntity(t)
	hop1 := newTestEntity(t)
	link := uuid.New()

	router := newFakeRouter()
	router.routes[sender.String()] = routing.Route{NextHop: sender, Link: link, Metric: 1}

	c := newCourier(t, self, router)
	c.HandleCourierPacket(TraceRoute{Dst: self, Sender: sender, Path: []identity.Entity{hop1}}, link)

	require.Len(t, router.sent, 1)
	deliver := router.sent[0].pkt.(Deliver)
	traced, ok := deliver.Data.(TracedRoute)
	require.True(t, ok)
	require.Len(t, traced.Path, 2)
	require.True(t, traced.Path[0].Equal(hop1))
	require.True(t, traced.Path[1].Equal(self))
}

func TestCourier_TraceRoute_DropsSilentlyWithoutRoute(t *testing.T) {
	t.Parallel()

	self := newTestEntity(t)
	sender := newTestEntity(t)
	dst := newTestEntity(t)
	link := uuid.New()

	router := newFakeRouter()
	c := newCourier(t, self, router)
	c.HandleCourierPacket(TraceRoute{Dst: dst, Sender: sender, Path: nil}, link)

	require.Empty(t, router.sent)
}
