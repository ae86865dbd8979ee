package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_PostRecv(t *testing.T) {
	t.Parallel()

	q := NewQueue(context.Background(), 4)
	q.Post(Timer{Event: RouteUpdate{}})

	ev, ok := q.Recv()
	require.True(t, ok)
	require.IsType(t, Timer{}, ev)
}

func TestQueue_Shutdown_UnblocksRecv(t *testing.T) {
	t.Parallel()

	q := NewQueue(context.Background(), 4)
	done := make(chan NylonEvent, 1)
	go func() {
		ev, ok := q.Recv()
		if !ok {
			done <- nil
			return
		}
		done <- ev
	}()

	q.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not unblock after shutdown")
	}

	require.Error(t, q.Context().Err())
}

func TestQueue_Shutdown_IsIdempotentFromCallerSide(t *testing.T) {
	t.Parallel()

	q := NewQueue(context.Background(), 1)
	q.Shutdown()
	q.Shutdown() // must not panic on a second cancel or a full buffer

	_, ok := q.Recv()
	require.True(t, ok, "a NoOp or buffered event should still be observed once")
}
