package duplex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDuplex_RoundTrip(t *testing.T) {
	t.Parallel()

	a, b := New[string, int](4)

	a.Out <- 42
	require.Equal(t, 42, <-b.In)

	b.Out <- "hello"
	require.Equal(t, "hello", <-a.In)
}

func TestMap_ForwardsUntilClosed(t *testing.T) {
	t.Parallel()

	in := make(chan int, 4)
	out := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Map(ctx, in, out, func(i int) string { return time.Duration(i).String() })
		close(done)
	}()

	in <- 1
	require.Equal(t, "1ns", <-out)

	close(in)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Map did not return after input closed")
	}
}

func TestMap_StopsOnCancellation(t *testing.T) {
	t.Parallel()

	in := make(chan int)
	out := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Map(ctx, in, out, func(i int) int { return i })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Map did not return after cancellation")
	}
}
