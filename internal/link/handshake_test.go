package link

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func genSecret(t *testing.T) (identity.EntitySecret, identity.Entity) {
	t.Helper()
	secret, err := identity.Generate()
	require.NoError(t, err)
	pub, err := secret.Public()
	require.NoError(t, err)
	return secret, pub
}

func alwaysTrust(identity.Entity) bool     { return true }
func neverTaken(uuid.UUID) bool            { return false }

func TestHandshake_Success(t *testing.T) {
	t.Parallel()

	dialerSecret, dialerPub := genSecret(t)
	listenerSecret, listenerPub := genSecret(t)

	dialerConn, listenerConn := net.Pipe()
	defer dialerConn.Close()
	defer listenerConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dialerErr := make(chan error, 1)
	var dialerLinkID uuid.UUID
	go func() {
		id, err := DialerHandshake(ctx, dialerConn, dialerSecret, listenerPub, alwaysTrust, neverTaken)
		dialerLinkID = id
		dialerErr <- err
	}()

	listenerID, peer, err := ListenerHandshake(ctx, listenerConn, listenerSecret, alwaysTrust, neverTaken)
	require.NoError(t, err)
	require.True(t, peer.Equal(dialerPub))

	require.NoError(t, <-dialerErr)
	require.Equal(t, dialerLinkID, listenerID)
}

func TestHandshake_UntrustedPeerRejected(t *testing.T) {
	t.Parallel()

	dialerSecret, _ := genSecret(t)
	listenerSecret, listenerPub := genSecret(t)

	dialerConn, listenerConn := net.Pipe()
	defer dialerConn.Close()
	defer listenerConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		_, _ = DialerHandshake(ctx, dialerConn, dialerSecret, listenerPub, alwaysTrust, neverTaken)
	}()

	never := func(identity.Entity) bool { return false }
	_, _, err := ListenerHandshake(ctx, listenerConn, listenerSecret, never, neverTaken)
	require.ErrorIs(t, err, ErrUntrustedPeer)
}

func TestHandshake_LinkIDReuseRejected(t *testing.T) {
	t.Parallel()

	dialerSecret, _ := genSecret(t)
	listenerSecret, listenerPub := genSecret(t)

	dialerConn, listenerConn := net.Pipe()
	defer dialerConn.Close()
	defer listenerConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		_, _ = DialerHandshake(ctx, dialerConn, dialerSecret, listenerPub, alwaysTrust, neverTaken)
	}()

	taken := func(uuid.UUID) bool { return true }
	_, _, err := ListenerHandshake(ctx, listenerConn, listenerSecret, alwaysTrust, taken)
	require.ErrorIs(t, err, ErrLinkIDInUse)
}

func TestHandshake_ExpiredClaimRejected(t *testing.T) {
	t.Parallel()

	listenerSecret, _ := genSecret(t)
	dialerSecret, dialerPub := genSecret(t)

	id := uuid.New()
	past := time.Now().Add(-time.Hour)
	claim := identity.NewClaim(id, past, past.Add(time.Second)) // already expired
	signed, err := identity.SignClaim(claim, dialerSecret)
	require.NoError(t, err)

	err = signed.Validate(dialerPub)
	require.ErrorIs(t, err, identity.ErrInactive)

	dialerConn, listenerConn := net.Pipe()
	defer dialerConn.Close()
	defer listenerConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		_ = writeConnect(dialerConn, Connect{PeerAddr: dialerPub, LinkID: signed})
	}()

	_, _, err = ListenerHandshake(ctx, listenerConn, listenerSecret, alwaysTrust, neverTaken)
	require.ErrorIs(t, err, identity.ErrInactive)
}
