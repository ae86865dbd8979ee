package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/wire"
	"github.com/google/uuid"
)

// ErrUntrustedPeer is returned when a handshake peer's identity is not in
// the trusted node roster.
var ErrUntrustedPeer = errors.New("link: peer is not in the trusted node roster")

// ErrLinkIDInUse is returned when a handshake would bind to a LinkId that
// already names an active link.
var ErrLinkIDInUse = errors.New("link: link id already in use")

// Trust resolves whether an entity is a trusted member of the network, per
// the central configuration.
type Trust func(identity.Entity) bool

func readConnect(ctx context.Context, conn net.Conn) (Connect, error) {
	_ = conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	frame, err := wire.ReadFrameContext(ctx, conn)
	if err != nil {
		return Connect{}, fmt.Errorf("link: reading connect: %w", err)
	}
	var c Connect
	if err := json.Unmarshal(frame, &c); err != nil {
		return Connect{}, fmt.Errorf("link: decoding connect: %w", err)
	}
	return c, nil
}

func writeConnect(conn net.Conn, c Connect) error {
	frame, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("link: encoding connect: %w", err)
	}
	return wire.WriteFrame(conn, frame)
}

// DialerHandshake performs the dialer side of the handshake: it proposes a
// fresh LinkId, proves ownership of localSecret, and validates the
// listener's response against the expected peer identity and the trusted
// roster. On success it returns the agreed LinkId.
func DialerHandshake(ctx context.Context, conn net.Conn, localSecret identity.EntitySecret, expectedPeer identity.Entity, trusted Trust, isLinkIDTaken func(uuid.UUID) bool) (uuid.UUID, error) {
	localPub, err := localSecret.Public()
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	now := time.Now()
	claim := identity.NewClaim(id, now, now.Add(HandshakeClaimTTL))
	signed, err := identity.SignClaim(claim, localSecret)
	if err != nil {
		return uuid.Nil, err
	}

	if err := writeConnect(conn, Connect{PeerAddr: localPub, LinkID: signed}); err != nil {
		return uuid.Nil, err
	}

	resp, err := readConnect(ctx, conn)
	if err != nil {
		return uuid.Nil, err
	}

	if resp.LinkID.Claim.Data != id {
		return uuid.Nil, fmt.Errorf("link: response echoed a different link id")
	}
	if !resp.PeerAddr.Equal(expectedPeer) {
		return uuid.Nil, fmt.Errorf("link: response peer address does not match expected dial target")
	}
	if err := resp.LinkID.Validate(resp.PeerAddr); err != nil {
		return uuid.Nil, fmt.Errorf("link: invalid response signature: %w", err)
	}
	if !trusted(resp.PeerAddr) {
		return uuid.Nil, ErrUntrustedPeer
	}
	if isLinkIDTaken(id) {
		return uuid.Nil, ErrLinkIDInUse
	}

	return id, nil
}

// ListenerHandshake performs the listener side of the handshake: it reads
// the dialer's Connect, validates it, and echoes a freshly signed claim
// bound to the *received* id. On success it returns the agreed LinkId and
// the dialer's identity.
func ListenerHandshake(ctx context.Context, conn net.Conn, localSecret identity.EntitySecret, trusted Trust, isLinkIDTaken func(uuid.UUID) bool) (uuid.UUID, identity.Entity, error) {
	req, err := readConnect(ctx, conn)
	if err != nil {
		return uuid.Nil, identity.Entity{}, err
	}

	if !trusted(req.PeerAddr) {
		return uuid.Nil, identity.Entity{}, ErrUntrustedPeer
	}
	if err := req.LinkID.Validate(req.PeerAddr); err != nil {
		return uuid.Nil, identity.Entity{}, fmt.Errorf("link: invalid connect signature: %w", err)
	}
	id := req.LinkID.Claim.Data
	if isLinkIDTaken(id) {
		return uuid.Nil, identity.Entity{}, ErrLinkIDInUse
	}

	localPub, err := localSecret.Public()
	if err != nil {
		return uuid.Nil, identity.Entity{}, err
	}

	now := time.Now()
	claim := identity.NewClaim(id, now, now.Add(HandshakeClaimTTL))
	signed, err := identity.SignClaim(claim, localSecret)
	if err != nil {
		return uuid.Nil, identity.Entity{}, err
	}

	if err := writeConnect(conn, Connect{PeerAddr: localPub, LinkID: signed}); err != nil {
		return uuid.Nil, identity.Entity{}, err
	}

	return id, req.PeerAddr, nil
}
