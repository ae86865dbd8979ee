package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntitySecret_SignAndVerify(t *testing.T) {
	t.Parallel()

	secret, err := Generate()
	require.NoError(t, err)

	pub, err := secret.Public()
	require.NoError(t, err)

	msg := []byte("hello nylon")
	sig, err := secret.Sign(msg)
	require.NoError(t, err)

	require.True(t, pub.Verify(msg, sig))
	require.False(t, pub.Verify([]byte("tampered"), sig))
}

func TestEntity_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	secret, err := Generate()
	require.NoError(t, err)
	pub, err := secret.Public()
	require.NoError(t, err)

	b, err := pub.MarshalJSON()
	require.NoError(t, err)

	var got Entity
	require.NoError(t, got.UnmarshalJSON(b))
	require.True(t, pub.Equal(got))
}

func TestSignedClaim_Validate(t *testing.T) {
	t.Parallel()

	secret, err := Generate()
	require.NoError(t, err)
	pub, err := secret.Public()
	require.NoError(t, err)

	other, err := Generate()
	require.NoError(t, err)
	otherPub, err := other.Public()
	require.NoError(t, err)

	now := time.Now()
	claim := NewClaim("payload", now.Add(-time.Second), now.Add(5*time.Second))
	signed, err := SignClaim(claim, secret)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, signed.ValidateAt(pub, now))
	})

	t.Run("wrong_signer", func(t *testing.T) {
		require.ErrorIs(t, signed.ValidateAt(otherPub, now), ErrInvalidSignature)
	})

	t.Run("not_yet_active", func(t *testing.T) {
		early := now.Add(-10 * time.Second)
		require.ErrorIs(t, signed.ValidateAt(pub, early), ErrInactive)
	})

	t.Run("expired", func(t *testing.T) {
		late := now.Add(6 * time.Second)
		require.ErrorIs(t, signed.ValidateAt(pub, late), ErrInactive)
	})
}

func TestSignedClaim_ExpiredAfterReplayWindow(t *testing.T) {
	t.Parallel()

	secret, err := Generate()
	require.NoError(t, err)
	pub, err := secret.Public()
	require.NoError(t, err)

	now := time.Now()
	claim := NewClaim("link-id", now, now.Add(5*time.Second))
	signed, err := SignClaim(claim, secret)
	require.NoError(t, err)

	replayed := now.Add(11 * time.Second)
	require.ErrorIs(t, signed.ValidateAt(pub, replayed), ErrInactive)
}
