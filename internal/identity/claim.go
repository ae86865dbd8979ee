package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Forever is used in place of the maximum representable UTC instant for
// claims that should never expire.
var Forever = time.Unix(1<<62, 0).UTC()

var (
	// ErrInactive is returned when the current time falls outside a claim's
	// validity window.
	ErrInactive = errors.New("identity: claim is not active")
	// ErrInvalidSignature is returned when a claim's signature does not
	// verify under the supplied entity.
	ErrInvalidSignature = errors.New("identity: invalid signature")
	// ErrSerialization is returned when a claim cannot be canonically
	// serialised for signing or verification.
	ErrSerialization = errors.New("identity: serialization error")
)

// Claim is a payload plus a validity window and a random serial. Two claims
// over equal data are still distinguishable by serial.
type Claim[T any] struct {
	Data      T         `json:"data"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	Serial    uuid.UUID `json:"serial"`
}

// NewClaim builds a claim over data valid in [notBefore, notAfter).
func NewClaim[T any](data T, notBefore, notAfter time.Time) Claim[T] {
	return Claim[T]{
		Data:      data,
		NotBefore: notBefore,
		NotAfter:  notAfter,
		Serial:    uuid.New(),
	}
}

// canonicalBytes produces the deterministic JSON used for signing and
// verification: field order {data, not_before, not_after, serial}, RFC 3339
// timestamps, lower-case hyphenated UUID.
func (c Claim[T]) canonicalBytes() ([]byte, error) {
	type wire struct {
		Data      T      `json:"data"`
		NotBefore string `json:"not_before"`
		NotAfter  string `json:"not_after"`
		Serial    string `json:"serial"`
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(wire{
		Data:      c.Data,
		NotBefore: c.NotBefore.UTC().Format(time.RFC3339Nano),
		NotAfter:  c.NotAfter.UTC().Format(time.RFC3339Nano),
		Serial:    c.Serial.String(),
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SignedClaim is a Claim plus a signature over its canonical serialisation.
type SignedClaim[T any] struct {
	Claim     Claim[T] `json:"claim"`
	Signature []byte   `json:"signature"`
}

// SignClaim signs c with secret, producing a SignedClaim.
func SignClaim[T any](c Claim[T], secret EntitySecret) (SignedClaim[T], error) {
	msg, err := c.canonicalBytes()
	if err != nil {
		return SignedClaim[T]{}, ErrSerialization
	}
	sig, err := secret.Sign(msg)
	if err != nil {
		return SignedClaim[T]{}, err
	}
	return SignedClaim[T]{Claim: c, Signature: sig}, nil
}

// Validate succeeds iff now is within the claim's validity window and the
// signature verifies under pub.
func (sc SignedClaim[T]) Validate(pub Entity) error {
	return sc.ValidateAt(pub, time.Now())
}

// ValidateAt validates sc as of the supplied instant, for deterministic tests.
func (sc SignedClaim[T]) ValidateAt(pub Entity, now time.Time) error {
	msg, err := sc.Claim.canonicalBytes()
	if err != nil {
		return ErrSerialization
	}
	if now.Before(sc.Claim.NotBefore) || !now.Before(sc.Claim.NotAfter) {
		return ErrInactive
	}
	if !pub.Verify(msg, sc.Signature) {
		return ErrInvalidSignature
	}
	return nil
}
