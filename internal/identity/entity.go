// Package identity implements node identities and time-bounded signed
// claims over an ECDSA P-256 keypair.
package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Entity is an immutable public identity: the raw bytes of an ECDSA P-256
// public key. Equality is over those bytes.
type Entity struct {
	pub []byte
}

// NewEntity wraps raw public key bytes as an Entity.
func NewEntity(pub []byte) Entity {
	cp := make([]byte, len(pub))
	copy(cp, pub)
	return Entity{pub: cp}
}

// Bytes returns the raw public key bytes.
func (e Entity) Bytes() []byte { return e.pub }

// Equal reports whether two entities carry the same key bytes.
func (e Entity) Equal(o Entity) bool {
	if len(e.pub) != len(o.pub) {
		return false
	}
	for i := range e.pub {
		if e.pub[i] != o.pub[i] {
			return false
		}
	}
	return true
}

// String renders the entity as lowercase hex.
func (e Entity) String() string { return hex.EncodeToString(e.pub) }

// MarshalJSON encodes the entity as base64, matching the wire's JSON framing.
func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(e.pub))
}

// UnmarshalJSON decodes a base64-encoded entity.
func (e *Entity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("identity: decoding entity: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("identity: decoding entity base64: %w", err)
	}
	e.pub = raw
	return nil
}

func (e Entity) publicKey() (*ecdsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(e.pub)
	if err != nil {
		return nil, fmt.Errorf("identity: parsing public key: %w", err)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("identity: public key is not ECDSA")
	}
	return pub, nil
}

// EntitySecret is ECDSA P-256 private key material in PKCS#8 DER form. It is
// used only to sign and is never transmitted.
type EntitySecret struct {
	pkcs8 []byte
}

// Generate produces a fresh P-256 keypair using a CSPRNG.
func Generate() (EntitySecret, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return EntitySecret{}, fmt.Errorf("identity: generating key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return EntitySecret{}, fmt.Errorf("identity: marshaling key: %w", err)
	}
	return EntitySecret{pkcs8: der}, nil
}

// NewEntitySecretFromPKCS8 wraps existing PKCS#8 DER bytes.
func NewEntitySecretFromPKCS8(der []byte) EntitySecret {
	cp := make([]byte, len(der))
	copy(cp, der)
	return EntitySecret{pkcs8: cp}
}

func (s EntitySecret) key() (*ecdsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(s.pkcs8)
	if err != nil {
		return nil, fmt.Errorf("identity: parsing secret key: %w", err)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("identity: secret key is not ECDSA")
	}
	return priv, nil
}

// Public derives the Entity (public key) for this secret.
func (s EntitySecret) Public() (Entity, error) {
	priv, err := s.key()
	if err != nil {
		return Entity{}, err
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return Entity{}, fmt.Errorf("identity: marshaling public key: %w", err)
	}
	return NewEntity(der), nil
}

// Sign produces an ECDSA P-256/SHA-256 ASN.1 DER signature over data.
func (s EntitySecret) Sign(data []byte) ([]byte, error) {
	priv, err := s.key()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("identity: signing: %w", err)
	}
	return sig, nil
}

// Verify checks an ECDSA P-256/SHA-256 ASN.1 DER signature under e.
func (e Entity) Verify(data, sig []byte) bool {
	pub, err := e.publicKey()
	if err != nil {
		return false
	}
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

// MarshalJSON encodes the secret as base64 PKCS#8, matching node.json's shape.
func (s EntitySecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(s.pkcs8))
}

// UnmarshalJSON decodes a base64-encoded PKCS#8 secret.
func (s *EntitySecret) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("identity: decoding secret: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return fmt.Errorf("identity: decoding secret base64: %w", err)
	}
	s.pkcs8 = raw
	return nil
}
