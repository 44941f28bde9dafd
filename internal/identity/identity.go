// Package identity implements peer identity: key pairs, the derived PeerId,
// signed PeerRecords, and the generic Verifiable envelope used to carry a
// signature alongside any message.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
)

// PeerId is the 256-bit digest of a peer's public key.
type PeerId [32]byte

func (id PeerId) String() string {
	return fmt.Sprintf("%x", id[:])
}

// KeyPair holds a peer's signing identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 identity.
//
// Stdlib crypto/ed25519 is used here rather than one of the example pack's
// ed25519 forks (hdevalence/ed25519consensus, loinfish/ed25519): those forks
// exist to pin down consensus-critical batch-verification or malleability
// rules for specific chains, which this protocol does not need — the spec's
// Non-goals explicitly say "any sign/verify with public-key identity
// suffices". Stdlib is the correct "no suitable third-party library" case.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("identity: generating key pair: %w", err)
	}
	return KeyPair{Public: pub, private: priv}, nil
}

// ID derives the PeerId (SHA-256 digest of the public key).
func (k KeyPair) ID() PeerId {
	return IDFromPublicKey(k.Public)
}

// IDFromPublicKey derives a PeerId from any Ed25519 public key.
func IDFromPublicKey(pub ed25519.PublicKey) PeerId {
	return PeerId(sha256.Sum256(pub))
}

// PeerRecord binds a PeerId to a network address, signed by the peer itself.
type PeerRecord struct {
	ID        PeerId
	Addr      string
	PublicKey ed25519.PublicKey
	Signature []byte
}

// NewPeerRecord builds and signs a record for addr.
func (k KeyPair) NewPeerRecord(addr string) (PeerRecord, error) {
	record := PeerRecord{ID: k.ID(), Addr: addr, PublicKey: k.Public}
	payload, err := recordPayload(record)
	if err != nil {
		return PeerRecord{}, err
	}
	record.Signature = ed25519.Sign(k.private, payload)
	return record, nil
}

// Verify checks a PeerRecord's self-signature and that its ID matches its key.
func (r PeerRecord) Verify() bool {
	if r.ID != IDFromPublicKey(r.PublicKey) {
		return false
	}
	payload, err := recordPayload(r)
	if err != nil {
		return false
	}
	return ed25519.Verify(r.PublicKey, payload, r.Signature)
}

func recordPayload(r PeerRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(struct {
		ID   PeerId
		Addr string
	}{r.ID, r.Addr}); err != nil {
		return nil, fmt.Errorf("identity: encoding record payload: %w", err)
	}
	return buf.Bytes(), nil
}

// Verifiable pairs any value with the signature and public key of its
// signer, mirroring original_source's Verifiable<T> envelope.
type Verifiable[T any] struct {
	Value     T
	PeerID    PeerId
	PublicKey ed25519.PublicKey
	Signature []byte
}

// Sign wraps value into a signed envelope.
func Sign[T any](k KeyPair, value T) (Verifiable[T], error) {
	payload, err := gobEncode[T](value)
	if err != nil {
		return Verifiable[T]{}, fmt.Errorf("identity: encoding value to sign: %w", err)
	}
	return Verifiable[T]{
		Value:     value,
		PeerID:    k.ID(),
		PublicKey: k.Public,
		Signature: ed25519.Sign(k.private, payload),
	}, nil
}

// Verify checks that v.PeerID is the digest of v.PublicKey and that the
// signature covers v.Value. A failure here must result in the message being
// dropped silently (spec §4.7: malformed signatures are not surfaced).
func Verify[T any](v Verifiable[T]) bool {
	if v.PeerID != IDFromPublicKey(v.PublicKey) {
		return false
	}
	payload, err := gobEncode[T](v.Value)
	if err != nil {
		return false
	}
	return ed25519.Verify(v.PublicKey, payload, v.Signature)
}

func gobEncode[T any](value T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
