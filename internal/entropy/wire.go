package entropy

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"boson/internal/codec"
	"boson/internal/identity"
)

// Invite is sent by a PUT initiator to the multicast group for a chunk.
type Invite struct {
	Chunk  codec.Chunk
	PeerID identity.PeerId
}

// InviteOk is sent point-to-point back to an inviter. Index is chosen by
// the responder and is final for the life of the chunk on that peer. Proof
// is a reserved field the source never populates or verifies (spec §9 open
// question (a)); it is threaded through so a future implementer has
// somewhere to hang real proof-of-storage material without a wire break.
type InviteOk struct {
	Chunk  codec.Chunk
	Index  uint32
	PeerID identity.PeerId
	Proof  []byte
}

// SendFragmentMeta is the metadata carried alongside a bulk-service offer.
// PeerID is set when the recipient must reply with a signed receipt, and nil
// for pull-service responses (no receipt expected).
type SendFragmentMeta struct {
	Chunk  codec.Chunk
	Index  uint32
	PeerID *identity.PeerId
}

// FragmentAvailablePayload is the value signed inside a FragmentAvailable
// receipt.
type FragmentAvailablePayload struct {
	Chunk  codec.Chunk
	PeerID identity.PeerId
}

// FragmentAvailable is the signed receipt that makes an index count toward
// an upload's available set.
type FragmentAvailable = identity.Verifiable[FragmentAvailablePayload]

// Pull is multicast by a GET initiator.
type Pull struct {
	Chunk  codec.Chunk
	PeerID identity.PeerId
}

// WireMessage is the overlay-multiplexed envelope carrying exactly one of
// entropy's four overlay messages; SendFragment metadata travels with the
// bulk transfer instead (see SendFragmentMeta). The overlay's own FindPeer/FindPeerOk/BlobServe
// sub-messages are out of entropy's scope and are not represented here.
type WireMessage struct {
	Invite            *Invite
	InviteOk          *InviteOk
	FragmentAvailable *FragmentAvailable
	Pull              *Pull
}

// EncodeWire serializes msg with the deterministic binary codec shared by
// every signed value in this package (see identity.Sign/Verify).
func EncodeWire(msg WireMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("entropy: encoding wire message: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWire parses a WireMessage. Callers must still verify any embedded
// signature before acting on a FragmentAvailable.
func DecodeWire(buf []byte) (WireMessage, error) {
	var msg WireMessage
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&msg); err != nil {
		return WireMessage{}, fmt.Errorf("entropy: decoding wire message: %w", err)
	}
	return msg, nil
}
