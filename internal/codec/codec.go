// Package codec implements the erasure-coding primitive entropy's fragments
// are built from. The spec describes a rateless fountain code; this
// implementation adapts that interface onto github.com/klauspost/reedsolomon,
// a fixed-rate (k data, m parity) Reed-Solomon code — see SPEC_FULL.md §6 for
// why that substitution preserves every protocol-visible guarantee the
// entropy peer depends on (any k of the resulting k+m shards recover the
// object), at the cost of a fixed total shard count decided at construction.
package codec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Chunk is the 256-bit content identifier for an object.
type Chunk [32]byte

func (c Chunk) String() string { return fmt.Sprintf("%x", c[:]) }

// Payload is a fragment's raw bytes.
type Payload []byte

// Encoder is immutable once built and safe to share (read-only) across
// concurrent Encode calls — every shard, data and parity, is computed once
// at construction time.
type Encoder struct {
	shards      [][]byte
	fragmentLen int
}

// NewEncoder slices buf (which must be exactly dataShards*fragmentLen bytes)
// into data shards and computes parityShards parity shards alongside them.
func NewEncoder(buf []byte, fragmentLen, dataShards, parityShards int) (*Encoder, error) {
	expected := fragmentLen * dataShards
	if len(buf) != expected {
		return nil, fmt.Errorf("codec: buffer length %d does not match %d data shards of %d bytes", len(buf), dataShards, fragmentLen)
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("codec: constructing reed-solomon encoder: %w", err)
	}
	shards := make([][]byte, dataShards+parityShards)
	for i := 0; i < dataShards; i++ {
		shard := make([]byte, fragmentLen)
		copy(shard, buf[i*fragmentLen:(i+1)*fragmentLen])
		shards[i] = shard
	}
	for i := dataShards; i < dataShards+parityShards; i++ {
		shards[i] = make([]byte, fragmentLen)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("codec: computing parity shards: %w", err)
	}
	return &Encoder{shards: shards, fragmentLen: fragmentLen}, nil
}

// Encode returns the fragment at index, which must be within [0, dataShards+parityShards).
// Unlike a true rateless code, indices are bounded by the shard count fixed
// at construction — the entropy peer derives parityShards = n - k so every
// index it ever hands out through Invite/InviteOk stays representable.
func (e *Encoder) Encode(index uint32) (Payload, error) {
	if int(index) >= len(e.shards) {
		return nil, fmt.Errorf("codec: index %d out of range for %d shards", index, len(e.shards))
	}
	out := make([]byte, e.fragmentLen)
	copy(out, e.shards[index])
	return Payload(out), nil
}

// Decoder accumulates fragments for one chunk and reconstructs the object
// once enough shards have arrived. Decoders are exclusively owned: whoever
// holds the pointer at a given moment (a session or a worker) is the sole
// mutator, never both at once.
type Decoder struct {
	shards       [][]byte
	dataShards   int
	parityShards int
	fragmentLen  int
	have         int
	reconstructed bool
}

// NewDecoder creates an empty decoder for a chunk encoded with the given
// shard layout.
func NewDecoder(fragmentLen, dataShards, parityShards int) *Decoder {
	return &Decoder{
		shards:       make([][]byte, dataShards+parityShards),
		dataShards:   dataShards,
		parityShards: parityShards,
		fragmentLen:  fragmentLen,
	}
}

// Feed records one fragment. It returns true once at least dataShards
// distinct fragments have been received and the object (and all parity
// shards) have been reconstructed.
func (d *Decoder) Feed(index uint32, fragment Payload) (bool, error) {
	if int(index) >= len(d.shards) {
		return false, fmt.Errorf("codec: index %d out of range for %d shards", index, len(d.shards))
	}
	if d.shards[index] == nil {
		shard := make([]byte, d.fragmentLen)
		copy(shard, fragment)
		d.shards[index] = shard
		d.have++
	}
	if d.have < d.dataShards || d.reconstructed {
		return d.reconstructed, nil
	}
	enc, err := reedsolomon.New(d.dataShards, d.parityShards)
	if err != nil {
		return false, fmt.Errorf("codec: constructing reed-solomon decoder: %w", err)
	}
	if err := enc.Reconstruct(d.shards); err != nil {
		return false, fmt.Errorf("codec: reconstructing shards: %w", err)
	}
	d.reconstructed = true
	return true, nil
}

// Recover returns the original object bytes. Must only be called once Feed
// has reported completion.
func (d *Decoder) Recover() (Payload, error) {
	if !d.reconstructed {
		return nil, fmt.Errorf("codec: decoder not yet complete")
	}
	out := make([]byte, 0, d.dataShards*d.fragmentLen)
	for i := 0; i < d.dataShards; i++ {
		out = append(out, d.shards[i]...)
	}
	return Payload(out), nil
}

// ShardAt returns the (possibly reconstructed) shard at index, used by the
// persist-worker re-encode path once the decoder has completed.
func (d *Decoder) ShardAt(index uint32) (Payload, error) {
	if !d.reconstructed {
		return nil, fmt.Errorf("codec: decoder not yet complete")
	}
	if int(index) >= len(d.shards) {
		return nil, fmt.Errorf("codec: index %d out of range for %d shards", index, len(d.shards))
	}
	out := make([]byte, d.fragmentLen)
	copy(out, d.shards[index])
	return Payload(out), nil
}
