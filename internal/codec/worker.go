package codec

import (
	"boson/internal/event"
	"boson/internal/worker"
)

// NewEncoderEvent is posted once a PUT's object buffer has been sliced and
// its parity shards computed.
type NewEncoderEvent struct {
	Chunk   Chunk
	Encoder *Encoder
}

// EncodeEvent carries one fragment produced on demand for an invited peer.
type EncodeEvent struct {
	Chunk    Chunk
	Index    uint32
	Fragment Payload
}

// DecodeEvent reports that a decoder accepted a fragment but still needs
// more before the object can be reconstructed.
type DecodeEvent struct {
	Chunk   Chunk
	Decoder *Decoder
}

// RecoverEvent carries the fully reconstructed object.
type RecoverEvent struct {
	Chunk   Chunk
	Payload Payload
}

// RecoverEncodeEvent carries the reconstructed object's shard at the
// requested re-encode index, used by the persist worker to store its own
// assigned fragment once decoding has completed.
type RecoverEncodeEvent struct {
	Chunk    Chunk
	Fragment Payload
}

// SubmitNewEncoder offloads slicing buf and computing parity shards.
func SubmitNewEncoder[S any](w *worker.Worker[S], chunk Chunk, buf []byte, fragmentLen, dataShards, parityShards int, onNewEncoder func(*S, NewEncoderEvent) error) error {
	return w.Submit(func() (event.Envelope[S], error) {
		enc, err := NewEncoder(buf, fragmentLen, dataShards, parityShards)
		if err != nil {
			return nil, err
		}
		return event.Bind(onNewEncoder, NewEncoderEvent{Chunk: chunk, Encoder: enc}), nil
	})
}

// SubmitEncode offloads producing the fragment at index from an already
// built encoder.
func SubmitEncode[S any](w *worker.Worker[S], chunk Chunk, index uint32, enc *Encoder, onEncode func(*S, EncodeEvent) error) error {
	return w.Submit(func() (event.Envelope[S], error) {
		fragment, err := enc.Encode(index)
		if err != nil {
			return nil, err
		}
		return event.Bind(onEncode, EncodeEvent{Chunk: chunk, Index: index, Fragment: fragment}), nil
	})
}

// SubmitFeed offloads feeding one fragment into a decoder. If the decoder
// completes and reEncodeIndex is non-nil, the re-encode path fires instead of
// the plain recover path.
func SubmitFeed[S any](
	w *worker.Worker[S],
	chunk Chunk,
	index uint32,
	fragment Payload,
	dec *Decoder,
	reEncodeIndex *uint32,
	onDecode func(*S, DecodeEvent) error,
	onRecover func(*S, RecoverEvent) error,
	onRecoverEncode func(*S, RecoverEncodeEvent) error,
) error {
	return w.Submit(func() (event.Envelope[S], error) {
		complete, err := dec.Feed(index, fragment)
		if err != nil {
			return nil, err
		}
		if !complete {
			return event.Bind(onDecode, DecodeEvent{Chunk: chunk, Decoder: dec}), nil
		}
		if reEncodeIndex != nil {
			frag, err := dec.ShardAt(*reEncodeIndex)
			if err != nil {
				return nil, err
			}
			return event.Bind(onRecoverEncode, RecoverEncodeEvent{Chunk: chunk, Fragment: frag}), nil
		}
		payload, err := dec.Recover()
		if err != nil {
			return nil, err
		}
		return event.Bind(onRecover, RecoverEvent{Chunk: chunk, Payload: payload}), nil
	})
}
