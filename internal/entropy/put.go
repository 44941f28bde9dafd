package entropy

import (
	"fmt"

	"boson/internal/codec"
	"boson/internal/event"
	"boson/internal/identity"
)

// PutRequest carries a synchronous Put call into the peer's session;
// Result receives the single PutOk/error outcome.
type PutRequest struct {
	Preimage []byte
	Buf      []byte
	Result   chan<- error
}

// Put installs an upload entry and starts codec construction. Per spec §4.6.2
// step 1, a length mismatch is an immediate local error with no wire traffic;
// a second Put for a chunk already mid-flight (as an upload or a download) is
// also a local error (spec §7: duplicate state).
func (p *Peer) Put(preimage, buf []byte) error {
	result := make(chan error, 1)
	if err := event.Emit(p.selfSender, onPut, PutRequest{Preimage: preimage, Buf: buf, Result: result}); err != nil {
		return err
	}
	return <-result
}

func onPut(p *Peer, req PutRequest) error {
	if p.metrics != nil {
		p.metrics.PutsStarted.Inc()
	}
	if len(req.Buf) != p.params.K*p.params.FragmentLen {
		req.Result <- fmt.Errorf("entropy: put buffer length %d does not match k*fragment_len (%d*%d)", len(req.Buf), p.params.K, p.params.FragmentLen)
		return nil
	}
	chunk := ChunkOf(req.Preimage)
	if _, exists := p.uploads[chunk]; exists {
		req.Result <- fmt.Errorf("entropy: put already in progress for chunk %s", chunk)
		return nil
	}
	if _, exists := p.downloads[chunk]; exists {
		req.Result <- fmt.Errorf("entropy: get already in progress for chunk %s", chunk)
		return nil
	}

	entry := &uploadEntry{
		preimage:  req.Preimage,
		pending:   make(map[uint32]identity.PeerId),
		available: make(map[identity.PeerId]struct{}),
		cancel:    newCancelToken(),
		result:    req.Result,
	}
	p.uploads[chunk] = entry

	return codec.SubmitNewEncoder(p.codecWorker, chunk, req.Buf, p.params.FragmentLen, p.params.K, p.params.parityShards(), onNewEncoder)
}

func onNewEncoder(p *Peer, ev codec.NewEncoderEvent) error {
	entry, ok := p.uploads[ev.Chunk]
	if !ok {
		return nil // upload was cancelled/concluded before construction finished
	}
	entry.encoder = ev.Encoder

	invite := Invite{Chunk: ev.Chunk, PeerID: p.self.ID()}
	buf, err := EncodeWire(WireMessage{Invite: &invite})
	if err != nil {
		return err
	}
	return p.overlay.Multicast(ev.Chunk, p.params.M, buf)
}

func onRecvInviteOk(p *Peer, msg InviteOk) error {
	entry, ok := p.uploads[msg.Chunk]
	if !ok {
		return nil // drop: no such upload
	}
	if _, reserved := entry.pending[msg.Index]; reserved {
		return nil // duplicate InviteOk for this index: ignored
	}
	entry.pending[msg.Index] = msg.PeerID
	if entry.encoder == nil {
		return nil // NewEncoder has not landed yet (should not happen: Invite follows it)
	}
	return codec.SubmitEncode(p.codecWorker, msg.Chunk, msg.Index, entry.encoder, onEncode)
}

func onEncode(p *Peer, ev codec.EncodeEvent) error {
	entry, ok := p.uploads[ev.Chunk]
	if !ok {
		return nil
	}
	to, reserved := entry.pending[ev.Index]
	if !reserved {
		return nil
	}
	record, found := p.overlay.FindPeer(to)
	if !found {
		p.log.Warnf("entropy: no known address for invited peer %s", to)
		return nil
	}

	self := p.self.ID()
	meta := SendFragmentMeta{Chunk: ev.Chunk, Index: ev.Index, PeerID: &self}
	go p.offer(record.Addr, meta, ev.Fragment, entry.cancel, ev.Chunk, ev.Index, to)
	return nil
}

func onRecvFragmentAvailable(p *Peer, msg FragmentAvailable) error {
	if !identity.Verify(msg) {
		// malformed signature (this also checks peer_id == H(peer_key)): drop
		p.log.Warnf("entropy: dropping fragment-available for %s with invalid signature", msg.Value.Chunk)
		return nil
	}
	entry, ok := p.uploads[msg.Value.Chunk]
	if !ok {
		return nil
	}
	entry.available[msg.PeerID] = struct{}{}
	if len(entry.available) < p.params.N {
		return nil
	}

	delete(p.uploads, msg.Value.Chunk)
	entry.cancel.Cancel()
	if entry.result != nil {
		entry.result <- nil
	}
	if p.onPutOk != nil {
		p.onPutOk(entry.preimage)
	}
	return nil
}
