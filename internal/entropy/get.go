package entropy

import (
	"fmt"

	"boson/internal/event"
	"boson/internal/fsstore"
)

// GetRequest carries a synchronous Get call into the peer's session.
type GetRequest struct {
	Preimage []byte
	Result   chan<- GetResult
}

// Get installs a download entry and multicasts Pull to the chunk's group,
// blocking until the decoder recovers the object or the call is rejected for
// a chunk already in flight.
func (p *Peer) Get(preimage []byte) ([]byte, error) {
	result := make(chan GetResult, 1)
	if err := event.Emit(p.selfSender, onGet, GetRequest{Preimage: preimage, Result: result}); err != nil {
		return nil, err
	}
	r := <-result
	return r.Bytes, r.Err
}

func onGet(p *Peer, req GetRequest) error {
	if p.metrics != nil {
		p.metrics.GetsStarted.Inc()
	}
	chunk := ChunkOf(req.Preimage)
	if _, exists := p.downloads[chunk]; exists {
		req.Result <- GetResult{Err: fmt.Errorf("entropy: get already in progress for chunk %s", chunk)}
		return nil
	}
	if _, exists := p.uploads[chunk]; exists {
		req.Result <- GetResult{Err: fmt.Errorf("entropy: put in progress for chunk %s", chunk)}
		return nil
	}

	p.downloads[chunk] = &downloadEntry{
		preimage: req.Preimage,
		recover:  newRecoverState(p.params),
		result:   req.Result,
	}

	pull := Pull{Chunk: chunk, PeerID: p.self.ID()}
	buf, err := EncodeWire(WireMessage{Pull: &pull})
	if err != nil {
		return err
	}
	return p.overlay.Multicast(chunk, p.params.M, buf)
}

func onRecvPull(p *Peer, msg Pull) error {
	entry, ok := p.persists[msg.Chunk]
	if !ok || entry.status != statusAvailable {
		return nil
	}
	p.pendingPulls[msg.Chunk] = append(p.pendingPulls[msg.Chunk], msg.PeerID)
	return fsstore.SubmitLoad(p.fsWorker, p.fs, msg.Chunk, entry.index, true, onLoadOk)
}

func onLoadOk(p *Peer, ev fsstore.LoadOkEvent) error {
	if p.metrics != nil {
		p.metrics.FragmentsLoaded.Inc()
	}
	peers := p.pendingPulls[ev.Chunk]
	delete(p.pendingPulls, ev.Chunk)
	for _, to := range peers {
		record, found := p.overlay.FindPeer(to)
		if !found {
			continue
		}
		meta := SendFragmentMeta{Chunk: ev.Chunk, Index: ev.Index, PeerID: nil}
		go p.offer(record.Addr, meta, ev.Payload, nil, ev.Chunk, ev.Index, to)
	}
	return nil
}
