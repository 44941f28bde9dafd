package entropy

import (
	"boson/internal/codec"
	"boson/internal/fsstore"
)

// DownloadOkEvent is delivered to a peer once a fragment's bytes have fully
// arrived, whether that peer is recovering its own persisted fragment or
// decoding toward a GET. Dispatch between the two roles is by chunk-key
// table lookup, same as everywhere else in this protocol.
type DownloadOkEvent struct {
	Chunk   codec.Chunk
	Index   uint32
	Payload []byte
}

func onDownloadOk(p *Peer, ev DownloadOkEvent) error {
	if entry, ok := p.persists[ev.Chunk]; ok && entry.status == statusRecovering {
		return onPersistDownloadOk(p, entry, ev)
	}
	if entry, ok := p.downloads[ev.Chunk]; ok {
		return onDownloaderDownloadOk(p, entry, ev)
	}
	return nil // chunk no longer tracked (race with cancellation/conclusion)
}

func onPersistDownloadOk(p *Peer, entry *persistEntry, ev DownloadOkEvent) error {
	if ev.Index == entry.index {
		// Our own assigned fragment arrived directly: no need to decode it.
		entry.status = statusStoring
		entry.recover = nil
		return fsstore.SubmitStore(p.fsWorker, p.fs, ev.Chunk, entry.index, ev.Payload, onStoreOk)
	}
	rs := entry.recover
	if _, seen := rs.received[ev.Index]; seen {
		return nil
	}
	rs.received[ev.Index] = struct{}{}
	index := entry.index
	return submitDecode(p, ev.Chunk, rs, ev.Index, ev.Payload, &index)
}

func onDownloaderDownloadOk(p *Peer, entry *downloadEntry, ev DownloadOkEvent) error {
	rs := entry.recover
	if _, seen := rs.received[ev.Index]; seen {
		return nil
	}
	rs.received[ev.Index] = struct{}{}
	return submitDecode(p, ev.Chunk, rs, ev.Index, ev.Payload, nil)
}

// submitDecode hands a fragment to the decoder if it's currently owned by
// this session, or buffers it in recover.pending while a decode job for an
// earlier fragment is still in flight — the decoder is exclusively owned by
// whichever side holds it at any moment, never both (spec §5).
func submitDecode(p *Peer, chunk codec.Chunk, rs *recoverState, index uint32, payload []byte, reEncodeIndex *uint32) error {
	if rs.inFlight {
		rs.pending[index] = payload
		return nil
	}
	dec := rs.decoder
	rs.decoder = nil
	rs.inFlight = true
	return codec.SubmitFeed(p.codecWorker, chunk, index, payload, dec, reEncodeIndex, onDecode, onRecover, onRecoverEncode)
}

func onDecode(p *Peer, ev codec.DecodeEvent) error {
	if entry, ok := p.persists[ev.Chunk]; ok && entry.status == statusRecovering {
		index := entry.index
		return reinstallDecoder(p, ev.Chunk, entry.recover, ev.Decoder, &index)
	}
	if entry, ok := p.downloads[ev.Chunk]; ok {
		return reinstallDecoder(p, ev.Chunk, entry.recover, ev.Decoder, nil)
	}
	return nil
}

func reinstallDecoder(p *Peer, chunk codec.Chunk, rs *recoverState, dec *codec.Decoder, reEncodeIndex *uint32) error {
	rs.decoder = dec
	rs.inFlight = false
	for index, payload := range rs.pending {
		delete(rs.pending, index)
		return submitDecode(p, chunk, rs, index, payload, reEncodeIndex)
	}
	return nil
}

func onRecover(p *Peer, ev codec.RecoverEvent) error {
	entry, ok := p.downloads[ev.Chunk]
	if !ok {
		return nil
	}
	entry.recover.cancel.Cancel()
	delete(p.downloads, ev.Chunk)
	if entry.result != nil {
		entry.result <- GetResult{Bytes: ev.Payload}
	}
	if p.onGetOk != nil {
		p.onGetOk(entry.preimage, ev.Payload)
	}
	return nil
}

func onRecoverEncode(p *Peer, ev codec.RecoverEncodeEvent) error {
	entry, ok := p.persists[ev.Chunk]
	if !ok || entry.status != statusRecovering {
		return nil
	}
	entry.status = statusStoring
	if entry.recover != nil {
		entry.recover.cancel.Cancel()
	}
	entry.recover = nil
	return fsstore.SubmitStore(p.fsWorker, p.fs, ev.Chunk, entry.index, ev.Fragment, onStoreOk)
}
