package entropy

import (
	"context"

	"boson/internal/codec"
	"boson/internal/event"
	"boson/internal/identity"
)

// offer runs a bulk-service Offer on its own goroutine: Offer blocks for the
// life of the transfer, and nothing here needs to observe its outcome beyond
// logging — entropy's failure model for a dropped transfer is silence, the
// same as a lost UDP datagram (spec §4.7).
func (p *Peer) offer(addr string, meta SendFragmentMeta, payload []byte, cancel *cancelToken, chunk codec.Chunk, index uint32, to identity.PeerId) {
	var done <-chan struct{}
	if cancel != nil {
		done = cancel.Done()
	}
	if err := p.bulk.Offer(context.Background(), addr, meta, payload, done); err != nil {
		p.log.WithError(err).Debugf("entropy: offering fragment %d of %s to %s", index, chunk, to)
	}
}

// FragmentArrivedEvent is posted once a bulk-service transfer tagged with
// SendFragmentMeta completes, bundling the metadata announcement (the wire
// message named SendFragment) and the fully-received payload together,
// which the protocol otherwise splits into a RecvOffer step and a later
// DownloadOk: here they collapse into one event since this bulk
// transport already delivers both atomically.
type FragmentArrivedEvent struct {
	Meta    SendFragmentMeta
	Payload []byte
}

func onFragmentArrived(p *Peer, ev FragmentArrivedEvent) error {
	chunk, index := ev.Meta.Chunk, ev.Meta.Index

	if _, ok := p.downloads[chunk]; ok {
		return event.Emit(p.selfSender, onDownloadOk, DownloadOkEvent{Chunk: chunk, Index: index, Payload: ev.Payload})
	}

	if entry, ok := p.persists[chunk]; ok {
		if entry.status != statusRecovering {
			if ev.Meta.PeerID == nil {
				return nil
			}
			if index != entry.index {
				p.log.Warnf("entropy: fragment for %s at unexpected index %d (assigned %d)", chunk, index, entry.index)
				return nil
			}
			return p.sendFragmentAvailable(chunk, *ev.Meta.PeerID)
		}
		if index == entry.index {
			entry.notify = ev.Meta.PeerID
		}
		return event.Emit(p.selfSender, onDownloadOk, DownloadOkEvent{Chunk: chunk, Index: index, Payload: ev.Payload})
	}

	return nil // chunk not tracked by this peer in either role
}
