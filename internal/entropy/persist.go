package entropy

import (
	"boson/internal/fsstore"
)

// onRecvInvite is the persist-worker reaction to an Invite: a peer commits
// to an index for a chunk exactly once, the first time it sees an Invite for
// it, and that commitment is never revisited by a later Invite (spec
// §4.6.5: persists[c] is never re-created).
func onRecvInvite(p *Peer, msg Invite) error {
	if msg.PeerID == p.self.ID() {
		return nil // self-exclusion
	}
	if p.metrics != nil {
		p.metrics.InvitesReceived.Inc()
	}
	entry, exists := p.persists[msg.Chunk]
	if !exists {
		entry = &persistEntry{
			index:   p.randomIndex(),
			status:  statusRecovering,
			recover: newRecoverState(p.params),
		}
		p.persists[msg.Chunk] = entry
	}

	ok := InviteOk{Chunk: msg.Chunk, Index: entry.index, PeerID: p.self.ID()}
	buf, err := EncodeWire(WireMessage{InviteOk: &ok})
	if err != nil {
		return err
	}
	return p.overlay.Unicast(msg.PeerID, buf)
}

func onStoreOk(p *Peer, ev fsstore.StoreOkEvent) error {
	if p.metrics != nil {
		p.metrics.FragmentsStored.Inc()
	}
	entry, ok := p.persists[ev.Chunk]
	if !ok {
		return nil
	}
	entry.status = statusAvailable
	if entry.notify == nil {
		return nil
	}
	notify := *entry.notify
	entry.notify = nil
	return p.sendFragmentAvailable(ev.Chunk, notify)
}
