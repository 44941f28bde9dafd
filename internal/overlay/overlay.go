// Package overlay is the narrow facade entropy uses onto the out-of-scope
// Kademlia overlay: an opaque "multicast to closest-K" primitive plus a
// PeerRecord directory. The real overlay implementation lives elsewhere in
// the system (and is explicitly non-core per the spec); this package defines
// only the boundary entropy is allowed to depend on, plus a self-contained
// StaticClient usable in tests and single-process demos.
package overlay

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"boson/internal/codec"
	"boson/internal/identity"
)

// Client is the collaborator boundary: deliver a message to the fanout peers
// closest to a chunk, deliver point-to-point to a known peer, and resolve a
// PeerId to its last known address.
type Client interface {
	Multicast(chunk codec.Chunk, fanout int, payload []byte) error
	Unicast(peer identity.PeerId, payload []byte) error
	FindPeer(peer identity.PeerId) (identity.PeerRecord, bool)
}

// ClosestFunc ranks known peers by distance to chunk and returns the
// fanout closest (self included, if known — callers exclude self).
type ClosestFunc func(chunk codec.Chunk, fanout int) []identity.PeerId

// SendFunc delivers payload to a network address; errors are logged and
// swallowed by StaticClient, matching the overlay's best-effort delivery
// (spec: "loss or peer departure manifests as the event simply never
// arriving").
type SendFunc func(addr string, payload []byte) error

// StaticClient is a Client backed by an in-memory, LRU-bounded directory of
// PeerRecords and caller-supplied ranking/send functions — enough to drive
// entropy's PUT/GET/persist state machine in tests without a real DHT.
type StaticClient struct {
	self    identity.PeerId
	records *lru.Cache[identity.PeerId, identity.PeerRecord]
	closest ClosestFunc
	send    SendFunc
}

// NewStaticClient builds a StaticClient. cacheSize bounds the number of
// PeerRecords retained; entries are evicted least-recently-used.
func NewStaticClient(self identity.PeerId, cacheSize int, closest ClosestFunc, send SendFunc) (*StaticClient, error) {
	cache, err := lru.New[identity.PeerId, identity.PeerRecord](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("overlay: creating peer record cache: %w", err)
	}
	return &StaticClient{self: self, records: cache, closest: closest, send: send}, nil
}

// Learn records (or refreshes) a peer's address.
func (c *StaticClient) Learn(record identity.PeerRecord) {
	c.records.Add(record.ID, record)
}

// FindPeer implements Client.
func (c *StaticClient) FindPeer(peer identity.PeerId) (identity.PeerRecord, bool) {
	return c.records.Get(peer)
}

// Multicast implements Client, excluding self from the delivered set per the
// entropy peer's own self-exclusion rule on Invite receipt.
func (c *StaticClient) Multicast(chunk codec.Chunk, fanout int, payload []byte) error {
	for _, id := range c.closest(chunk, fanout) {
		if id == c.self {
			continue
		}
		record, ok := c.records.Get(id)
		if !ok {
			continue
		}
		if err := c.send(record.Addr, payload); err != nil {
			logrus.WithError(err).Debugf("overlay: multicast to %s", record.Addr)
		}
	}
	return nil
}

// Unicast implements Client.
func (c *StaticClient) Unicast(peer identity.PeerId, payload []byte) error {
	record, ok := c.records.Get(peer)
	if !ok {
		return fmt.Errorf("overlay: no known address for peer %s", peer)
	}
	if err := c.send(record.Addr, payload); err != nil {
		return fmt.Errorf("overlay: unicast to %s: %w", record.Addr, err)
	}
	return nil
}
