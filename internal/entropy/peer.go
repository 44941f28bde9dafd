// Package entropy implements the erasure-coded object store protocol: a
// per-peer state machine multiplexing PUT initiator, GET initiator and
// PERSIST worker roles over a chunk-keyed table, exactly as described by
// SPEC_FULL.md's entropy protocol section. Role dispatch is purely by which
// of uploads/downloads/persists a chunk key lives in.
package entropy

import (
	"crypto/sha256"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"boson/internal/bulkservice"
	"boson/internal/codec"
	"boson/internal/event"
	"boson/internal/fsstore"
	"boson/internal/identity"
	"boson/internal/metrics"
	"boson/internal/overlay"
	"boson/internal/worker"
)

// Params are the protocol parameters fixed at peer construction (spec §3).
type Params struct {
	FragmentLen int
	K           int // fragments needed to recover
	N           int // fragments placed, N >= K
	M           int // invitation fan-out, M >= N
}

// Validate checks the parameter ordering the protocol assumes.
func (p Params) Validate() error {
	if p.FragmentLen <= 0 {
		return fmt.Errorf("entropy: fragment_len must be positive")
	}
	if p.K <= 0 {
		return fmt.Errorf("entropy: k must be positive")
	}
	if p.N < p.K {
		return fmt.Errorf("entropy: n (%d) must be >= k (%d)", p.N, p.K)
	}
	if p.M < p.N {
		return fmt.Errorf("entropy: m (%d) must be >= n (%d)", p.M, p.N)
	}
	return nil
}

func (p Params) parityShards() int { return p.N - p.K }

// ChunkOf derives a chunk id from a caller-chosen preimage. The protocol
// only requires preimage -> chunk be a function; SHA-256 is an arbitrary,
// adequate choice for that function.
func ChunkOf(preimage []byte) codec.Chunk {
	return codec.Chunk(sha256.Sum256(preimage))
}

type persistStatus int

const (
	statusRecovering persistStatus = iota
	statusStoring
	statusAvailable
)

type recoverState struct {
	decoder  *codec.Decoder // nil while owned by an in-flight feed job
	inFlight bool
	pending  map[uint32]codec.Payload
	received map[uint32]struct{}
	cancel   *cancelToken
}

func newRecoverState(p Params) *recoverState {
	return &recoverState{
		decoder:  codec.NewDecoder(p.FragmentLen, p.K, p.parityShards()),
		pending:  make(map[uint32]codec.Payload),
		received: make(map[uint32]struct{}),
		cancel:   newCancelToken(),
	}
}

type uploadEntry struct {
	preimage  []byte
	encoder   *codec.Encoder
	pending   map[uint32]identity.PeerId
	available map[identity.PeerId]struct{}
	cancel    *cancelToken
	result    chan<- error
}

type downloadEntry struct {
	preimage []byte
	recover  *recoverState
	result   chan<- GetResult
}

type persistEntry struct {
	index   uint32
	status  persistStatus
	recover *recoverState // meaningful only while status == statusRecovering
	notify  *identity.PeerId
}

// GetResult is delivered to a waiting Get call once its download concludes.
type GetResult struct {
	Bytes []byte
	Err   error
}

// Peer is the event substrate's state machine for the entropy protocol: one
// instance owns three disjoint, chunk-keyed tables and is driven exclusively
// by its own session loop.
type Peer struct {
	self   identity.KeyPair
	params Params

	overlay overlay.Client
	bulk    *bulkservice.Service[SendFragmentMeta]
	fs      *fsstore.FS

	codecWorker *worker.Worker[Peer]
	fsWorker    *worker.Worker[Peer]
	selfSender  *event.Sender[Peer]
	timers      *event.Timers[Peer]

	uploads      map[codec.Chunk]*uploadEntry
	downloads    map[codec.Chunk]*downloadEntry
	persists     map[codec.Chunk]*persistEntry
	pendingPulls map[codec.Chunk][]identity.PeerId

	onPutOk func(preimage []byte)
	onGetOk func(preimage []byte, bytes []byte)
	metrics *metrics.Metrics

	rng *rand.Rand
	log logrus.FieldLogger
}

// Hooks let surrounding infrastructure (control plane, metrics, tests)
// observe protocol-level completions without reaching into peer internals.
type Hooks struct {
	OnPutOk func(preimage []byte)
	OnGetOk func(preimage []byte, bytes []byte)

	// Metrics, if non-nil, receives periodic table-size gauge updates (see
	// metrics_tick.go) — the "rereplicate timer" the original implementation
	// left as a TODO on its persist-worker StoreOk handler never grew beyond
	// that stub, so rather than invent an undocumented re-replication policy
	// this repo gives the same timer a narrower, well-specified job: keeping
	// the peer's pending-table gauges live.
	Metrics *metrics.Metrics
}

// NewPeer constructs a peer and the session that drives it. codecPool and
// fsPool back the codec and filesystem workers respectively; Inline is
// appropriate for deterministic tests, an ants-backed pool for production.
// The returned Session must have Run called on it (by the caller, on its own
// goroutine) for the peer to make progress.
func NewPeer(
	self identity.KeyPair,
	params Params,
	ov overlay.Client,
	fs *fsstore.FS,
	codecPool worker.Pool,
	fsPool worker.Pool,
	queueCapacity int,
	hooks Hooks,
	log logrus.FieldLogger,
) (*Peer, *event.Session[Peer], error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	p := &Peer{
		self:         self,
		params:       params,
		overlay:      ov,
		fs:           fs,
		uploads:      make(map[codec.Chunk]*uploadEntry),
		downloads:    make(map[codec.Chunk]*downloadEntry),
		persists:     make(map[codec.Chunk]*persistEntry),
		pendingPulls: make(map[codec.Chunk][]identity.PeerId),
		onPutOk:      hooks.OnPutOk,
		onGetOk:      hooks.OnGetOk,
		metrics:      hooks.Metrics,
		rng:          rand.New(rand.NewSource(int64(firstUint64(self.ID())))),
		log:          log.WithField("peer", self.ID().String()),
	}

	sess := event.NewSession("entropy-"+self.ID().String(), p, queueCapacity, log)
	p.selfSender = sess.Sender()
	p.codecWorker = worker.New[Peer](codecPool, p.selfSender)
	p.fsWorker = worker.New[Peer](fsPool, p.selfSender)
	p.timers = event.NewTimers(p.selfSender)
	if p.metrics != nil {
		p.timers.Set(metricsTickInterval, event.Bind(onMetricsTick, metricsTickEvent{}))
	}

	bulkSvc := bulkservice.New[SendFragmentMeta](nil)
	bulkservice.RegisterAcceptor(bulkSvc, p.selfSender, func(_ string, meta SendFragmentMeta, payload []byte) event.Envelope[Peer] {
		return event.Bind(onFragmentArrived, FragmentArrivedEvent{Meta: meta, Payload: payload})
	})
	p.bulk = bulkSvc

	return p, sess, nil
}

// Bulk returns the bulk-transfer service this peer accepts offers on; the
// caller is responsible for running Bulk().AcceptLoop on a listener.
func (p *Peer) Bulk() *bulkservice.Service[SendFragmentMeta] { return p.bulk }

func firstUint64(id identity.PeerId) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(id[i])
	}
	return v
}

// randomIndex picks an index in [0, N) for a freshly-accepted Invite. Per
// spec this is "chosen randomly by the responder"; it only needs to be a
// valid shard index since it is later handed to Encoder.Encode/Decoder.
func (p *Peer) randomIndex() uint32 {
	return uint32(p.rng.Intn(p.params.N))
}

// HandleWireMessage decodes an overlay-delivered buffer and dispatches it to
// the matching handler on this peer's own session, wherever the caller's
// goroutine happens to be.
func (p *Peer) HandleWireMessage(buf []byte) error {
	msg, err := DecodeWire(buf)
	if err != nil {
		return err
	}
	switch {
	case msg.Invite != nil:
		return event.Emit(p.selfSender, onRecvInvite, *msg.Invite)
	case msg.InviteOk != nil:
		return event.Emit(p.selfSender, onRecvInviteOk, *msg.InviteOk)
	case msg.FragmentAvailable != nil:
		return event.Emit(p.selfSender, onRecvFragmentAvailable, *msg.FragmentAvailable)
	case msg.Pull != nil:
		return event.Emit(p.selfSender, onRecvPull, *msg.Pull)
	default:
		return fmt.Errorf("entropy: empty wire message")
	}
}

func (p *Peer) sendFragmentAvailable(chunk codec.Chunk, to identity.PeerId) error {
	signed, err := identity.Sign(p.self, FragmentAvailablePayload{Chunk: chunk, PeerID: p.self.ID()})
	if err != nil {
		return fmt.Errorf("entropy: signing fragment-available: %w", err)
	}
	buf, err := EncodeWire(WireMessage{FragmentAvailable: &signed})
	if err != nil {
		return err
	}
	return p.overlay.Unicast(to, buf)
}
