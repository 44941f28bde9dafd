// Package event implements the event-driven concurrency substrate shared by
// every protocol in this repository: sessions (single-consumer event loops
// that own one state machine), cloneable senders, type-erased event envelopes
// and timer resources.
package event

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Envelope is a type-erased event: a closure that, when run with exclusive
// access to a session's state, performs whatever mutation the original typed
// event called for. Bind constructs an Envelope from a typed handler and a
// concrete event value, which is the only place erasure happens — nothing
// downstream needs to know the event's original type.
type Envelope[S any] func(*S) error

// Bind erases a typed event handler together with an event value into an
// Envelope. This is the "OnErasedEvent" dispatch point described by the
// substrate: registering a handler for M on S is just writing a method with
// this shape and binding it at the call site.
func Bind[S any, M any](handle func(*S, M) error, ev M) Envelope[S] {
	return func(state *S) error {
		return handle(state, ev)
	}
}

// Session is the single-consumer queue plus loop that drives one state
// machine's transitions. Nothing outside the owning goroutine may touch S;
// all mutation happens inside handler invocations from Run.
type Session[S any] struct {
	name   string
	state  *S
	queue  chan Envelope[S]
	log    logrus.FieldLogger
	closed chan struct{}
}

// NewSession creates a session owning state, with a queue of the given
// capacity (the bounded enqueue promised by Send).
func NewSession[S any](name string, state *S, capacity int, log logrus.FieldLogger) *Session[S] {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session[S]{
		name:   name,
		state:  state,
		queue:  make(chan Envelope[S], capacity),
		log:    log.WithField("session", name),
		closed: make(chan struct{}),
	}
}

// Sender returns a cloneable handle that submits events into this session's
// queue. Senders are cheap to copy and safe for concurrent use.
func (s *Session[S]) Sender() *Sender[S] {
	return &Sender[S]{queue: s.queue, closed: s.closed}
}

// State exposes the owned state machine directly. Only the goroutine running
// Run may call this safely, which is true for the teacher's own pattern of
// constructing a session's dependents (timers, workers) before Run starts.
func (s *Session[S]) State() *S { return s.state }

// Run dequeues events in receive order and invokes each against the owned
// state until ctx is cancelled or a handler returns an error, at which point
// the session terminates and its peer process is expected to exit (per the
// propagation policy: a session's error is terminal, not recoverable).
func (s *Session[S]) Run(ctx context.Context) error {
	defer close(s.closed)
	defer s.log.Debug("session closing")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-s.queue:
			if !ok {
				return nil
			}
			if err := envelope(s.state); err != nil {
				s.log.WithError(err).Error("session handler failed, terminating session")
				return fmt.Errorf("session %s: %w", s.name, err)
			}
		}
	}
}

// Sender is a cloneable handle appending envelopes to a session's queue.
type Sender[S any] struct {
	queue  chan Envelope[S]
	closed chan struct{}
}

// ErrSessionClosed is returned by Send once the owning session has exited.
var ErrSessionClosed = fmt.Errorf("event: session closed")

// Send enqueues the envelope. It blocks only long enough to place the event
// on the bounded queue; delivery is FIFO per sender and the session processes
// events strictly in receive order, with no per-type reordering.
func (s *Sender[S]) Send(envelope Envelope[S]) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}
	select {
	case s.queue <- envelope:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	}
}

// Emit is sugar for Send(Bind(handle, ev)) — submit ev for typed handler
// handle without the caller constructing the envelope by hand.
func Emit[S any, M any](sender *Sender[S], handle func(*S, M) error, ev M) error {
	return sender.Send(Bind(handle, ev))
}
