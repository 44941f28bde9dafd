// Package worker offloads CPU-heavy jobs (erasure coding, signing) onto a
// thread pool and delivers their results back as events into a named
// session, per the substrate's worker model.
package worker

import (
	"boson/internal/event"
)

// Pool runs a closure, either inline or on a background goroutine. It knows
// nothing about the session a Worker will later post results into; that
// binding happens one layer up in Worker.
type Pool interface {
	Submit(job func()) error
	Close()
}

// Inline runs jobs synchronously on the submitter's goroutine. Used for
// deterministic tests and single-threaded runs.
type Inline struct{}

func (Inline) Submit(job func()) error { job(); return nil }
func (Inline) Close()                  {}

// Worker binds a Pool to a target session: every job submitted through it
// produces an event.Envelope which is posted into sender's session once the
// job completes. Per spec, a single submission's emitted event lands whole
// (contiguous) in the target queue; submissions from different pool workers
// may interleave with each other, which is safe because the session
// serializes consumption regardless of arrival order.
type Worker[S any] struct {
	pool   Pool
	sender *event.Sender[S]
}

// New binds pool to sender's session.
func New[S any](pool Pool, sender *event.Sender[S]) *Worker[S] {
	return &Worker[S]{pool: pool, sender: sender}
}

// Job produces the envelope to post back, or an error if the work failed.
// A job that returns a nil envelope and nil error emits nothing (useful for
// jobs whose only effect is a side channel, e.g. a cancelled decode).
type Job[S any] func() (event.Envelope[S], error)

// Submit runs job on the pool and, on success, posts its resulting envelope
// into the worker's bound session. Errors from job are swallowed by design:
// the spec does not define a local failure channel for worker jobs that fail
// outside of session-terminating conditions (filesystem, channel closure),
// those are surfaced through their own dedicated events instead.
func (w *Worker[S]) Submit(job Job[S]) error {
	return w.pool.Submit(func() {
		envelope, err := job()
		if err != nil || envelope == nil {
			return
		}
		_ = w.sender.Send(envelope)
	})
}
