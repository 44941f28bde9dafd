package bulkservice

import (
	"boson/internal/event"
)

// RegisterAcceptor wires a Service's arrivals into sender's session: every
// completed incoming transfer is packaged by makeEvent into an Envelope and
// posted to the session, matching the spec's
// accept(recv_offer, expected_len, make_event, cancel) contract — expected
// length and cancellation are the caller's concern (a transfer that never
// arrives simply never posts anything), makeEvent is ours to thread through.
func RegisterAcceptor[S any, M any](svc *Service[M], sender *event.Sender[S], makeEvent func(from string, meta M, payload []byte) event.Envelope[S]) {
	svc.onOffer = func(from string, meta M, payload []byte) {
		_ = sender.Send(makeEvent(from, meta, payload))
	}
}
