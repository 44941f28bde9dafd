package entropy

import "sync"

// cancelToken is the cancellation handle an upload, a decode-in-flight, or a
// bulk offer owns (spec §4.1/§5): triggering it is one-way and idempotent,
// and downstream tasks consulting Done() abort promptly without mutating
// shared state further.
type cancelToken struct {
	done chan struct{}
	once sync.Once
}

func newCancelToken() *cancelToken {
	return &cancelToken{done: make(chan struct{})}
}

// Cancel triggers the token. Safe to call more than once or concurrently.
func (c *cancelToken) Cancel() {
	c.once.Do(func() { close(c.done) })
}

// Done reports cancellation the same way a context.Context would, so it
// composes directly with bulkservice.Service.Offer's cancel parameter.
func (c *cancelToken) Done() <-chan struct{} {
	return c.done
}
