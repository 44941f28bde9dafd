package worker

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// AntsPool is the thread-pool-backed Pool, wrapping github.com/panjf2000/ants
// so that codec and filesystem jobs run on a bounded set of background
// goroutines instead of spawning one goroutine per submission.
type AntsPool struct {
	pool *ants.Pool
}

// NewAntsPool creates a pool with the given goroutine capacity.
func NewAntsPool(capacity int) (*AntsPool, error) {
	pool, err := ants.NewPool(capacity, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("worker: creating ants pool: %w", err)
	}
	return &AntsPool{pool: pool}, nil
}

func (a *AntsPool) Submit(job func()) error {
	if err := a.pool.Submit(job); err != nil {
		return fmt.Errorf("worker: submit to pool: %w", err)
	}
	return nil
}

func (a *AntsPool) Close() {
	a.pool.Release()
}
