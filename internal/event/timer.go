package event

import (
	"fmt"
	"sync"
	"time"
)

// ActiveTimer is the resource handle returned by Timers.Set. It must be
// returned to Unset on every exit path; dropping it without unsetting is a
// correctness bug, not just a leak — the owning session will keep receiving
// the timer's event forever. It is cloneable only so it can be embedded in
// cloneable state snapshots, never to support double-cancellation: Unset is
// one-shot and the second call on the same handle returns an error.
type ActiveTimer struct {
	id uint64
}

// Timers schedules and cancels periodic events for a single session. One
// Timers instance belongs to exactly the session whose Sender it holds.
type Timers[S any] struct {
	sender *Sender[S]

	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]*timerEntry
}

type timerEntry struct {
	stop chan struct{}
	once sync.Once
}

// NewTimers constructs a timer registry delivering into sender's session.
func NewTimers[S any](sender *Sender[S]) *Timers[S] {
	return &Timers[S]{sender: sender, entries: make(map[uint64]*timerEntry)}
}

// Set schedules envelope to be delivered to the owning session every period,
// starting after the first period elapses, until Unset is called with the
// returned handle.
func (t *Timers[S]) Set(period time.Duration, envelope Envelope[S]) ActiveTimer {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	entry := &timerEntry{stop: make(chan struct{})}
	t.entries[id] = entry
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-entry.stop:
				return
			case <-ticker.C:
				// A send failure means the session has exited; stop firing.
				if err := t.sender.Send(envelope); err != nil {
					return
				}
			}
		}
	}()

	return ActiveTimer{id: id}
}

// SetOnce schedules envelope to fire exactly once after period, implementing
// the substrate's one-shot semantics by unsetting itself on the first firing.
func (t *Timers[S]) SetOnce(period time.Duration, envelope Envelope[S]) ActiveTimer {
	var handle ActiveTimer
	wrapped := func(s *S) error {
		err := envelope(s)
		t.Unset(handle)
		return err
	}
	handle = t.Set(period, wrapped)
	return handle
}

// Unset cancels the timer exactly once. Calling it again on an already
// unset (or unknown) handle is an error.
func (t *Timers[S]) Unset(id ActiveTimer) error {
	t.mu.Lock()
	entry, ok := t.entries[id.id]
	if ok {
		delete(t.entries, id.id)
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("event: timer %d already unset or unknown", id.id)
	}
	entry.once.Do(func() { close(entry.stop) })
	return nil
}

// UnsetAll stops every outstanding timer and empties the registry.
func (t *Timers[S]) UnsetAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint64]*timerEntry)
	t.mu.Unlock()
	for _, entry := range entries {
		entry.once.Do(func() { close(entry.stop) })
	}
}
