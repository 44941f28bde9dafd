package event

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type counter struct {
	n int
}

type increment struct{ by int }

func onIncrement(c *counter, ev increment) error {
	c.n += ev.by
	return nil
}

func TestSessionProcessesEventsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSession("counter", &counter{}, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	sender := s.Sender()
	for i := 0; i < 5; i++ {
		if err := Emit(sender, onIncrement, increment{by: 1}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	// Give the loop a chance to drain before asking it to stop.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if s.State().n != 5 {
		t.Fatalf("expected counter 5, got %d", s.State().n)
	}
}

func TestSendAfterCloseReturnsError(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSession("counter", &counter{}, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	<-done

	sender := s.Sender()
	if err := Emit(sender, onIncrement, increment{by: 1}); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestTimerUnsetSucceedsOnlyOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSession("counter", &counter{}, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	sender := s.Sender()
	timers := NewTimers(sender)
	handle := timers.Set(5*time.Millisecond, Bind(onIncrement, increment{by: 1}))

	time.Sleep(30 * time.Millisecond)
	if err := timers.Unset(handle); err != nil {
		t.Fatalf("unset: %v", err)
	}
	if err := timers.Unset(handle); err == nil {
		t.Fatal("expected second unset to fail")
	}
}
