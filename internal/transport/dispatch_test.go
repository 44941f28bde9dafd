package transport

import (
	"sync"
	"testing"
	"time"
)

type loopbackProtocol struct {
	mu    sync.Mutex
	dials []string
}

func (l *loopbackProtocol) Connect(remote string, onBuf func([]byte) error, receiver <-chan Buf) {
	l.mu.Lock()
	l.dials = append(l.dials, remote)
	l.mu.Unlock()
	go func() {
		for buf := range receiver {
			_ = onBuf(buf)
		}
	}()
}

func (l *loopbackProtocol) dialCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.dials)
}

func TestSendReusesExistingConnection(t *testing.T) {
	received := make(chan []byte, 4)
	proto := &loopbackProtocol{}
	d := NewDispatch(proto, func(buf []byte) error {
		received <- buf
		return nil
	}, time.Hour)
	defer d.Close()

	if err := d.Send("peer-a", Buf("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := d.Send("peer-a", Buf("world")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame to be delivered")
		}
	}
	if got := proto.dialCount(); got != 1 {
		t.Fatalf("expected exactly one dial for reused connection, got %d", got)
	}
}

func TestReapClosesIdleConnections(t *testing.T) {
	proto := &loopbackProtocol{}
	d := NewDispatch(proto, func([]byte) error { return nil }, time.Hour)
	defer d.Close()

	if err := d.Send("peer-b", Buf("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	d.reapOnce() // marks used -> unused, keeps connection
	d.reapOnce() // connection was unused since last reap -> closed

	d.mu.Lock()
	_, stillOpen := d.connections["peer-b"]
	d.mu.Unlock()
	if stillOpen {
		t.Fatal("expected idle connection to be reaped")
	}

	if err := d.Send("peer-b", Buf("ping-again")); err != nil {
		t.Fatalf("Send after reap: %v", err)
	}
	if got := proto.dialCount(); got != 2 {
		t.Fatalf("expected a fresh dial after reap, got %d", got)
	}
}
