// Package transport implements the connection-reusing send path entropy
// peers use to talk to each other: Dispatch keeps one outgoing connection per
// remote alive as long as it's in active use, handing off the actual framing
// to a Protocol (TCP or QUIC). A stateless Protocol (e.g. UDP) can be used
// directly without Dispatch at all.
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Buf is a framed message body.
type Buf []byte

// Protocol knows how to open an outgoing connection to remote, forward
// whatever arrives on receiver to it, and hand every inbound frame to onBuf.
// Connect is fire-and-forget: failures are logged, never returned, since
// Dispatch's Send has already committed to using the connection by the time
// Connect runs.
type Protocol interface {
	Connect(remote string, onBuf func([]byte) error, receiver <-chan Buf)
}

type connection struct {
	send  chan Buf
	using atomic.Bool
}

// Dispatch is the connection-reuse layer described in SPEC_FULL.md §5: a
// connection is kept only while it has had outgoing traffic within the last
// reap interval. Ping-pong protocols like entropy's invite/fragment exchange
// rarely need a connection held open longer than that.
type Dispatch struct {
	mu          sync.Mutex
	protocol    Protocol
	connections map[string]*connection
	onBuf       func([]byte) error
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewDispatch starts the reap loop immediately; callers must call Close when
// done to stop it.
func NewDispatch(protocol Protocol, onBuf func([]byte) error, reapInterval time.Duration) *Dispatch {
	if reapInterval <= 0 {
		reapInterval = time.Second
	}
	d := &Dispatch{
		protocol:    protocol,
		connections: make(map[string]*connection),
		onBuf:       onBuf,
		stop:        make(chan struct{}),
	}
	go d.reapLoop(reapInterval)
	return d
}

// Send delivers buf to remote, reusing the cached connection to remote if
// there is one and its queue has room, or opening a fresh one otherwise.
func (d *Dispatch) Send(remote string, buf Buf) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conn, ok := d.connections[remote]; ok {
		select {
		case conn.send <- buf:
			conn.using.Store(true)
			return nil
		default:
			delete(d.connections, remote)
		}
	}

	ch := make(chan Buf, 64)
	d.protocol.Connect(remote, d.onBuf, ch)
	select {
	case ch <- buf:
		conn := &connection{send: ch}
		conn.using.Store(true)
		d.connections[remote] = conn
		return nil
	default:
		return fmt.Errorf("transport: new connection to %s immediately full", remote)
	}
}

// RegisterIncoming adopts a connection a Protocol accepted on our behalf
// (e.g. an incoming TCP connection whose preamble names the remote's dial
// address), so a later Send to that remote reuses it instead of dialing out.
func (d *Dispatch) RegisterIncoming(remote string, send chan Buf) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.connections[remote]; exists {
		logrus.Warnf("transport: %s replacing previous connection", remote)
	}
	d.connections[remote] = &connection{send: send}
}

// Close stops the reap loop. Open connections are left to their own
// protocol-level teardown (closed write channels drain and close naturally).
func (d *Dispatch) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
}

func (d *Dispatch) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.reapOnce()
		}
	}
}

func (d *Dispatch) reapOnce() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for remote, conn := range d.connections {
		if !conn.using.Swap(false) {
			close(conn.send)
			delete(d.connections, remote)
		}
	}
}
