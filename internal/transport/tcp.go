package transport

import (
	"encoding/binary"
	"io"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	tcpPreambleLen = 16
	maxFrameLen    = 1 << 20
)

// TCP is a connection-reusing Protocol: the dialing side sends its own
// listen address as a fixed-width preamble immediately after connecting, so
// the accepting side can route a later reply back through the same
// connection instead of dialing a fresh one.
type TCP struct {
	preamble [tcpPreambleLen]byte
}

// NewTCP builds a TCP protocol that announces localAddr (this peer's own
// listen address) to whoever it dials. Pass "" for a simplex dialer that
// never accepts reuse from the far side.
func NewTCP(localAddr string) (*TCP, error) {
	var preamble [tcpPreambleLen]byte
	if len(localAddr) >= tcpPreambleLen {
		return nil, &AddressTooLongError{Addr: localAddr, Max: tcpPreambleLen - 1}
	}
	copy(preamble[:], localAddr)
	return &TCP{preamble: preamble}, nil
}

// AddressTooLongError reports a listen address that cannot fit the fixed
// preamble width.
type AddressTooLongError struct {
	Addr string
	Max  int
}

func (e *AddressTooLongError) Error() string {
	return "transport: local address exceeds preamble capacity"
}

// Connect implements Protocol.
func (t *TCP) Connect(remote string, onBuf func([]byte) error, receiver <-chan Buf) {
	go func() {
		conn, err := net.Dial("tcp", remote)
		if err != nil {
			logrus.WithError(err).Warnf("transport: dial %s", remote)
			drain(receiver)
			return
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		if _, err := conn.Write(t.preamble[:]); err != nil {
			logrus.WithError(err).Warnf("transport: preamble to %s", remote)
			conn.Close()
			drain(receiver)
			return
		}
		go readLoop(conn, onBuf, remote)
		writeLoop(conn, receiver, remote)
	}()
}

// AcceptLoop accepts connections on listener forever, reading each one's
// preamble and registering it with dispatch for connection reuse before
// starting its read/write loops. It returns only once listener.Accept fails.
func (t *TCP) AcceptLoop(listener net.Listener, dispatch *Dispatch) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go t.handleIncoming(conn, dispatch)
	}
}

func (t *TCP) handleIncoming(conn net.Conn, dispatch *Dispatch) {
	var preamble [tcpPreambleLen]byte
	if _, err := io.ReadFull(conn, preamble[:]); err != nil {
		logrus.WithError(err).Warn("transport: reading preamble")
		conn.Close()
		return
	}
	go readLoop(conn, dispatch.onBuf, conn.RemoteAddr().String())

	remote := strings.TrimRight(string(preamble[:]), "\x00")
	if remote == "" {
		return
	}
	ch := make(chan Buf, 64)
	dispatch.RegisterIncoming(remote, ch)
	writeLoop(conn, ch, remote)
}

func readLoop(rw io.ReadCloser, onBuf func([]byte) error, remote string) {
	defer rw.Close()
	var lenBuf [8]byte
	for {
		if _, err := io.ReadFull(rw, lenBuf[:]); err != nil {
			if err != io.EOF {
				logrus.WithError(err).Debugf("transport: reading frame length from %s", remote)
			}
			return
		}
		n := binary.BigEndian.Uint64(lenBuf[:])
		if n > maxFrameLen {
			logrus.Warnf("transport: invalid frame length %d from %s", n, remote)
			return
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(rw, buf); err != nil {
			logrus.WithError(err).Debugf("transport: reading frame body from %s", remote)
			return
		}
		if err := onBuf(buf); err != nil {
			logrus.WithError(err).Warnf("transport: handling frame from %s", remote)
			return
		}
	}
}

func writeLoop(w io.WriteCloser, receiver <-chan Buf, remote string) {
	defer w.Close()
	var lenBuf [8]byte
	for buf := range receiver {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(buf)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			logrus.WithError(err).Warnf("transport: writing frame length to %s", remote)
			return
		}
		if _, err := w.Write(buf); err != nil {
			logrus.WithError(err).Warnf("transport: writing frame body to %s", remote)
			return
		}
	}
}

func drain(receiver <-chan Buf) {
	for range receiver {
	}
}
