package transport

import (
	"net"

	"github.com/sirupsen/logrus"
)

// UDP is a stateless, fire-and-forget sender for small, idempotent messages
// where losing an occasional datagram is acceptable and a reused connection
// buys nothing. cmd/entropy-peer does not use it: entropy's wire messages go
// over TCP through Dispatch.
type UDP struct {
	conn *net.UDPConn
}

// NewUDP wraps an already-bound UDP socket.
func NewUDP(conn *net.UDPConn) *UDP {
	return &UDP{conn: conn}
}

// Send writes buf to remote without waiting for delivery confirmation; send
// failures are one-way, logged and swallowed, matching the teacher's
// fire-and-forget UDP sender.
func (u *UDP) Send(remote *net.UDPAddr, buf Buf) {
	if _, err := u.conn.WriteToUDP(buf, remote); err != nil {
		logrus.WithError(err).Warnf("transport: udp send to %s", remote)
	}
}

// RecvLoop reads datagrams until a read fails (typically because the socket
// was closed) and returns that error. onBuf errors are logged and the loop
// continues, since one malformed datagram should not take down the receiver.
func (u *UDP) RecvLoop(onBuf func(remote *net.UDPAddr, buf []byte) error) error {
	buf := make([]byte, 1<<16)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		if err := onBuf(addr, buf[:n]); err != nil {
			logrus.WithError(err).Warn("transport: handling udp datagram")
		}
	}
}
