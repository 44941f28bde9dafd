package transport

import (
	"context"
	"crypto/tls"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
)

// QUIC is a connection-reusing Protocol built on github.com/quic-go/quic-go,
// carrying the same length-prefixed framing and preamble scheme as TCP but
// over a single bidirectional stream per peer connection. It exists
// alongside TCP rather than replacing it: the corpus's Dispatch design is
// explicitly protocol-generic (see the original session.rs note on QUIC
// sidestepping the TCP TIME_WAIT concern), so SPEC_FULL.md keeps TCP as the
// default and offers QUIC as the alternative it points toward.
type QUIC struct {
	preamble [tcpPreambleLen]byte
	tlsConf  *tls.Config
}

// NewQUIC builds a QUIC protocol announcing localAddr the same way TCP does.
// tlsConf must present a certificate; this package does not generate one.
func NewQUIC(localAddr string, tlsConf *tls.Config) (*QUIC, error) {
	var preamble [tcpPreambleLen]byte
	if len(localAddr) >= tcpPreambleLen {
		return nil, &AddressTooLongError{Addr: localAddr, Max: tcpPreambleLen - 1}
	}
	copy(preamble[:], localAddr)
	return &QUIC{preamble: preamble, tlsConf: tlsConf}, nil
}

// Connect implements Protocol.
func (q *QUIC) Connect(remote string, onBuf func([]byte) error, receiver <-chan Buf) {
	go func() {
		ctx := context.Background()
		conn, err := quic.DialAddr(ctx, remote, q.tlsConf, nil)
		if err != nil {
			logrus.WithError(err).Warnf("transport: quic dial %s", remote)
			drain(receiver)
			return
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			logrus.WithError(err).Warnf("transport: quic open stream %s", remote)
			drain(receiver)
			return
		}
		if _, err := stream.Write(q.preamble[:]); err != nil {
			logrus.WithError(err).Warnf("transport: quic preamble to %s", remote)
			drain(receiver)
			return
		}
		go readLoop(stream, onBuf, remote)
		writeLoop(stream, receiver, remote)
	}()
}

// AcceptLoop accepts QUIC connections and their first stream forever,
// registering each with dispatch by its preamble-declared remote address.
func (q *QUIC) AcceptLoop(listener *quic.Listener, dispatch *Dispatch) error {
	ctx := context.Background()
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return err
		}
		go q.handleIncoming(ctx, conn, dispatch)
	}
}

func (q *QUIC) handleIncoming(ctx context.Context, conn *quic.Conn, dispatch *Dispatch) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		logrus.WithError(err).Warn("transport: quic accept stream")
		return
	}
	var preamble [tcpPreambleLen]byte
	if _, err := readFull(stream, preamble[:]); err != nil {
		logrus.WithError(err).Warn("transport: quic reading preamble")
		stream.Close()
		return
	}
	go readLoop(stream, dispatch.onBuf, conn.RemoteAddr().String())

	remote := trimPreamble(preamble[:])
	if remote == "" {
		return
	}
	ch := make(chan Buf, 64)
	dispatch.RegisterIncoming(remote, ch)
	writeLoop(stream, ch, remote)
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func trimPreamble(preamble []byte) string {
	end := len(preamble)
	for end > 0 && preamble[end-1] == 0 {
		end--
	}
	return string(preamble[:end])
}
