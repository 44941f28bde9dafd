// Package bulkservice is the large-blob transfer collaborator entropy
// consumes only through its service contract (spec §4.4): offer a payload to
// a peer, or accept whatever the peer offers us. It is deliberately decoupled
// from the overlay's small control messages — each transfer carries its own
// metadata (entropy's SendFragment) ahead of the payload on the same
// connection.
package bulkservice

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxFrameLen = 1 << 24

// ErrCancelled is returned from Offer when cancel fires before the transfer
// completes.
var ErrCancelled = errors.New("bulkservice: transfer cancelled")

// Service transfers blobs tagged with metadata of type M over plain TCP
// connections, one connection per transfer.
type Service[M any] struct {
	onOffer func(from string, meta M, payload []byte)
}

// New creates a Service. onOffer is invoked for every fully-received
// incoming transfer; wire it to a session via RegisterAcceptor to turn
// arrivals into events instead of direct calls.
func New[M any](onOffer func(from string, meta M, payload []byte)) *Service[M] {
	return &Service[M]{onOffer: onOffer}
}

// Offer announces payload tagged with meta to peer (a dial address) and
// blocks until the transfer completes, fails, ctx is done, or cancel fires.
func (s *Service[M]) Offer(ctx context.Context, peer string, meta M, payload []byte, cancel <-chan struct{}) error {
	transferID := uuid.New()
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", peer)
	if err != nil {
		return fmt.Errorf("bulkservice: transfer %s: dial %s: %w", transferID, peer, err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() { done <- sendBlob(conn, meta, payload) }()

	select {
	case <-cancel:
		conn.Close()
		<-done
		logrus.WithField("transfer", transferID).Debug("bulkservice: offer cancelled")
		return ErrCancelled
	case <-ctx.Done():
		conn.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("bulkservice: transfer %s: %w", transferID, err)
		}
		return nil
	}
}

// AcceptLoop accepts incoming transfers on listener until it errors
// (typically because listener was closed during shutdown).
func (s *Service[M]) AcceptLoop(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Service[M]) handle(conn net.Conn) {
	defer conn.Close()
	from := conn.RemoteAddr().String()
	log := logrus.WithField("transfer", uuid.New()).WithField("from", from)

	metaBytes, err := readFrame(conn)
	if err != nil {
		log.WithError(err).Warn("bulkservice: reading metadata")
		return
	}
	var meta M
	if err := gob.NewDecoder(bytes.NewReader(metaBytes)).Decode(&meta); err != nil {
		log.WithError(err).Warn("bulkservice: decoding metadata")
		return
	}
	payload, err := readFrame(conn)
	if err != nil {
		log.WithError(err).Warn("bulkservice: reading payload")
		return
	}
	if s.onOffer != nil {
		s.onOffer(from, meta, payload)
	}
}

func sendBlob[M any](conn net.Conn, meta M, payload []byte) error {
	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return fmt.Errorf("bulkservice: encoding metadata: %w", err)
	}
	if err := writeFrame(conn, metaBuf.Bytes()); err != nil {
		return fmt.Errorf("bulkservice: writing metadata: %w", err)
	}
	if err := writeFrame(conn, payload); err != nil {
		return fmt.Errorf("bulkservice: writing payload: %w", err)
	}
	return nil
}

func writeFrame(w io.Writer, buf []byte) error {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(buf)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(lenBuf[:])
	if n > maxFrameLen {
		return nil, fmt.Errorf("bulkservice: frame length %d exceeds maximum", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
