package fsstore

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"boson/internal/event"
	"boson/internal/worker"
)

type state struct {
	stored []Chunk
	loaded []byte
}

func onStoreOk(s *state, ev StoreOkEvent) error {
	s.stored = append(s.stored, ev.Chunk)
	return nil
}

func onLoadOk(s *state, ev LoadOkEvent) error {
	s.loaded = ev.Payload
	return nil
}

func newTestSession(t *testing.T) (*event.Session[state], *worker.Worker[state]) {
	t.Helper()
	sess := event.NewSession("fsstore-test", &state{}, 8, nil)
	w := worker.New[state](worker.Inline{}, sess.Sender())
	return sess, w
}

func TestStoreThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)
	sess, w := newTestSession(t)

	var chunk Chunk
	chunk[0] = 0x42
	payload := []byte("fragment-bytes")

	if err := SubmitStore(w, fs, chunk, 3, payload, onStoreOk); err != nil {
		t.Fatalf("SubmitStore: %v", err)
	}
	if err := SubmitLoad(w, fs, chunk, 3, false, onLoadOk); err != nil {
		t.Fatalf("SubmitLoad: %v", err)
	}

	// The worker only queues the completion events; run the session so its
	// handlers apply them before the state is inspected.
	runCtx, runCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer runCancel()
	_ = sess.Run(runCtx)

	if len(sess.State().stored) != 1 {
		t.Fatalf("expected one StoreOk, got %d", len(sess.State().stored))
	}
	if !bytes.Equal(sess.State().loaded, payload) {
		t.Fatalf("loaded payload mismatch: got %q", sess.State().loaded)
	}
}

func TestLoadWithTakeRemovesChunkDirectory(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)
	_, w := newTestSession(t)

	var chunk Chunk
	chunk[0] = 0x07
	payload := []byte("take-me")

	results := &state{}
	sess := event.NewSession("take-test", results, 8, nil)
	w = worker.New[state](worker.Inline{}, sess.Sender())

	if err := SubmitStore(w, fs, chunk, 0, payload, onStoreOk); err != nil {
		t.Fatalf("SubmitStore: %v", err)
	}
	if err := SubmitLoad(w, fs, chunk, 0, true, onLoadOk); err != nil {
		t.Fatalf("SubmitLoad: %v", err)
	}
	runCtx, runCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer runCancel()
	_ = sess.Run(runCtx)
	if !bytes.Equal(results.loaded, payload) {
		t.Fatalf("loaded payload mismatch: got %q", results.loaded)
	}
	if _, err := os.Stat(fs.chunkDir(chunk)); !os.IsNotExist(err) {
		t.Fatalf("expected chunk directory to be removed, stat err = %v", err)
	}
}

func TestLoadMissingFragmentTerminatesSession(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)
	sess, w := newTestSession(t)

	var chunk Chunk
	chunk[0] = 0x99
	if err := SubmitLoad(w, fs, chunk, 0, false, onLoadOk); err != nil {
		t.Fatalf("SubmitLoad: %v", err)
	}

	done := make(chan error, 1)
	sessCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { done <- sess.Run(sessCtx) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected session to terminate with an error after a filesystem failure")
		}
	case <-time.After(time.Second):
		t.Fatal("session did not terminate after filesystem error")
	}
}
