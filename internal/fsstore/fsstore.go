// Package fsstore is the fragment filesystem: one directory per chunk named
// by its hex id, one file per stored fragment index, written atomically via
// write-then-rename. Store and Load are offloaded to a worker pool so disk
// I/O never blocks a session loop.
package fsstore

import (
	"fmt"
	"os"
	"path/filepath"

	"boson/internal/codec"
	"boson/internal/event"
	"boson/internal/worker"
)

// Chunk reuses the codec package's chunk identifier — the filesystem layer
// does not need its own notion of chunk identity.
type Chunk = codec.Chunk

// FS is the root of the fragment store.
type FS struct {
	root string
}

// New creates an FS rooted at root. The root directory is created lazily by
// the first Store.
func New(root string) *FS {
	return &FS{root: root}
}

func (f *FS) chunkDir(c Chunk) string {
	return filepath.Join(f.root, c.String())
}

func (f *FS) fragmentPath(c Chunk, index uint32) string {
	return filepath.Join(f.chunkDir(c), fmt.Sprintf("%d", index))
}

func (f *FS) store(c Chunk, index uint32, payload []byte) error {
	dir := f.chunkDir(c)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsstore: creating directory %s: %w", dir, err)
	}
	final := f.fragmentPath(c, index)
	tmp := fmt.Sprintf("%s.tmp-%d", final, index)
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("fsstore: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("fsstore: renaming %s to %s: %w", tmp, final, err)
	}
	return nil
}

func (f *FS) load(c Chunk, index uint32, take bool) ([]byte, error) {
	path := f.fragmentPath(c, index)
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fsstore: reading %s: %w", path, err)
	}
	if take {
		if err := os.RemoveAll(f.chunkDir(c)); err != nil {
			return nil, fmt.Errorf("fsstore: removing %s: %w", f.chunkDir(c), err)
		}
	}
	return payload, nil
}

// StoreOkEvent is posted once a fragment has been durably written.
type StoreOkEvent struct {
	Chunk Chunk
}

// LoadOkEvent carries a loaded fragment's bytes.
type LoadOkEvent struct {
	Chunk   Chunk
	Index   uint32
	Payload []byte
}

// SubmitStore offloads writing a fragment to disk. A filesystem error is
// session-terminating per the core's error design (§7): rather than being
// swallowed like an ordinary worker job failure, it is delivered as an
// envelope that itself fails, so the owning session's Run loop exits on it.
func SubmitStore[S any](w *worker.Worker[S], fs *FS, chunk Chunk, index uint32, payload []byte, onStoreOk func(*S, StoreOkEvent) error) error {
	return w.Submit(func() (event.Envelope[S], error) {
		if err := fs.store(chunk, index, payload); err != nil {
			return terminating[S](fmt.Errorf("fsstore: store %s/%d: %w", chunk, index, err)), nil
		}
		return event.Bind(onStoreOk, StoreOkEvent{Chunk: chunk}), nil
	})
}

// SubmitLoad offloads reading a fragment from disk, optionally deleting the
// chunk's directory afterward to bound disk usage.
func SubmitLoad[S any](w *worker.Worker[S], fs *FS, chunk Chunk, index uint32, take bool, onLoadOk func(*S, LoadOkEvent) error) error {
	return w.Submit(func() (event.Envelope[S], error) {
		payload, err := fs.load(chunk, index, take)
		if err != nil {
			return terminating[S](fmt.Errorf("fsstore: load %s/%d: %w", chunk, index, err)), nil
		}
		return event.Bind(onLoadOk, LoadOkEvent{Chunk: chunk, Index: index, Payload: payload}), nil
	})
}

func terminating[S any](err error) event.Envelope[S] {
	return func(*S) error { return err }
}
