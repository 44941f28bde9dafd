package controlplane

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"boson/internal/entropy"
	"boson/internal/fsstore"
	"boson/internal/identity"
	"boson/internal/overlay"
	"boson/internal/worker"
)

func newTestPeer(t *testing.T) *entropy.Peer {
	t.Helper()
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("identity.GenerateKeyPair: %v", err)
	}
	ov, err := overlay.NewStaticClient(kp.ID(), 16, nil, nil)
	if err != nil {
		t.Fatalf("overlay.NewStaticClient: %v", err)
	}
	fs := fsstore.New(t.TempDir())
	peer, sess, err := entropy.NewPeer(
		kp, entropy.Params{FragmentLen: 16, K: 2, N: 2, M: 2},
		ov, fs, worker.Inline{}, worker.Inline{}, 64,
		entropy.Hooks{}, logrus.StandardLogger(),
	)
	if err != nil {
		t.Fatalf("NewPeer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = sess.Run(ctx) }()
	return peer
}

func TestHandleOkReturns200(t *testing.T) {
	peer := newTestPeer(t)
	srv := New(peer, logrus.StandardLogger())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandlePutRejectsBadJSON(t *testing.T) {
	peer := newTestPeer(t)
	srv := New(peer, logrus.StandardLogger())

	req := httptest.NewRequest(http.MethodPost, "/put", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePutRejectsBadBase64(t *testing.T) {
	peer := newTestPeer(t)
	srv := New(peer, logrus.StandardLogger())

	body, _ := json.Marshal(putRequest{Preimage: "not-base64!!", Buf: base64.StdEncoding.EncodeToString(make([]byte, 32))})
	req := httptest.NewRequest(http.MethodPost, "/put", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
