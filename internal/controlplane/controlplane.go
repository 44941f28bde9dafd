// Package controlplane exposes the peripheral HTTP surface described by
// SPEC_FULL.md §12: a liveness probe plus thin request/response endpoints
// that drive a Peer's Put/Get operations, built with
// github.com/gorilla/mux.
package controlplane

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"boson/internal/entropy"
)

// Server is the control-plane HTTP surface for one entropy peer.
type Server struct {
	peer   *entropy.Peer
	log    logrus.FieldLogger
	router *mux.Router
}

// New builds a Server with its routes installed. Call Handler to obtain the
// http.Handler to serve, typically via net/http.Server.
func New(peer *entropy.Peer, log logrus.FieldLogger) *Server {
	s := &Server{peer: peer, log: log}
	r := mux.NewRouter()
	r.HandleFunc("/ok", s.handleOk).Methods(http.MethodGet)
	r.HandleFunc("/put", s.handlePut).Methods(http.MethodPost)
	r.HandleFunc("/get", s.handleGet).Methods(http.MethodPost)
	s.router = r
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleOk(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type putRequest struct {
	Preimage string `json:"preimage"` // base64
	Buf      string `json:"buf"`      // base64
}

type putResponse struct {
	Chunk string `json:"chunk"`
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	preimage, err := base64.StdEncoding.DecodeString(req.Preimage)
	if err != nil {
		http.Error(w, "bad preimage encoding", http.StatusBadRequest)
		return
	}
	buf, err := base64.StdEncoding.DecodeString(req.Buf)
	if err != nil {
		http.Error(w, "bad buf encoding", http.StatusBadRequest)
		return
	}

	if err := s.peer.Put(preimage, buf); err != nil {
		s.log.WithError(err).Warn("controlplane: put failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	chunk := entropy.ChunkOf(preimage)
	writeJSON(w, http.StatusOK, putResponse{Chunk: chunk.String()})
}

type getRequest struct {
	Preimage string `json:"preimage"` // base64
}

type getResponse struct {
	Buf string `json:"buf"` // base64
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req getRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	preimage, err := base64.StdEncoding.DecodeString(req.Preimage)
	if err != nil {
		http.Error(w, "bad preimage encoding", http.StatusBadRequest)
		return
	}

	buf, err := s.peer.Get(preimage)
	if err != nil {
		s.log.WithError(err).Warn("controlplane: get failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, getResponse{Buf: base64.StdEncoding.EncodeToString(buf)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
