package httpapi

import (
	"net/http"
	"time"

	"edgecoord/coordinatorerr"
	"edgecoord/mesh"
	"edgecoord/protocol"
)

func (s *Server) handleMeshPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Mesh.ListPeers())
}

type registerPeerRequest struct {
	Identity mesh.PeerIdentity `json:"identity"`
	Approved bool              `json:"approved"`
}

func (s *Server) handleMeshRegisterPeer(w http.ResponseWriter, r *http.Request) {
	var req registerPeerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	peer := s.deps.Mesh.AddPeer(req.Identity, req.Approved)
	writeJSON(w, http.StatusOK, peer)
}

func (s *Server) handleMeshIngest(w http.ResponseWriter, r *http.Request) {
	var env protocol.Envelope
	if err := decodeJSON(r, &env); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed envelope"))
		return
	}
	if err := s.deps.Mesh.Ingest(&env, time.Now().UnixMilli()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *Server) handleMeshReputation(w http.ResponseWriter, r *http.Request) {
	peerID := r.URL.Query().Get("peerId")
	peer, ok := s.deps.Mesh.Peer(peerID)
	if !ok {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "unknown peer"))
		return
	}
	writeJSON(w, http.StatusOK, peer)
}
