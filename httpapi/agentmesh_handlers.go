package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"edgecoord/coordinatorerr"
)

type createOfferRequest struct {
	FromAgentID string `json:"fromAgentId"`
	SubtaskID   string `json:"subtaskId"`
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var req createOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	offer, err := s.deps.AgentMesh.PublishOffer(req.FromAgentID, req.SubtaskID, time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

type acceptOfferRequest struct {
	ToAgentID string `json:"toAgentId"`
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerID")
	var req acceptOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	tunnel, err := s.deps.AgentMesh.AcceptOffer(offerID, req.ToAgentID, time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tunnel)
}

func (s *Server) handleTunnelRelay(w http.ResponseWriter, r *http.Request) {
	tunnelID := chi.URLParam(r, "tunnelID")
	if err := s.deps.AgentMesh.Relay(tunnelID, time.Now().UnixMilli()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
