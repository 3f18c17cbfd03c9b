package httpapi

import (
	"net/http"
	"time"

	"edgecoord/coordinatorerr"
)

func (s *Server) handleListRollouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Orch.List())
}

type stageRolloutRequest struct {
	ClientType     string `json:"clientType"`
	ResourceClass  string `json:"resourceClass"`
	RequestedModel string `json:"requestedModel"`
	RampPct        int    `json:"rampPct"`
}

func (s *Server) handleStageRollout(w http.ResponseWriter, r *http.Request) {
	var req stageRolloutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	rollout, err := s.deps.Orch.StageRollout(req.ClientType, req.ResourceClass, req.RequestedModel, req.RampPct, time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rollout)
}
