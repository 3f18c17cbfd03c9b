package httpapi

import (
	"net/http"

	"edgecoord/ledger/offline"
	"edgecoord/queue"
)

// Complete adapts a replayed offline receipt onto the same completion path
// as an online /result submission (queue.Queue.Complete followed by
// recordCompletion's ledger/reward bookkeeping). Satisfies offline.Completer.
func (s *Server) Complete(in offline.CompletionInput) error {
	result := queue.Result{
		SubtaskID:     in.SubtaskID,
		TaskID:        in.TaskID,
		AgentID:       in.AgentID,
		OK:            in.OK,
		Output:        in.Output,
		CompletedAtMs: in.CompletedAtMs,
	}
	if _, err := s.deps.Queue.Complete(result); err != nil {
		return err
	}
	s.recordCompletion(result)
	return nil
}

type offlineReplayRequest struct {
	Receipts []offline.Receipt `json:"receipts"`
}

// handleOfflineReplay accepts a batch of agent-signed receipts collected
// while disconnected and relayed later over BLE by any peer device, and
// replays each through the normal completion path.
func (s *Server) handleOfflineReplay(w http.ResponseWriter, r *http.Request) {
	var req offlineReplayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "validation_error", "message": "malformed request body"})
		return
	}
	results := s.offlineReconciler.Replay(req.Receipts)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
