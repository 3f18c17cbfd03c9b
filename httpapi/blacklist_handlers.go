package httpapi

import (
	"net/http"
	"time"

	"edgecoord/blacklist"
	"edgecoord/coordinatorerr"
)

// handleBlacklistList serves GET /security/blacklist: the currently active
// (unexpired) records, as opposed to /security/blacklist/audit's full history.
func (s *Server) handleBlacklistList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Blacklist.ActiveSnapshot(time.Now().UnixMilli()))
}

func (s *Server) handleBlacklistReport(w http.ResponseWriter, r *http.Request) {
	var in blacklist.NewInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	rec, err := s.deps.Blacklist.Local(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleBlacklistAudit(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		writeJSON(w, http.StatusOK, s.deps.Blacklist.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Blacklist.RecordsFor(agentID))
}
