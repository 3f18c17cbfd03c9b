package httpapi

import (
	"context"
	"net/http"

	"edgecoord/coordinatorerr"
)

type contextKey string

const contextKeyAgentID contextKey = "httpapi.agentId"

// meshTokenAuth enforces the §4.4 "missing/mismatched mesh token -> 401"
// rule for every agent-facing route except /register itself. The agent id
// is read from the x-agent-id header and the presented token from
// x-mesh-token, matching the teacher's bearer-extraction idiom
// (middleware.Authenticator, adapted from gateway/middleware) but swapping
// a shared bearer secret for the coordinator's opaque per-agent token.
func (s *Server) meshTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentID := r.Header.Get("x-agent-id")
		token := r.Header.Get("x-mesh-token")
		if agentID == "" || token == "" {
			writeError(w, coordinatorerr.New(coordinatorerr.CodeMeshUnauthorized, "missing x-agent-id or x-mesh-token"))
			return
		}
		if err := s.deps.Registry.ValidateMeshToken(agentID, token); err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyAgentID, agentID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func agentIDFromContext(r *http.Request) string {
	id, _ := r.Context().Value(contextKeyAgentID).(string)
	return id
}
