package httpapi

import (
	"net/http"

	"edgecoord/ledger"
)

func (s *Server) handleLedgerSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Chain.Snapshot())
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	result := ledger.Verify(s.deps.Chain.Snapshot(), s.deps.SigningPublicKeyHex)
	writeJSON(w, http.StatusOK, result)
}
