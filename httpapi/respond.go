package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"edgecoord/coordinatorerr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates a *coordinatorerr.Error (or any other error) into
// the wire-stable {"code": ..., "message": ...} body at its taxonomy status.
func writeError(w http.ResponseWriter, err error) {
	if ce, ok := coordinatorerr.As(err); ok {
		writeJSON(w, ce.HTTPStatus(), map[string]string{"code": string(ce.Code), "message": ce.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal_error", "message": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func setRetryAfterMs(w http.ResponseWriter, deferMs int64) {
	if deferMs <= 0 {
		return
	}
	w.Header().Set("Retry-After", strconv.FormatInt((deferMs+999)/1000, 10))
}
