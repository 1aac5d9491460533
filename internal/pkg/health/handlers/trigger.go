package handlers

import (
	"encoding/json"
	"net/http"
)

// HandleTrigger asks the poll loop to start a cycle now. It answers 202
// when the request was queued and 409 when one is already pending.
func HandleTrigger(trigger func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if !trigger() {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"queued": false, "reason": "cycle already pending"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"queued": true})
	}
}
