package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HandleJSON serves whatever get returns as JSON (/status, /metrics).
func HandleJSON(get func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(get()); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
			return
		}
	}
}
