package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ServiceInfo is served at the root path.
type ServiceInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Root serves ServiceInfo at exactly "/" and the not_found envelope for any
// path no other route matched.
func Root(info ServiceInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeCodedError(w, r, ErrCodeNotFound, "The requested resource was not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(info); err != nil {
			slog.ErrorContext(r.Context(), "failed to write response", "error", err)
		}
	}
}
