package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports whether the store is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: string(h.db.Dialect())}
	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("health check failed")
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
