package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports healthy when the database answers a ping.
// A nil pinger always reports healthy.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
				return
			}
		}
		respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
	}
}
