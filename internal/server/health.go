// health.go - Liveness and component health endpoints.
package server

import (
	"context"
	"net/http"
	"time"
)

type componentHealth struct {
	Status    string  `json:"status"` // "up" or "down"
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"` // "healthy" or "unhealthy"
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentHealth `json:"components"`
}

// handleHealth checks the database and blob storage and reports per
// component status. Unhealthy yields 503 for load balancers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Version:    s.cfg.Build.Version,
		Components: make(map[string]componentHealth),
	}

	resp.Components["database"] = s.checkDatabase(ctx)
	resp.Components["blob_storage"] = s.checkBlobStorage(ctx)

	status := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != "up" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

// handleReady is a cheap readiness probe: one round trip to the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		var one int
		if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			http.Error(w, `{"status":"not_ready","message":"database unavailable"}`, http.StatusServiceUnavailable)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) checkDatabase(ctx context.Context) componentHealth {
	if s.db == nil {
		return componentHealth{Status: "up", Message: "not configured"}
	}
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return componentHealth{Status: "down", Message: "ping failed: " + err.Error()}
	}
	return componentHealth{
		Status:    "up",
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}
}

func (s *Server) checkBlobStorage(ctx context.Context) componentHealth {
	start := time.Now()
	if err := s.blobs.Ping(ctx); err != nil {
		return componentHealth{Status: "down", Message: err.Error()}
	}
	return componentHealth{
		Status:    "up",
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}
}
