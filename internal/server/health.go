package server

import (
	"encoding/json"
	"net/http"
)

// registerHealthRoutes wires liveness and readiness probes. Liveness is
// unconditional; readiness requires a loaded model and no shutdown in
// progress.
func (s *Server) registerHealthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "reason": "shutting_down"})
			return
		}

		health := s.engine.Health()
		if !health.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "reason": "model_unhealthy"})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ready",
			"model":  health.Model,
			"device": health.Device,
		})
	})
}
