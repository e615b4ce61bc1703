package metrics

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler returns an HTTP handler that serves metrics in Prometheus
// text exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow GET requests
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Set content type
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		// Write metrics
		metrics := m.PrometheusFormat()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(metrics))
	})
}

// ServeHTTP implements http.Handler interface.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

// JSONHandler returns an HTTP handler that serves a JSON snapshot of
// all metrics. Used by the dashboard.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"timestamp": time.Now().Unix(),
			"metrics":   m.Snapshot(),
		})
	})
}
