package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMiddleware(t *testing.T) {
	m := New()

	// Create a test handler
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response"))
	})

	// Wrap with middleware
	wrapped := HTTPMiddleware(m, handler)

	// Create test request
	req := httptest.NewRequest("POST", "/v1/classify", nil)
	rec := httptest.NewRecorder()

	// Execute request
	wrapped.ServeHTTP(rec, req)

	// Verify response
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Verify metrics were recorded
	if got := m.HTTPRequests.WithLabels("POST", "/v1/classify", "200").Value(); got != 1 {
		t.Errorf("expected 1 recorded request, got %d", got)
	}

	if m.HTTPRequestsInFlight.Value() != 0 {
		t.Errorf("expected in-flight requests to be 0, got %f", m.HTTPRequestsInFlight.Value())
	}
}

func TestHTTPMiddlewareStatusCapture(t *testing.T) {
	m := New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	wrapped := HTTPMiddleware(m, handler)

	req := httptest.NewRequest("GET", "/v1/datasets/abc123", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if got := m.HTTPRequests.WithLabels("GET", "/v1/datasets/{id}", "404").Value(); got != 1 {
		t.Errorf("expected 1 recorded 404, got %d", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "static root",
			input:    "/",
			expected: "/",
		},
		{
			name:     "health endpoint",
			input:    "/healthz",
			expected: "/healthz",
		},
		{
			name:     "classify endpoint",
			input:    "/v1/classify",
			expected: "/v1/classify",
		},
		{
			name:     "dataset label endpoint stays static",
			input:    "/v1/datasets/label",
			expected: "/v1/datasets/label",
		},
		{
			name:     "dataset by id",
			input:    "/v1/datasets/a1b2c3d4",
			expected: "/v1/datasets/{id}",
		},
		{
			name:     "dataset download",
			input:    "/v1/datasets/a1b2c3d4/download",
			expected: "/v1/datasets/{id}/download",
		},
		{
			name:     "model by name",
			input:    "/v1/models/deberta-v3-small",
			expected: "/v1/models/{name}",
		},
		{
			name:     "static asset",
			input:    "/static/css/main.css",
			expected: "/static/{path}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizePath(tt.input)
			if result != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "200"},
		{201, "201"},
		{404, "404"},
		{429, "429"},
		{500, "500"},
		{503, "503"},
		{150, "1xx"},
		{250, "2xx"},
		{350, "3xx"},
		{450, "4xx"},
		{550, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := statusCode(tt.code)
			if result != tt.expected {
				t.Errorf("statusCode(%d) = %q, want %q", tt.code, result, tt.expected)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{
		ResponseWriter: rec,
		statusCode:     http.StatusOK,
	}

	// Test WriteHeader
	wrapped.WriteHeader(http.StatusCreated)
	if wrapped.statusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", wrapped.statusCode)
	}

	// Test Write auto-calls WriteHeader
	wrapped2 := &responseWriter{
		ResponseWriter: httptest.NewRecorder(),
		statusCode:     http.StatusOK,
	}
	wrapped2.Write([]byte("test"))
	if !wrapped2.written {
		t.Error("expected written flag to be true")
	}
	if wrapped2.statusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", wrapped2.statusCode)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RecordClassify("Valid", 0.9, 10, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; version=0.0.4; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}

	// POST must be rejected
	req = httptest.NewRequest("POST", "/metrics", nil)
	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405 for POST, got %d", rec.Code)
	}
}

func TestJSONHandler(t *testing.T) {
	m := New()
	m.RecordClassify("Valid", 0.9, 10, nil)

	req := httptest.NewRequest("GET", "/v1/metrics", nil)
	rec := httptest.NewRecorder()
	m.JSONHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if body == "" || body[0] != '{' {
		t.Errorf("expected JSON object body, got %q", body)
	}
}

func BenchmarkHTTPMiddleware(b *testing.B) {
	m := New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := HTTPMiddleware(m, handler)

	req := httptest.NewRequest("POST", "/v1/classify", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
	}
}

func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{
		"/v1/classify",
		"/v1/datasets/a1b2c3d4/download",
		"/v1/models/deberta-v3-small",
		"/healthz",
		"/static/css/main.css",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, path := range paths {
			_ = normalizePath(path)
		}
	}
}
