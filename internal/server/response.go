package server

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ResponseMeta contains metadata for API responses.
type ResponseMeta struct {
	RequestID string `json:"request_id"`
	LatencyMS int64  `json:"latency_ms"`
	Timestamp string `json:"timestamp"`
}

// WrappedResponse wraps API responses with data and metadata.
type WrappedResponse struct {
	Data interface{}  `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// responseWrapper captures the response body for wrapping.
type responseWrapper struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	wroteBody  bool
}

func newResponseWrapper(w http.ResponseWriter) *responseWrapper {
	return &responseWrapper{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteBody = true
	return rw.body.Write(b)
}

// ResponseWrapperMiddleware wraps JSON responses with a data/meta
// structure. Only /v1/* JSON endpoints are wrapped; CSV downloads and
// the metrics snapshot pass through untouched.
func ResponseWrapperMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1") || skipWrapping(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		requestID := GenerateRequestID()

		rw := newResponseWrapper(w)
		next.ServeHTTP(rw, r)

		latencyMS := time.Since(start).Milliseconds()

		// Errors and empty bodies pass through unwrapped.
		if !rw.wroteBody || rw.statusCode >= 400 {
			copyHeaderless(w, rw)
			return
		}

		var data interface{}
		if err := json.Unmarshal(rw.body.Bytes(), &data); err != nil {
			// Not JSON, return as-is
			copyHeaderless(w, rw)
			return
		}

		wrapped := WrappedResponse{
			Data: data,
			Meta: ResponseMeta{
				RequestID: requestID,
				LatencyMS: latencyMS,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-ID", requestID)
		w.WriteHeader(rw.statusCode)
		_ = json.NewEncoder(w).Encode(wrapped)
	})
}

// skipWrapping lists /v1 paths whose bodies must not be re-encoded.
func skipWrapping(path string) bool {
	if strings.HasSuffix(path, "/download") {
		return true
	}
	return path == "/v1/metrics"
}

func copyHeaderless(w http.ResponseWriter, rw *responseWrapper) {
	w.WriteHeader(rw.statusCode)
	_, _ = w.Write(rw.body.Bytes())
}

// GenerateRequestID generates a short unique request ID.
func GenerateRequestID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
