package metrics

import (
	"errors"
	"runtime"
	"strings"
	"sync"
	"time"

	apperrors "github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Classification metrics
	ClassifyRequests   *Counter
	ClassifyLatency    *Histogram
	ClassifyConfidence *Histogram
	ClassifiedByLabel  *CounterVec // labels: label
	ClassifyErrors     *CounterVec // labels: error_type
	BatchSize          *Histogram

	// Evaluation metrics
	EvaluationRuns     *Counter
	EvaluationDuration *Histogram
	EvaluationRows     *Counter
	UnscoredRows       *Counter
	EvaluationAccuracy *Gauge // most recent run

	// Dataset metrics
	DatasetsLabelled *Counter
	LabelledRows     *CounterVec // labels: label
	DatasetsCleaned  *Counter
	RowsDropped      *Counter

	// Model metrics
	ModelPulls     *Counter
	ModelPullBytes *Counter

	// Cache metrics
	CacheHits   *CounterVec // labels: type (prediction)
	CacheMisses *CounterVec // labels: type (prediction)
	CacheSize   *GaugeVec   // labels: type (prediction)

	// Bus metrics
	BusEventsPublished *CounterVec   // labels: event_type
	BusEventLatency    *HistogramVec // labels: event_type
	BusErrors          *CounterVec   // labels: event_type

	// HTTP metrics
	HTTPRequests         *CounterVec   // labels: method, path, status
	HTTPDuration         *HistogramVec // labels: method, path
	HTTPRequestsInFlight *Gauge
	HTTPRequestSize      *HistogramVec // labels: method, path

	// System metrics
	GoroutineCount *Gauge
	MemoryUsage    *Gauge // in bytes
	Uptime         *Counter

	// Time-series data for charts
	TimeSeries *TimeSeriesData

	// Redis storage (optional)
	redisStorage *RedisStorage

	startTime time.Time
	mu        sync.RWMutex
}

// New creates a new metrics instance with all metrics initialized.
// Uses in-memory storage only.
func New() *Metrics {
	return NewWithConfig("memory", "")
}

// NewWithRedis creates a new metrics instance with Redis persistence.
// Falls back to in-memory if Redis connection fails.
func NewWithRedis(redisURL string) *Metrics {
	return NewWithConfig("redis", redisURL)
}

// NewWithConfig creates a new metrics instance with specified persistence.
// persistence: "memory" or "redis"
// redisURL: Redis URL (only used if persistence = "redis")
func NewWithConfig(persistence, redisURL string) *Metrics {
	var redisStorage *RedisStorage
	var timeSeries *TimeSeriesData

	// Try to initialize Redis if configured
	if persistence == "redis" && redisURL != "" {
		storage, err := NewRedisStorage(redisURL)
		if err != nil {
			logger.Default().WithComponent("metrics").Warn("Metrics persistence unavailable, using in-memory history",
				"error", err.Error())
		} else {
			redisStorage = storage
			timeSeries = NewTimeSeriesDataWithRedis(redisStorage)
		}
	}

	// If Redis not available, use in-memory
	if timeSeries == nil {
		timeSeries = NewTimeSeriesData()
	}

	m := &Metrics{
		// Classification metrics
		ClassifyRequests: NewCounter(
			"sift_classify_requests_total",
			"Total number of classification requests",
			nil,
		),
		ClassifyLatency: NewHistogram(
			"sift_classify_latency_ms",
			"Classification latency in milliseconds",
			[]float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		),
		ClassifyConfidence: NewHistogram(
			"sift_classify_confidence",
			"Top label softmax confidence per classification",
			[]float64{0.25, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99},
		),
		ClassifiedByLabel: NewCounterVec(
			"sift_classified_total",
			"Total classifications by predicted label",
			[]string{"label"},
		),
		ClassifyErrors: NewCounterVec(
			"sift_classify_errors_total",
			"Total number of classification errors",
			[]string{"error_type"},
		),
		BatchSize: NewHistogram(
			"sift_classify_batch_size",
			"Number of texts per batch classification call",
			[]float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		),

		// Evaluation metrics
		EvaluationRuns: NewCounter(
			"sift_evaluation_runs_total",
			"Total number of evaluation runs",
			nil,
		),
		EvaluationDuration: NewHistogram(
			"sift_evaluation_duration_ms",
			"Evaluation run duration in milliseconds",
			[]float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000, 600000},
		),
		EvaluationRows: NewCounter(
			"sift_evaluation_rows_total",
			"Total number of dataset rows evaluated",
			nil,
		),
		UnscoredRows: NewCounter(
			"sift_evaluation_unscored_rows_total",
			"Total number of rows excluded from evaluation scoring",
			nil,
		),
		EvaluationAccuracy: NewGauge(
			"sift_evaluation_accuracy",
			"Accuracy of the most recent evaluation run",
			nil,
		),

		// Dataset metrics
		DatasetsLabelled: NewCounter(
			"sift_datasets_labelled_total",
			"Total number of datasets labelled",
			nil,
		),
		LabelledRows: NewCounterVec(
			"sift_labelled_rows_total",
			"Total labelled dataset rows by predicted label",
			[]string{"label"},
		),
		DatasetsCleaned: NewCounter(
			"sift_datasets_cleaned_total",
			"Total number of datasets cleaned",
			nil,
		),
		RowsDropped: NewCounter(
			"sift_cleaned_rows_dropped_total",
			"Total rows dropped during dataset cleaning",
			nil,
		),

		// Model metrics
		ModelPulls: NewCounter(
			"sift_model_pulls_total",
			"Total number of model downloads",
			nil,
		),
		ModelPullBytes: NewCounter(
			"sift_model_pull_bytes_total",
			"Total bytes downloaded for models",
			nil,
		),

		// Cache metrics
		CacheHits: NewCounterVec(
			"sift_cache_hits_total",
			"Total number of cache hits",
			[]string{"type"},
		),
		CacheMisses: NewCounterVec(
			"sift_cache_misses_total",
			"Total number of cache misses",
			[]string{"type"},
		),
		CacheSize: NewGaugeVec(
			"sift_cache_size",
			"Current cache size",
			[]string{"type"},
		),

		// Bus metrics
		BusEventsPublished: NewCounterVec(
			"sift_bus_events_published_total",
			"Total number of events published to the bus",
			[]string{"event_type"},
		),
		BusEventLatency: NewHistogramVec(
			"sift_bus_event_latency_seconds",
			"Event bus publish latency in seconds",
			[]string{"event_type"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		),
		BusErrors: NewCounterVec(
			"sift_bus_errors_total",
			"Total number of event bus errors",
			[]string{"event_type"},
		),

		// HTTP metrics
		HTTPRequests: NewCounterVec(
			"sift_http_requests_total",
			"Total number of HTTP requests",
			[]string{"method", "path", "status"},
		),
		HTTPDuration: NewHistogramVec(
			"sift_http_request_duration_seconds",
			"HTTP request duration in seconds",
			[]string{"method", "path"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		),
		HTTPRequestsInFlight: NewGauge(
			"sift_http_requests_in_flight",
			"Number of HTTP requests currently being processed",
			nil,
		),
		HTTPRequestSize: NewHistogramVec(
			"sift_http_request_size_bytes",
			"HTTP request size in bytes",
			[]string{"method", "path"},
			[]float64{100, 1000, 10000, 100000, 1000000, 10000000},
		),

		// System metrics
		GoroutineCount: NewGauge(
			"sift_goroutines",
			"Number of goroutines",
			nil,
		),
		MemoryUsage: NewGauge(
			"sift_memory_bytes",
			"Memory usage in bytes",
			nil,
		),
		Uptime: NewCounter(
			"sift_uptime_seconds",
			"Application uptime in seconds",
			nil,
		),

		// Time-series data for charts
		TimeSeries: timeSeries,

		// Redis storage
		redisStorage: redisStorage,

		startTime: time.Now(),
	}

	// Start background collector for system metrics
	go m.collectSystemMetrics()

	return m
}

// collectSystemMetrics periodically collects system metrics.
func (m *Metrics) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		// Update goroutine count
		m.GoroutineCount.Set(float64(runtime.NumGoroutine()))

		// Update memory usage
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		m.MemoryUsage.Set(float64(memStats.Alloc))

		// Update uptime (in seconds)
		m.Uptime.Add(15)
	}
}

// RecordClassify records metrics for a single classification.
// On error only the request and error counters move; there is no
// label or confidence to observe.
func (m *Metrics) RecordClassify(label string, confidence float64, latencyMs int64, err error) {
	m.ClassifyRequests.Inc()

	if err != nil {
		m.ClassifyErrors.WithLabels(errorType(err)).Inc()
		return
	}

	m.ClassifyLatency.Observe(float64(latencyMs))
	m.ClassifyConfidence.Observe(confidence)
	m.ClassifiedByLabel.WithLabels(label).Inc()

	// Record time-series data for charts
	if m.TimeSeries != nil {
		m.TimeSeries.RecordClassify(float64(latencyMs))
	}
}

// RecordBatch records the size of a batch classification call.
func (m *Metrics) RecordBatch(size int) {
	m.BatchSize.Observe(float64(size))
}

// RecordEvaluation records metrics for a completed evaluation run.
func (m *Metrics) RecordEvaluation(rows, unscored int, accuracy float64, durationMs int64) {
	m.EvaluationRuns.Inc()
	m.EvaluationRows.Add(int64(rows))
	m.UnscoredRows.Add(int64(unscored))
	m.EvaluationAccuracy.Set(accuracy)
	m.EvaluationDuration.Observe(float64(durationMs))
}

// RecordDatasetLabelled records metrics for a labelled dataset.
// counts maps label name to row count for the run.
func (m *Metrics) RecordDatasetLabelled(rows int, counts map[string]int) {
	m.DatasetsLabelled.Inc()
	for label, n := range counts {
		m.LabelledRows.WithLabels(label).Add(int64(n))
	}

	// Record time-series data for charts
	if m.TimeSeries != nil {
		m.TimeSeries.RecordLabelled(rows)
	}
}

// RecordDatasetCleaned records metrics for a dataset cleaning pass.
func (m *Metrics) RecordDatasetCleaned(dropped int) {
	m.DatasetsCleaned.Inc()
	m.RowsDropped.Add(int64(dropped))
}

// RecordModelPull records a completed model download.
func (m *Metrics) RecordModelPull(bytes int64) {
	m.ModelPulls.Inc()
	m.ModelPullBytes.Add(bytes)
}

// RecordBusPublish records event bus publish metrics.
func (m *Metrics) RecordBusPublish(eventType string, latencyMs int64, err error) {
	m.BusEventsPublished.WithLabels(eventType).Inc()

	// Convert milliseconds to seconds for Prometheus convention
	latencySeconds := float64(latencyMs) / 1000.0
	m.BusEventLatency.WithLabels(eventType).Observe(latencySeconds)

	if err != nil {
		m.BusErrors.WithLabels(eventType).Inc()
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabels(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabels(cacheType).Inc()
}

// UpdateCacheSize updates the cache size.
func (m *Metrics) UpdateCacheSize(cacheType string, size int) {
	m.CacheSize.WithLabels(cacheType).Set(float64(size))
}

// RecordHTTP records HTTP request metrics.
// This is called by the HTTP middleware.
func (m *Metrics) RecordHTTP(method, path string, status int, durationSeconds float64, sizeBytes int64) {
	// Normalize path to reduce cardinality
	normalizedPath := normalizePath(path)

	// Record request count with labels
	m.HTTPRequests.WithLabels(method, normalizedPath, statusCode(status)).Inc()

	// Record duration
	m.HTTPDuration.WithLabels(method, normalizedPath).Observe(durationSeconds)

	// Record request size
	if sizeBytes > 0 {
		m.HTTPRequestSize.WithLabels(method, normalizedPath).Observe(float64(sizeBytes))
	}
}

// errorType maps an error to a low-cardinality label value.
func errorType(err error) string {
	if err == nil {
		return "none"
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "generic"
}

// Reset resets all metrics to zero (useful for testing).
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Reset counters
	m.ClassifyRequests.Reset()
	m.EvaluationRuns.Reset()
	m.EvaluationRows.Reset()
	m.UnscoredRows.Reset()
	m.DatasetsLabelled.Reset()
	m.DatasetsCleaned.Reset()
	m.RowsDropped.Reset()
	m.ModelPulls.Reset()
	m.ModelPullBytes.Reset()
	m.Uptime.Reset()

	// Reset gauges
	m.EvaluationAccuracy.Set(0)
	m.HTTPRequestsInFlight.Set(0)
	m.GoroutineCount.Set(0)
	m.MemoryUsage.Set(0)

	m.startTime = time.Now()
}

// Close closes the metrics instance and releases resources.
// Must be called when shutting down if Redis is used.
func (m *Metrics) Close() error {
	if m.redisStorage != nil {
		return m.redisStorage.Close()
	}
	return nil
}

// IsRedisPersisted returns true if metrics are persisted to Redis.
func (m *Metrics) IsRedisPersisted() bool {
	return m.redisStorage != nil
}
