package metrics

import (
	"time"
)

// MetricPreset defines a predefined metric query for the UI.
type MetricPreset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Metrics     []string `json:"metrics"`
	ChartType   string   `json:"chart_type"` // line, bar, gauge, table, pie
	Filters     []string `json:"filters"`    // available filter options
	TimeRange   string   `json:"time_range"` // default time range
}

// DefaultPresets returns the default metric presets for the UI.
var DefaultPresets = []MetricPreset{
	{
		ID:          "classify_overview",
		Name:        "Classification Overview",
		Description: "Overall classification throughput and latency",
		Metrics: []string{
			"sift_classify_requests_total",
			"sift_classify_latency_ms",
			"sift_classify_confidence",
		},
		ChartType: "line",
		Filters:   []string{"time_range", "label"},
		TimeRange: "1h",
	},
	{
		ID:          "classify_latency",
		Name:        "Classification Latency Distribution",
		Description: "Histogram of inference latency over time",
		Metrics: []string{
			"sift_classify_latency_ms_bucket",
			"sift_classify_latency_ms_sum",
			"sift_classify_latency_ms_count",
		},
		ChartType: "bar",
		Filters:   []string{"time_range", "percentile"},
		TimeRange: "1h",
	},
	{
		ID:          "label_distribution",
		Name:        "Predicted Label Distribution",
		Description: "How classifications split across the four labels",
		Metrics: []string{
			"sift_classified_total",
		},
		ChartType: "pie",
		Filters:   []string{"label"},
		TimeRange: "all",
	},
	{
		ID:          "evaluation_results",
		Name:        "Evaluation Results",
		Description: "Latest evaluation accuracy and row counts",
		Metrics: []string{
			"sift_evaluation_runs_total",
			"sift_evaluation_accuracy",
			"sift_evaluation_rows_total",
			"sift_evaluation_unscored_rows_total",
		},
		ChartType: "table",
		Filters:   []string{},
		TimeRange: "all",
	},
	{
		ID:          "dataset_activity",
		Name:        "Dataset Activity",
		Description: "Labelling and cleaning throughput",
		Metrics: []string{
			"sift_datasets_labelled_total",
			"sift_labelled_rows_total",
			"sift_datasets_cleaned_total",
			"sift_cleaned_rows_dropped_total",
		},
		ChartType: "line",
		Filters:   []string{"time_range", "label"},
		TimeRange: "1h",
	},
	{
		ID:          "cache_performance",
		Name:        "Prediction Cache",
		Description: "Cache hit rates and size",
		Metrics: []string{
			"sift_cache_hits_total",
			"sift_cache_misses_total",
			"sift_cache_size",
		},
		ChartType: "line",
		Filters:   []string{"time_range", "type"},
		TimeRange: "1h",
	},
	{
		ID:          "model_activity",
		Name:        "Model Downloads",
		Description: "Model pulls and downloaded bytes",
		Metrics: []string{
			"sift_model_pulls_total",
			"sift_model_pull_bytes_total",
		},
		ChartType: "table",
		Filters:   []string{},
		TimeRange: "all",
	},
	{
		ID:          "bus_activity",
		Name:        "Event Bus Activity",
		Description: "Published events by type and publish latency",
		Metrics: []string{
			"sift_bus_events_published_total",
			"sift_bus_event_latency_seconds",
			"sift_bus_errors_total",
		},
		ChartType: "line",
		Filters:   []string{"time_range", "event_type"},
		TimeRange: "1h",
	},
	{
		ID:          "http_traffic",
		Name:        "HTTP Traffic",
		Description: "Request rates and durations by route",
		Metrics: []string{
			"sift_http_requests_total",
			"sift_http_request_duration_seconds",
			"sift_http_requests_in_flight",
		},
		ChartType: "line",
		Filters:   []string{"time_range", "method", "path"},
		TimeRange: "1h",
	},
	{
		ID:          "error_rates",
		Name:        "Error Rates",
		Description: "Error counts by type",
		Metrics: []string{
			"sift_classify_errors_total",
			"sift_bus_errors_total",
		},
		ChartType: "bar",
		Filters:   []string{"time_range", "error_type"},
		TimeRange: "1h",
	},
	{
		ID:          "system_health",
		Name:        "System Health",
		Description: "System resource usage",
		Metrics: []string{
			"sift_goroutines",
			"sift_memory_bytes",
			"sift_http_requests_in_flight",
		},
		ChartType: "line",
		Filters:   []string{"time_range"},
		TimeRange: "1h",
	},
	{
		ID:          "uptime_status",
		Name:        "Uptime & Availability",
		Description: "System uptime and request success rates",
		Metrics: []string{
			"sift_uptime_seconds",
			"sift_classify_requests_total",
			"sift_classify_errors_total",
		},
		ChartType: "table",
		Filters:   []string{},
		TimeRange: "all",
	},
}

// GetPreset returns a preset by ID.
func GetPreset(id string) *MetricPreset {
	for i := range DefaultPresets {
		if DefaultPresets[i].ID == id {
			return &DefaultPresets[i]
		}
	}
	return nil
}

// GetPresetsByCategory returns presets grouped by category.
func GetPresetsByCategory() map[string][]MetricPreset {
	categories := map[string][]MetricPreset{
		"classification": {
			DefaultPresets[0], // classify_overview
			DefaultPresets[1], // classify_latency
			DefaultPresets[2], // label_distribution
		},
		"evaluation": {
			DefaultPresets[3], // evaluation_results
		},
		"datasets": {
			DefaultPresets[4], // dataset_activity
		},
		"cache": {
			DefaultPresets[5], // cache_performance
		},
		"models": {
			DefaultPresets[6], // model_activity
		},
		"bus": {
			DefaultPresets[7], // bus_activity
		},
		"http": {
			DefaultPresets[8], // http_traffic
		},
		"errors": {
			DefaultPresets[9], // error_rates
		},
		"system": {
			DefaultPresets[10], // system_health
			DefaultPresets[11], // uptime_status
		},
	}
	return categories
}

// GetAllPresets returns all available presets.
func GetAllPresets() []MetricPreset {
	return DefaultPresets
}

// MetricQuery represents a query for specific metrics.
type MetricQuery struct {
	PresetID    string            `json:"preset_id,omitempty"`
	Metrics     []string          `json:"metrics"`
	TimeRange   string            `json:"time_range"`  // 5m, 15m, 1h, 6h, 24h, 7d, 30d, all
	Filters     map[string]string `json:"filters"`     // e.g., {"label": "SpamAds", "error_type": "timeout"}
	Aggregation string            `json:"aggregation"` // sum, avg, min, max, p50, p95, p99
	GroupBy     []string          `json:"group_by"`    // e.g., ["label", "error_type"]
}

// MetricQueryResult represents the result of a metric query.
type MetricQueryResult struct {
	Query     MetricQuery            `json:"query"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Series    []MetricSeries         `json:"series,omitempty"`
	Summary   map[string]float64     `json:"summary,omitempty"`
}

// MetricSeries represents a time series of metric values.
type MetricSeries struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Points []MetricPoint     `json:"points"`
}

// MetricPoint represents a single data point in a time series.
type MetricPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// ExecuteQuery executes a metric query and returns current values for
// the requested metrics.
func (m *Metrics) ExecuteQuery(query MetricQuery) (*MetricQueryResult, error) {
	result := &MetricQueryResult{
		Query:     query,
		Timestamp: time.Now().Unix(),
		Data:      make(map[string]interface{}),
		Summary:   make(map[string]float64),
	}

	// If preset ID is provided, use preset metrics
	if query.PresetID != "" {
		preset := GetPreset(query.PresetID)
		if preset != nil {
			query.Metrics = preset.Metrics
		}
	}

	// Collect current values for requested metrics
	for _, metricName := range query.Metrics {
		result.Data[metricName] = m.getCurrentValue(metricName)
	}

	return result, nil
}

// getCurrentValue gets the current value of a metric by name.
func (m *Metrics) getCurrentValue(name string) interface{} {
	switch name {
	case "sift_classify_requests_total":
		return m.ClassifyRequests.Value()
	case "sift_evaluation_runs_total":
		return m.EvaluationRuns.Value()
	case "sift_evaluation_rows_total":
		return m.EvaluationRows.Value()
	case "sift_evaluation_unscored_rows_total":
		return m.UnscoredRows.Value()
	case "sift_evaluation_accuracy":
		return m.EvaluationAccuracy.Value()
	case "sift_datasets_labelled_total":
		return m.DatasetsLabelled.Value()
	case "sift_datasets_cleaned_total":
		return m.DatasetsCleaned.Value()
	case "sift_cleaned_rows_dropped_total":
		return m.RowsDropped.Value()
	case "sift_model_pulls_total":
		return m.ModelPulls.Value()
	case "sift_model_pull_bytes_total":
		return m.ModelPullBytes.Value()
	case "sift_http_requests_in_flight":
		return m.HTTPRequestsInFlight.Value()
	case "sift_goroutines":
		return m.GoroutineCount.Value()
	case "sift_memory_bytes":
		return m.MemoryUsage.Value()
	case "sift_uptime_seconds":
		return m.Uptime.Value()
	default:
		return nil
	}
}
