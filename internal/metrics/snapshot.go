package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Snapshot returns a point-in-time view of all metrics as a
// JSON-friendly map. Served by the JSON metrics endpoint.
func (m *Metrics) Snapshot() map[string]interface{} {
	snap := make(map[string]interface{})

	// Classification metrics
	snap["classify_requests_total"] = m.ClassifyRequests.Value()
	snap["classify_latency_count"] = m.ClassifyLatency.Count()
	snap["classify_latency_sum_ms"] = m.ClassifyLatency.Sum()
	snap["classified_by_label"] = counterVecValues(m.ClassifiedByLabel, "label")
	snap["classify_errors"] = counterVecValues(m.ClassifyErrors, "error_type")

	// Evaluation metrics
	snap["evaluation_runs_total"] = m.EvaluationRuns.Value()
	snap["evaluation_rows_total"] = m.EvaluationRows.Value()
	snap["evaluation_unscored_rows_total"] = m.UnscoredRows.Value()
	snap["evaluation_accuracy"] = m.EvaluationAccuracy.Value()

	// Dataset metrics
	snap["datasets_labelled_total"] = m.DatasetsLabelled.Value()
	snap["labelled_rows"] = counterVecValues(m.LabelledRows, "label")
	snap["datasets_cleaned_total"] = m.DatasetsCleaned.Value()
	snap["cleaned_rows_dropped_total"] = m.RowsDropped.Value()

	// Model metrics
	snap["model_pulls_total"] = m.ModelPulls.Value()
	snap["model_pull_bytes_total"] = m.ModelPullBytes.Value()

	// Cache metrics
	snap["cache_hits"] = counterVecValues(m.CacheHits, "type")
	snap["cache_misses"] = counterVecValues(m.CacheMisses, "type")

	// System metrics
	snap["goroutines"] = m.GoroutineCount.Value()
	snap["memory_bytes"] = m.MemoryUsage.Value()
	snap["uptime_seconds"] = int64(time.Since(m.startTime).Seconds())

	return snap
}

// counterVecValues flattens a counter vector into a label-value map.
func counterVecValues(cv *CounterVec, label string) map[string]int64 {
	result := make(map[string]int64)
	for _, c := range cv.GetAll() {
		result[c.Labels()[label]] = c.Value()
	}
	return result
}

// Summary returns a human-readable summary of current metrics.
func (m *Metrics) Summary() string {
	var sb strings.Builder

	sb.WriteString("Review Sift Metrics\n")
	sb.WriteString("===================\n\n")

	sb.WriteString("Classifications: " + formatInt(m.ClassifyRequests.Value()) + "\n")

	byLabel := counterVecValues(m.ClassifiedByLabel, "label")
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		sb.WriteString("  " + label + ": " + formatInt(byLabel[label]) + "\n")
	}

	sb.WriteString("Evaluation Runs: " + formatInt(m.EvaluationRuns.Value()) + "\n")
	sb.WriteString("Rows Evaluated: " + formatInt(m.EvaluationRows.Value()) + "\n")
	sb.WriteString("Datasets Labelled: " + formatInt(m.DatasetsLabelled.Value()) + "\n")
	sb.WriteString("Datasets Cleaned: " + formatInt(m.DatasetsCleaned.Value()) + "\n")
	sb.WriteString("Model Pulls: " + formatInt(m.ModelPulls.Value()) + "\n")
	sb.WriteString("Goroutines: " + formatInt(int64(m.GoroutineCount.Value())) + "\n")
	sb.WriteString("Memory Usage: " + formatBytes(int64(m.MemoryUsage.Value())) + "\n")
	sb.WriteString("Uptime: " + formatDuration(int64(time.Since(m.startTime).Seconds())) + "\n")

	return sb.String()
}

// Helper functions

func formatInt(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
