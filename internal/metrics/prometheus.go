package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PrometheusFormat exports all metrics in Prometheus text exposition format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func (m *Metrics) PrometheusFormat() string {
	var sb strings.Builder

	// Classification metrics
	writeCounter(&sb, m.ClassifyRequests)
	writeHistogram(&sb, m.ClassifyLatency)
	writeHistogram(&sb, m.ClassifyConfidence)
	writeCounterVec(&sb, m.ClassifiedByLabel)
	writeCounterVec(&sb, m.ClassifyErrors)
	writeHistogram(&sb, m.BatchSize)

	// Evaluation metrics
	writeCounter(&sb, m.EvaluationRuns)
	writeHistogram(&sb, m.EvaluationDuration)
	writeCounter(&sb, m.EvaluationRows)
	writeCounter(&sb, m.UnscoredRows)
	writeGauge(&sb, m.EvaluationAccuracy)

	// Dataset metrics
	writeCounter(&sb, m.DatasetsLabelled)
	writeCounterVec(&sb, m.LabelledRows)
	writeCounter(&sb, m.DatasetsCleaned)
	writeCounter(&sb, m.RowsDropped)

	// Model metrics
	writeCounter(&sb, m.ModelPulls)
	writeCounter(&sb, m.ModelPullBytes)

	// Cache metrics
	writeCounterVec(&sb, m.CacheHits)
	writeCounterVec(&sb, m.CacheMisses)
	writeGaugeVec(&sb, m.CacheSize)

	// Bus metrics
	writeCounterVec(&sb, m.BusEventsPublished)
	writeHistogramVec(&sb, m.BusEventLatency)
	writeCounterVec(&sb, m.BusErrors)

	// HTTP metrics
	writeCounterVec(&sb, m.HTTPRequests)
	writeHistogramVec(&sb, m.HTTPDuration)
	writeGauge(&sb, m.HTTPRequestsInFlight)
	writeHistogramVec(&sb, m.HTTPRequestSize)

	// System metrics
	writeGauge(&sb, m.GoroutineCount)
	writeGauge(&sb, m.MemoryUsage)
	writeCounter(&sb, m.Uptime)

	return sb.String()
}

// writeCounter writes a counter in Prometheus format.
func writeCounter(sb *strings.Builder, c *Counter) {
	writeHeader(sb, c.Name(), c.Help(), "counter")

	sb.WriteString(c.Name())
	writeLabels(sb, c.Labels())
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%d", c.Value()))
	sb.WriteString("\n")
}

// writeGauge writes a gauge in Prometheus format.
func writeGauge(sb *strings.Builder, g *Gauge) {
	writeHeader(sb, g.Name(), g.Help(), "gauge")

	sb.WriteString(g.Name())
	writeLabels(sb, g.Labels())
	sb.WriteString(" ")
	sb.WriteString(formatFloat(g.Value()))
	sb.WriteString("\n")
}

// writeHistogram writes a histogram in Prometheus format.
func writeHistogram(sb *strings.Builder, h *Histogram) {
	writeHeader(sb, h.Name(), h.Help(), "histogram")
	writeHistogramSeries(sb, h)
}

// writeHistogramSeries writes the bucket, sum, and count series of a
// single histogram, merging its labels with the le bucket label.
func writeHistogramSeries(sb *strings.Builder, h *Histogram) {
	labels := h.Labels()
	buckets := h.Buckets()
	counts := h.BucketCounts()

	// Write bucket counts
	for i, bound := range buckets {
		sb.WriteString(h.Name())
		sb.WriteString("_bucket")
		writeLabelsWith(sb, labels, "le", formatFloat(bound))
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprintf("%d", counts[i]))
		sb.WriteString("\n")
	}

	// Write +Inf bucket
	sb.WriteString(h.Name())
	sb.WriteString("_bucket")
	writeLabelsWith(sb, labels, "le", "+Inf")
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%d", counts[len(counts)-1]))
	sb.WriteString("\n")

	// Write sum
	sb.WriteString(h.Name())
	sb.WriteString("_sum")
	writeLabels(sb, labels)
	sb.WriteString(" ")
	sb.WriteString(formatFloat(h.Sum()))
	sb.WriteString("\n")

	// Write count
	sb.WriteString(h.Name())
	sb.WriteString("_count")
	writeLabels(sb, labels)
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%d", h.Count()))
	sb.WriteString("\n")
}

// writeCounterVec writes a counter vector in Prometheus format.
func writeCounterVec(sb *strings.Builder, cv *CounterVec) {
	counters := cv.GetAll()
	if len(counters) == 0 {
		return
	}

	writeHeader(sb, cv.Name(), cv.Help(), "counter")

	for _, c := range counters {
		sb.WriteString(c.Name())
		writeLabels(sb, c.Labels())
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprintf("%d", c.Value()))
		sb.WriteString("\n")
	}
}

// writeGaugeVec writes a gauge vector in Prometheus format.
func writeGaugeVec(sb *strings.Builder, gv *GaugeVec) {
	gauges := gv.GetAll()
	if len(gauges) == 0 {
		return
	}

	writeHeader(sb, gv.Name(), gv.Help(), "gauge")

	for _, g := range gauges {
		sb.WriteString(g.Name())
		writeLabels(sb, g.Labels())
		sb.WriteString(" ")
		sb.WriteString(formatFloat(g.Value()))
		sb.WriteString("\n")
	}
}

// writeHistogramVec writes a histogram vector in Prometheus format.
func writeHistogramVec(sb *strings.Builder, hv *HistogramVec) {
	histograms := hv.GetAll()
	if len(histograms) == 0 {
		return
	}

	writeHeader(sb, hv.Name(), hv.Help(), "histogram")

	for _, h := range histograms {
		writeHistogramSeries(sb, h)
	}
}

// writeHeader writes the HELP and TYPE lines for a metric family.
func writeHeader(sb *strings.Builder, name, help, metricType string) {
	sb.WriteString("# HELP ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(help)
	sb.WriteString("\n")

	sb.WriteString("# TYPE ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(metricType)
	sb.WriteString("\n")
}

// writeLabels writes labels in Prometheus format {key="value",key2="value2"}.
func writeLabels(sb *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}

	// Sort keys for stable output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeString(labels[k]))
		sb.WriteString("\"")
	}
	sb.WriteString("}")
}

// writeLabelsWith writes labels with one extra pair merged in.
func writeLabelsWith(sb *strings.Builder, labels map[string]string, key, value string) {
	merged := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		merged[k] = v
	}
	merged[key] = value
	writeLabels(sb, merged)
}

// formatFloat renders a float without trailing zeros. Bucket bounds
// span 0.001 to 600000 so fixed-precision formatting would collide.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// escapeString escapes special characters in label values.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
