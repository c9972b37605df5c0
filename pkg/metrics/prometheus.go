package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given collector.
// The namespace is prepended to all metric names (e.g., "sshkex").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	// --- Session Metrics ---
	e.writeHelp(w, "sessions_active", "Number of handshake sessions currently open")
	e.writeType(w, "sessions_active", "gauge")
	e.writeMetric(w, "sessions_active", labels, float64(snap.SessionsActive))

	e.writeHelp(w, "handshakes_total", "Total number of handshakes started")
	e.writeType(w, "handshakes_total", "counter")
	e.writeMetric(w, "handshakes_total", labels, float64(snap.HandshakesTotal))

	e.writeHelp(w, "handshakes_succeeded_total", "Total number of handshakes that reached the server KEXINIT")
	e.writeType(w, "handshakes_succeeded_total", "counter")
	e.writeMetric(w, "handshakes_succeeded_total", labels, float64(snap.HandshakesSucceeded))

	e.writeHelp(w, "handshakes_failed_total", "Total number of failed handshakes by error kind")
	e.writeType(w, "handshakes_failed_total", "counter")
	for _, kind := range snap.FailureKinds() {
		e.writeMetric(w, "handshakes_failed_total", joinLabels(labels, "kind", kind), float64(snap.FailuresByKind[kind]))
	}

	// --- Traffic Metrics ---
	e.writeHelp(w, "bytes_sent_total", "Total bytes sent")
	e.writeType(w, "bytes_sent_total", "counter")
	e.writeMetric(w, "bytes_sent_total", labels, float64(snap.BytesSent))

	e.writeHelp(w, "bytes_received_total", "Total bytes received")
	e.writeType(w, "bytes_received_total", "counter")
	e.writeMetric(w, "bytes_received_total", labels, float64(snap.BytesReceived))

	e.writeHelp(w, "kexinit_received_total", "Total server KEXINIT messages decoded")
	e.writeType(w, "kexinit_received_total", "counter")
	e.writeMetric(w, "kexinit_received_total", labels, float64(snap.KexInitsRecv))

	// --- Error Metrics ---
	e.writeHelp(w, "protocol_errors_total", "Total malformed banners and packets")
	e.writeType(w, "protocol_errors_total", "counter")
	e.writeMetric(w, "protocol_errors_total", labels, float64(snap.ProtocolErrors))

	e.writeHelp(w, "rate_limited_total", "Total handshakes delayed by the rate limiter")
	e.writeType(w, "rate_limited_total", "counter")
	e.writeMetric(w, "rate_limited_total", labels, float64(snap.RateLimited))

	// --- Uptime ---
	e.writeHelp(w, "uptime_seconds", "Time since the collector was created")
	e.writeType(w, "uptime_seconds", "gauge")
	e.writeMetric(w, "uptime_seconds", labels, snap.Uptime.Seconds())

	// --- Histograms ---
	e.writeHistogram(w, "handshake_duration_milliseconds", "Handshake duration in milliseconds", labels, snap.HandshakeLatency)

	steps := make([]string, 0, len(snap.StepLatency))
	for step := range snap.StepLatency {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	if len(steps) > 0 {
		e.writeHelp(w, "step_duration_milliseconds", "Handshake step duration in milliseconds")
		e.writeType(w, "step_duration_milliseconds", "histogram")
	}
	for _, step := range steps {
		e.writeHistogramSeries(w, "step_duration_milliseconds", joinLabels(labels, "step", step), snap.StepLatency[step])
	}
}

// writeHelp writes a HELP line.
func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

// writeType writes a TYPE line.
func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

// writeMetric writes a single metric line.
func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

// writeHistogram writes a histogram in Prometheus format.
func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")
	e.writeHistogramSeries(w, name, labels, h)
}

// writeHistogramSeries writes the bucket, sum and count lines of one series.
func (e *PrometheusExporter) writeHistogramSeries(w io.Writer, name, labels string, h HistogramSummary) {
	fullName := e.namespace + "_" + name

	// Write bucket counts
	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		if labels != "" {
			fmt.Fprintf(w, "%s_bucket{%s,le=\"%s\"} %d\n", fullName, labels, le, b.Count)
		} else {
			fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", fullName, le, b.Count)
		}
	}

	// Write sum and count
	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

// formatLabels converts Labels to Prometheus label format.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		// Escape label values
		v := escapePromValue(labels[k])
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, v))
	}

	return strings.Join(parts, ",")
}

// joinLabels appends one key="value" pair to a formatted label string.
func joinLabels(labels, key, value string) string {
	pair := fmt.Sprintf("%s=\"%s\"", key, escapePromValue(value))
	if labels == "" {
		return pair
	}
	return labels + "," + pair
}

// escapePromValue escapes a string for use as a Prometheus label value.
func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
