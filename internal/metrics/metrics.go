// Package metrics defines Prometheus metrics for veritail.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "veritail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritail_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritail_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	VersionWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritail_version_writes_total",
			Help: "Committed entity version updates by action",
		},
		[]string{"action"},
	)

	ConflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritail_conflicts_detected_total",
			Help: "Conflicts detected by entity type",
		},
		[]string{"entity_type"},
	)

	ConflictsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritail_conflicts_resolved_total",
			Help: "Conflicts resolved by merge strategy",
		},
		[]string{"strategy"},
	)

	VerificationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritail_verification_runs_total",
			Help: "Ledger verification runs by outcome",
		},
		[]string{"outcome"},
	)

	EventQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veritail_event_queue_depth",
			Help: "Current async ledger event queue depth",
		},
	)

	FeedConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veritail_feed_connections",
			Help: "Active change-feed WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		VersionWrites, ConflictsDetected, ConflictsResolved,
		VerificationRuns, EventQueueDepth, FeedConnections,
	)
}
