// Package metrics exposes the node's Prometheus collectors. All pipeline
// stages record through these shared instruments; the HTTP server serves
// them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts detection cycles by outcome (completed, skipped,
	// timeout).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_cycles_total",
		Help: "Detection cycles executed, by outcome",
	}, []string{"outcome"})

	// CycleDuration observes wall time of full detection cycles.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_cycle_duration_seconds",
		Help:    "Detection cycle duration",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	// ReadingsTotal counts sensor readings by status (ok, fault, rejected).
	ReadingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_readings_total",
		Help: "Sensor readings collected, by status",
	}, []string{"status"})

	// DegradedSensors tracks how many sensors are currently degraded.
	DegradedSensors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_degraded_sensors",
		Help: "Sensors currently marked degraded",
	})

	// FusedParameters tracks how many parameters fused in the last cycle.
	FusedParameters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_fused_parameters",
		Help: "Parameters produced by the last fusion pass",
	})

	// FusionFallbacks counts cycles where a parameter fell back to its
	// last known-good value.
	FusionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_fusion_fallbacks_total",
		Help: "Fused parameters derived from last known-good history",
	})

	// AlertsTotal counts emitted alerts by type and severity.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_alerts_total",
		Help: "Alerts emitted, by type and severity",
	}, []string{"type", "severity"})

	// AlertsSuppressed counts duplicate candidates merged into existing
	// alerts instead of emitted.
	AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_alerts_suppressed_total",
		Help: "Duplicate alert candidates suppressed by the merge window",
	})

	// DetectorDuration observes per-detector evaluation time.
	DetectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_detector_duration_seconds",
		Help:    "Domain detector evaluation duration",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
	}, []string{"detector"})

	// PublishErrors counts transport publish failures by stream.
	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_publish_errors_total",
		Help: "Transport publish failures, by stream",
	}, []string{"stream"})
)
