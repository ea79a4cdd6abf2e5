// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uroflow_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// Pipeline
	SamplesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_samples_ingested_total",
		Help: "Samples processed, by outcome (accepted, rejected)",
	}, []string{"outcome"})

	SegmentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_segment_transitions_total",
		Help: "Segmentation transitions per sample",
	}, []string{"transition"})

	EventsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uroflow_events_completed_total",
		Help: "Voiding events closed and stored",
	})

	EventVolume = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uroflow_event_volume_ml",
		Help:    "Total volume of completed voiding events",
		Buckets: []float64{50, 100, 200, 300, 400, 500, 650, 800},
	})

	ColorCategories = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_color_classifications_total",
		Help: "Colour classifications by category",
	}, []string{"category"})

	Anomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_volume_anomalies_total",
		Help: "Completed events flagged outside the normal single-void range, by type",
	}, []string{"type"})

	RiskLevels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_risk_levels_total",
		Help: "Assessed readings by risk level",
	}, []string{"level"})

	ProcessingTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uroflow_sample_processing_seconds",
		Help:    "Histogram of sample processing durations",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	})

	// Advisory
	AdvisoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_advisory_requests_total",
		Help: "Advisory requests by status (success, failure)",
	}, []string{"status"})

	AdvisoryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uroflow_advisory_duration_seconds",
		Help:    "Advisory request latency",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// Side channels
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_alerts_total",
		Help: "Alerts by severity and delivery status",
	}, []string{"severity", "status"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_events_published_total",
		Help: "Completed events published to the stream, by status",
	}, []string{"status"})

	MQTTMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uroflow_mqtt_messages_total",
		Help: "MQTT messages received, by outcome",
	}, []string{"outcome"})

	OpenEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uroflow_open_events",
		Help: "Devices with a voiding event currently open",
	})
)
