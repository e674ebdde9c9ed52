// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages timed by ObserveStage.
const (
	StageDecode  = "decode"
	StageResize  = "resize"
	StageAnalyze = "analyze"
	StageSwap    = "swap"
	StageEncode  = "encode"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	swapsTotal    *prometheus.CounterVec
	swapDuration  prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	swapsInFlight prometheus.Gauge
	facesDetected *prometheus.HistogramVec

	downloadsTotal *prometheus.CounterVec
	cleanupErrors  prometheus.Counter

	jobsWindow *prometheus.GaugeVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a metrics instance on its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		swapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faceswap_swaps_total",
				Help: "Total number of swap attempts by status and error code",
			},
			[]string{"status", "code"},
		),

		swapDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faceswap_swap_duration_seconds",
				Help:    "End-to-end swap latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faceswap_stage_duration_seconds",
				Help:    "Latency of each swap pipeline stage in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		swapsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "faceswap_swaps_in_flight",
				Help: "Number of swaps currently holding an inference slot",
			},
		),

		facesDetected: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faceswap_faces_detected",
				Help:    "Faces found per analyzed image",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
			[]string{"side"},
		),

		downloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faceswap_downloads_total",
				Help: "Total number of image URL downloads by status",
			},
			[]string{"status"},
		),

		cleanupErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "faceswap_scratch_cleanup_errors_total",
				Help: "Scratch files that could not be removed",
			},
		),

		jobsWindow: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faceswap_swap_jobs_last_24h",
				Help: "Recorded swap jobs in the last 24 hours by status",
			},
			[]string{"status"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faceswap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faceswap_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.swapsTotal,
		m.swapDuration,
		m.stageDuration,
		m.swapsInFlight,
		m.facesDetected,
		m.downloadsTotal,
		m.cleanupErrors,
		m.jobsWindow,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordSwap records a finished swap. code is empty on success.
func (m *Metrics) RecordSwap(status, code string, duration time.Duration) {
	if code == "" {
		code = "none"
	}
	m.swapsTotal.WithLabelValues(status, code).Inc()
	m.swapDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) SwapStarted() {
	m.swapsInFlight.Inc()
}

func (m *Metrics) SwapFinished() {
	m.swapsInFlight.Dec()
}

func (m *Metrics) RecordFaces(side string, count int) {
	m.facesDetected.WithLabelValues(side).Observe(float64(count))
}

func (m *Metrics) RecordDownload(status string) {
	m.downloadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCleanupError() {
	m.cleanupErrors.Inc()
}

// SetJobsWindow replaces the per-status job counts.
func (m *Metrics) SetJobsWindow(counts map[string]int64) {
	m.jobsWindow.Reset()
	for status, n := range counts {
		m.jobsWindow.WithLabelValues(status).Set(float64(n))
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
