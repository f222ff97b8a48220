package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dubbing studio
type Metrics struct {
	// Session metrics
	SessionsStarted *prometheus.CounterVec
	SessionsStopped prometheus.Counter
	SessionDuration prometheus.Histogram

	// Segment metrics
	SegmentsDubbed  prometheus.Counter
	SegmentsSkipped prometheus.Counter
	SegmentsFailed  prometheus.Counter

	// Playback scheduler metrics
	BufferDepth      prometheus.Gauge
	PlaybackRateTier *prometheus.CounterVec

	// Live relay metrics
	LiveFramesSent     prometheus.Counter
	LiveFramesReceived prometheus.Counter

	// Oracle metrics
	OracleRequests *prometheus.CounterVec
	OracleFailures *prometheus.CounterVec
	OracleDuration *prometheus.HistogramVec
	OracleRetries  prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_sessions_started_total",
			Help: "Total number of dubbing sessions started",
		}, []string{"mode"}),
		SessionsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ada_sessions_stopped_total",
			Help: "Total number of dubbing sessions stopped",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ada_session_duration_seconds",
			Help:    "Duration of dubbing sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// Segment metrics
		SegmentsDubbed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ada_segments_dubbed_total",
			Help: "Total number of script segments successfully dubbed",
		}),
		SegmentsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ada_segments_skipped_total",
			Help: "Total number of script segments skipped (SFX-only or empty)",
		}),
		SegmentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ada_segments_failed_total",
			Help: "Total number of script segments that failed synthesis",
		}),

		// Playback scheduler metrics
		BufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ada_playback_buffer_depth_seconds",
			Help: "Current scheduled-ahead playback time",
		}),
		PlaybackRateTier: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_playback_rate_tier_total",
			Help: "Number of buffers scheduled per playback rate tier",
		}, []string{"tier"}),

		// Live relay metrics
		LiveFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ada_live_frames_sent_total",
			Help: "Total number of capture frames relayed to the oracle",
		}),
		LiveFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ada_live_frames_received_total",
			Help: "Total number of synthesized audio payloads received",
		}),

		// Oracle metrics
		OracleRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_oracle_requests_total",
			Help: "Total number of oracle requests sent",
		}, []string{"operation"}),
		OracleFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_oracle_failures_total",
			Help: "Total number of failed oracle requests",
		}, []string{"operation"}),
		OracleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ada_oracle_request_duration_seconds",
			Help:    "Duration of oracle requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}, []string{"operation"}),
		OracleRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ada_oracle_retries_total",
			Help: "Total number of oracle request retries",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ada_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionStarted increments the started counter for a mode
func (m *Metrics) RecordSessionStarted(mode string) {
	m.SessionsStarted.WithLabelValues(mode).Inc()
}

// RecordSessionStopped increments the stopped counter and records duration
func (m *Metrics) RecordSessionStopped(durationSeconds float64) {
	m.SessionsStopped.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordOracleRequest records one oracle request outcome
func (m *Metrics) RecordOracleRequest(operation string, durationSeconds float64, success bool) {
	m.OracleRequests.WithLabelValues(operation).Inc()
	m.OracleDuration.WithLabelValues(operation).Observe(durationSeconds)
	if !success {
		m.OracleFailures.WithLabelValues(operation).Inc()
	}
}

// RecordOracleRetry increments the retry counter
func (m *Metrics) RecordOracleRetry() {
	m.OracleRetries.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
