// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradietalk_voice"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Voice session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Workflow metrics
	WorkflowTransitions *prometheus.CounterVec

	// Permission metrics
	PermissionDecisions *prometheus.CounterVec

	// Capture metrics
	TranscriptSegments   *prometheus.CounterVec
	AudioBytesReceived   prometheus.Counter
	AudioFramesReceived  prometheus.Counter
	CaptureErrors        *prometheus.CounterVec
	CaptureLimitExceeded *prometheus.CounterVec

	// Extraction metrics
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	// Gateway metrics
	GatewayLatency *prometheus.HistogramVec
	GatewayErrors  *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Audit store metrics
	AuditWrites *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Voice session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of voice sessions opened",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open voice sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of voice sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		// Workflow metrics
		WorkflowTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Total number of workflow phase transitions",
		}, []string{"from", "to"}),

		// Permission metrics
		PermissionDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_decisions_total",
			Help:      "Total number of microphone permission decisions",
		}, []string{"decision"}),

		// Capture metrics
		TranscriptSegments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_segments_total",
			Help:      "Total number of recognized transcript segments",
		}, []string{"type"}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of speech capture errors",
		}, []string{"provider", "code"}),
		CaptureLimitExceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_limit_exceeded_total",
			Help:      "Total number of times capture limits were exceeded",
		}, []string{"limit_type"}),

		// Extraction metrics
		ExtractionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of extraction attempts by outcome",
		}, []string{"source", "outcome"}),
		ExtractionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "End-to-end extraction latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"source"}),

		// Gateway metrics
		GatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_latency_seconds",
			Help:      "LLM gateway call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider"}),
		GatewayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_errors_total",
			Help:      "Total number of LLM gateway errors",
		}, []string{"provider", "error_type"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Audit store metrics
		AuditWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Total number of extraction audit records written",
		}, []string{"result"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordSessionStart records a new voice session opening.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a voice session closing.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordTransition records a workflow phase change.
func (m *Metrics) RecordTransition(from, to string) {
	m.WorkflowTransitions.WithLabelValues(from, to).Inc()
}

// RecordPermission records a microphone permission decision.
func (m *Metrics) RecordPermission(granted bool) {
	if granted {
		m.PermissionDecisions.WithLabelValues("granted").Inc()
		return
	}
	m.PermissionDecisions.WithLabelValues("denied").Inc()
}

// RecordPartialSegment records an interim transcript segment.
func (m *Metrics) RecordPartialSegment() {
	m.TranscriptSegments.WithLabelValues("partial").Inc()
}

// RecordFinalSegment records a final transcript segment.
func (m *Metrics) RecordFinalSegment() {
	m.TranscriptSegments.WithLabelValues("final").Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordCaptureError records a speech capture error.
func (m *Metrics) RecordCaptureError(provider, code string) {
	m.CaptureErrors.WithLabelValues(provider, code).Inc()
}

// RecordLimitExceeded records when a capture limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.CaptureLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordExtraction records the outcome of one extraction attempt.
func (m *Metrics) RecordExtraction(source, outcome string, durationSeconds float64) {
	m.ExtractionsTotal.WithLabelValues(source, outcome).Inc()
	m.ExtractionDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordGatewayCall records an LLM gateway call. errorType is empty on success.
func (m *Metrics) RecordGatewayCall(provider, errorType string, latencySeconds float64) {
	m.GatewayLatency.WithLabelValues(provider).Observe(latencySeconds)
	if errorType != "" {
		m.GatewayErrors.WithLabelValues(provider, errorType).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordAuditWrite records an audit store insert.
func (m *Metrics) RecordAuditWrite(err error) {
	if err != nil {
		m.AuditWrites.WithLabelValues("error").Inc()
		return
	}
	m.AuditWrites.WithLabelValues("ok").Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
