// Package metrics provides Prometheus metrics for the drowsiness monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the monitor.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Frame pipeline
	framesProcessed  prometheus.Counter
	framesSkipped    *prometheus.CounterVec
	facesMissing     prometheus.Counter
	detectorLatency  prometheus.Histogram
	frameLatency     prometheus.Histogram
	eyeAspectRatio   prometheus.Gauge
	mouthAspectRatio prometheus.Gauge

	// Alert state
	status          prometheus.Gauge
	closedEyesCount prometheus.Gauge
	mouthOpenCount  prometheus.Gauge
	alerts          *prometheus.CounterVec
	vigilanceScore  prometheus.Gauge
	sessionResets   prometheus.Counter

	// Collaborators
	audioPlays      prometheus.Counter
	audioErrors     prometheus.Counter
	assetDownloads  *prometheus.CounterVec
	wsClients       prometheus.Gauge
	wsMessagesSent  prometheus.Counter
	wsMessagesDrops prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics - snapshot fan-out
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "drowsywatch",
		subsystem:        "monitor",
		histogramBuckets: []float64{1, 2, 5, 10, 20, 35, 50, 75, 100, 150, 250, 500, 1000},
		enabled:          true,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// A disabled manager still builds its collectors so the helpers stay
	// safe to call, but registers none of them.
	var reg prometheus.Registerer
	if m.enabled {
		reg = m.registry
	}
	auto := promauto.With(reg)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}
	counterVec := func(name, help string, labelNames ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, labelNames)
	}

	// Frame pipeline
	m.framesProcessed = counter("frames_processed_total", "Total number of frames that reached the alert state machine")
	m.framesSkipped = counterVec("frames_skipped_total", "Frames dropped before state evaluation, by reason", "reason")
	m.facesMissing = counter("faces_missing_total", "Frames in which the detector found no face")
	m.detectorLatency = histogram("detector_latency_milliseconds", "Landmark detector call latency in milliseconds", m.histogramBuckets)
	m.frameLatency = histogram("frame_latency_milliseconds", "End-to-end per-frame processing latency in milliseconds", m.histogramBuckets)
	m.eyeAspectRatio = gauge("eye_aspect_ratio", "Eye aspect ratio of the latest frame")
	m.mouthAspectRatio = gauge("mouth_aspect_ratio", "Mouth aspect ratio of the latest frame")

	// Alert state
	m.status = gauge("status", "Current alert status (0=awake, 1=drowsy, 2=deep sleep)")
	m.closedEyesCount = gauge("closed_eyes_frames", "Consecutive frames with eyes below the EAR threshold")
	m.mouthOpenCount = gauge("mouth_open_frames", "Consecutive frames with mouth above the MAR threshold")
	m.alerts = counterVec("alerts_total", "Frames that raised an alert, by status", "status")
	m.vigilanceScore = gauge("vigilance_score", "Current session vigilance score (0-100)")
	m.sessionResets = counter("session_resets_total", "Number of session resets")

	// Collaborators
	m.audioPlays = counter("audio_plays_total", "Audio alerts started")
	m.audioErrors = counter("audio_errors_total", "Audio alerts that failed to start")
	m.assetDownloads = counterVec("asset_download_attempts_total", "Model asset download attempts by result", "result")
	m.wsClients = gauge("websocket_clients", "Connected dashboard websocket clients")
	m.wsMessagesSent = counter("websocket_messages_sent_total", "Snapshots delivered to websocket clients")
	m.wsMessagesDrops = counter("websocket_messages_dropped_total", "Snapshots dropped for slow websocket clients")

	// HTTP Performance Metrics
	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			ConstLabels: labels,
			Buckets:     m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Queue Metrics
	m.queueSize = gauge("queue_size", "Current number of snapshots waiting for fan-out")
	m.queueCapacity = gauge("queue_capacity", "Maximum snapshot queue capacity")
	m.queueUtilization = gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of snapshots enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of snapshots dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of snapshots dropped on enqueue")

	// Error Metrics
	m.errorRateByComponent = counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Total number of errors by endpoint",
		"endpoint", "method", "error_type")
	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("error_latency_milliseconds"),
			Help:        "Latency of operations that resulted in errors",
			ConstLabels: labels,
			Buckets:     m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Frame pipeline functions.

// RecordFrameProcessed increments the processed frames counter.
func RecordFrameProcessed() {
	globalManager.framesProcessed.Inc()
}

// RecordFrameSkipped increments the skipped frames counter for reason.
func RecordFrameSkipped(reason string) {
	globalManager.framesSkipped.WithLabelValues(reason).Inc()
}

// RecordFaceMissing increments the no-face counter.
func RecordFaceMissing() {
	globalManager.facesMissing.Inc()
}

// RecordDetectorLatency records landmark detector latency in milliseconds.
func RecordDetectorLatency(latencyMs float64) {
	globalManager.detectorLatency.Observe(latencyMs)
}

// RecordFrameLatency records end-to-end frame latency in milliseconds.
func RecordFrameLatency(latencyMs float64) {
	globalManager.frameLatency.Observe(latencyMs)
}

// UpdateAspectRatios sets the EAR and MAR gauges.
func UpdateAspectRatios(ear, mar float64) {
	globalManager.eyeAspectRatio.Set(ear)
	globalManager.mouthAspectRatio.Set(mar)
}

// Alert state functions.

// UpdateStatus sets the status gauge from its ordinal.
func UpdateStatus(ordinal int) {
	globalManager.status.Set(float64(ordinal))
}

// UpdateCounters sets the consecutive-frame counter gauges.
func UpdateCounters(closedEyes, mouthOpen int) {
	globalManager.closedEyesCount.Set(float64(closedEyes))
	globalManager.mouthOpenCount.Set(float64(mouthOpen))
}

// RecordAlert increments the alert counter for status.
func RecordAlert(status string) {
	globalManager.alerts.WithLabelValues(status).Inc()
}

// UpdateVigilanceScore sets the vigilance score gauge.
func UpdateVigilanceScore(score int) {
	globalManager.vigilanceScore.Set(float64(score))
}

// RecordSessionReset increments the session reset counter.
func RecordSessionReset() {
	globalManager.sessionResets.Inc()
}

// Collaborator functions.

// RecordAudioPlay increments the audio plays counter.
func RecordAudioPlay() {
	globalManager.audioPlays.Inc()
}

// RecordAudioError increments the audio errors counter.
func RecordAudioError() {
	globalManager.audioErrors.Inc()
}

// RecordAssetDownload records a model download attempt outcome.
func RecordAssetDownload(result string) {
	globalManager.assetDownloads.WithLabelValues(result).Inc()
}

// UpdateWebsocketClients sets the connected websocket clients gauge.
func UpdateWebsocketClients(count int) {
	globalManager.wsClients.Set(float64(count))
}

// RecordWebsocketMessageSent increments the websocket delivery counter.
func RecordWebsocketMessageSent() {
	globalManager.wsMessagesSent.Inc()
}

// RecordWebsocketMessageDropped increments the websocket drop counter.
func RecordWebsocketMessageDropped() {
	globalManager.wsMessagesDrops.Inc()
}

// HTTP functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
