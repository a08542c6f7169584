// Package metrics provides Prometheus metrics for the efast detector pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyMicrosBuckets spans a single event up to very large packets.
var latencyMicrosBuckets = []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000} //nolint:gochecknoglobals // bucket layout

// Manager manages all Prometheus metrics for the efast pipeline.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	metricPrefix   string
	registry       prometheus.Registerer

	// Detector Metrics
	eventsProcessed        prometheus.Counter
	eventsRejected         *prometheus.CounterVec
	classifications        *prometheus.CounterVec
	featuresDetected       prometheus.Counter
	packetsProcessed       prometheus.Counter
	packetsSkipped         prometheus.Counter
	packetDetectionLatency prometheus.Histogram
	activeFeatures         prometheus.Gauge

	// Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Sink Metrics
	featureLogWrites  prometheus.Counter
	featureLogLatency prometheus.Histogram
	framesRendered    prometheus.Counter
	liveClients       prometheus.Gauge
	liveMessages      *prometheus.CounterVec

	// HTTP Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "efast",
		subsystem:      "detector",
		latencyBuckets: prometheus.DefBuckets,
		registry:       prometheus.DefaultRegisterer,
	}

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
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)
	labels := m.constLabels

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

	// Detector Metrics
	m.eventsProcessed = counter("events_processed_total", "Total number of events classified by the detector")
	m.eventsRejected = counterVec("events_rejected_total", "Events dropped before classification", "reason")
	m.classifications = counterVec("classifications_total", "Classification outcomes by terminal state", "outcome")
	m.featuresDetected = counter("features_detected_total", "Total number of events classified as features")
	m.packetsProcessed = counter("packets_processed_total", "Total number of packets run through the detector")
	m.packetsSkipped = counter("packets_skipped_total", "Packets skipped because they carry a non-event stream")
	m.packetDetectionLatency = histogram("packet_detection_latency_microseconds", "Time spent classifying one packet in microseconds", latencyMicrosBuckets)
	m.activeFeatures = gauge("active_features", "Number of pixels currently reported as features")

	// Queue Metrics
	m.queueSize = gauge("queue_size", "Current number of queued packets")
	m.queueCapacity = gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of packets enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of packets dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = histogram("queue_processing_latency_milliseconds", "Queue enqueue latency in milliseconds", m.latencyBuckets)

	// Worker Metrics
	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds", "Packet handling latency including sinks in milliseconds", m.latencyBuckets)
	m.workerErrorRate = counter("worker_errors_total", "Total number of worker errors")

	// Sink Metrics
	m.featureLogWrites = counter("feature_log_writes_total", "Total number of packets written to the feature log")
	m.featureLogLatency = histogram("feature_log_latency_milliseconds", "Feature log write latency in milliseconds", m.latencyBuckets)
	m.framesRendered = counter("frames_rendered_total", "Total number of frames rendered")
	m.liveClients = gauge("live_clients", "Number of connected live view clients")
	m.liveMessages = counterVec("live_messages_total", "Messages broadcast to live view clients", "type")

	// HTTP Metrics
	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			ConstLabels: labels,
			Buckets:     m.latencyBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics
	m.errorRateByComponent = counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	// System Metrics
	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Milliseconds converts d for the *_milliseconds histograms, keeping the
// sub-millisecond part.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Detector Metrics Functions.

// RecordEventsProcessed adds n classified events.
func RecordEventsProcessed(n int) {
	globalManager.eventsProcessed.Add(float64(n))
}

// RecordEventRejected counts an event dropped before classification.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// RecordClassifications adds n outcomes of the given kind.
func RecordClassifications(outcome string, n int) {
	if n <= 0 {
		return
	}
	globalManager.classifications.WithLabelValues(outcome).Add(float64(n))
}

// RecordFeaturesDetected adds n detected features.
func RecordFeaturesDetected(n int) {
	globalManager.featuresDetected.Add(float64(n))
}

// RecordPacketProcessed increments the processed packet counter.
func RecordPacketProcessed() {
	globalManager.packetsProcessed.Inc()
}

// RecordPacketSkipped increments the skipped packet counter.
func RecordPacketSkipped() {
	globalManager.packetsSkipped.Inc()
}

// RecordPacketDetectionLatency records per-packet detection time.
func RecordPacketDetectionLatency(d time.Duration) {
	globalManager.packetDetectionLatency.Observe(float64(d.Microseconds()))
}

// UpdateActiveFeatures sets the active feature gauge.
func UpdateActiveFeatures(count int64) {
	globalManager.activeFeatures.Set(float64(count))
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

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Sink Metrics Functions.

// RecordFeatureLogWrite records one feature log write and its latency.
func RecordFeatureLogWrite(latencyMs float64) {
	globalManager.featureLogWrites.Inc()
	globalManager.featureLogLatency.Observe(latencyMs)
}

// RecordFrameRendered increments the rendered frame counter.
func RecordFrameRendered() {
	globalManager.framesRendered.Inc()
}

// UpdateLiveClients sets the number of connected live view clients.
func UpdateLiveClients(count int) {
	globalManager.liveClients.Set(float64(count))
}

// RecordLiveMessage counts a broadcast message of the given type.
func RecordLiveMessage(messageType string) {
	globalManager.liveMessages.WithLabelValues(messageType).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Metrics Functions.

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
