// Package metrics provides Prometheus metrics for the jackcount service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	cadenceBuckets   []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Counting
	frames        *prometheus.CounterVec
	repetitions   prometheus.Counter
	transitions   *prometheus.CounterVec
	cadence       prometheus.Histogram
	framesDeduped prometheus.Counter

	// Sessions
	activeSessions  prometheus.Gauge
	sessionsStarted prometheus.Counter
	sessionsStopped prometheus.Counter
	sessionsReset   prometheus.Counter

	// Repository
	sessionsPerShard        *prometheus.GaugeVec
	repositoryUpdateLatency prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     *prometheus.CounterVec
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// Stream
	streamMessages *prometheus.CounterVec
	streamErrors   *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package helpers

// Custom registry to keep default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "jackcount",
		subsystem:        "counter",
		histogramBuckets: prometheus.DefBuckets,
		cadenceBuckets:   []float64{0.25, 0.5, 0.75, 1, 1.5, 2, 3, 4},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.frames = m.counterVec("frames_total",
		"Pose frames processed, by outcome (low_confidence, degenerate, indeterminate, held, transition, repetition)",
		"outcome")
	m.repetitions = m.counter("repetitions_total", "Completed Down-Up-Down cycles across all sessions")
	m.transitions = m.counterVec("transitions_total", "Confirmed body state transitions", "from", "to")
	m.cadence = m.histogram("cadence_per_second", "Cumulative cadence observed at each completed repetition, in repetitions per second", m.cadenceBuckets)
	m.framesDeduped = m.counter("frames_duplicate_total", "Frames dropped because their frame_id was already seen")

	m.activeSessions = m.gauge("active_sessions", "Sessions currently tracked")
	m.sessionsStarted = m.counter("sessions_started_total", "Sessions started")
	m.sessionsStopped = m.counter("sessions_stopped_total", "Sessions stopped")
	m.sessionsReset = m.counter("sessions_reset_total", "Explicit session resets")

	m.sessionsPerShard = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "repository_sessions_per_shard",
		Help: "Sessions held by each store shard",
	}, []string{"shard"})
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Session update latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Frames waiting across all queue partitions")
	m.queueCapacity = m.gauge("queue_capacity", "Total queue capacity across partitions")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Frames enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Frames dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueue attempts", "reason")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Running frame workers")
	m.workerErrors = m.counter("worker_errors_total", "Frames that failed inside a worker")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-frame worker latency in milliseconds", m.histogramBuckets)

	m.streamMessages = m.counterVec("stream_messages_total", "NATS messages handled", "direction")
	m.streamErrors = m.counterVec("stream_errors_total", "NATS message failures", "direction", "reason")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordFrame counts a processed frame by outcome.
func RecordFrame(outcome string) {
	globalManager.frames.WithLabelValues(outcome).Inc()
}

// RecordRepetition counts a completed cycle and observes the cadence at that
// point. perSecond must already be converted from the session's unit.
func RecordRepetition(perSecond float64) {
	globalManager.repetitions.Inc()
	globalManager.cadence.Observe(perSecond)
}

// RecordTransition counts a confirmed state change.
func RecordTransition(from, to string) {
	globalManager.transitions.WithLabelValues(from, to).Inc()
}

// RecordFrameDuplicate counts a frame dropped by dedupe.
func RecordFrameDuplicate() {
	globalManager.framesDeduped.Inc()
}

// UpdateActiveSessions sets the tracked session count.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordSessionStarted increments the started sessions counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordSessionStopped increments the stopped sessions counter.
func RecordSessionStopped() {
	globalManager.sessionsStopped.Inc()
}

// RecordSessionReset increments the reset counter.
func RecordSessionReset() {
	globalManager.sessionsReset.Inc()
}

// UpdateSessionsPerShard sets the session gauge of one store shard.
func UpdateSessionsPerShard(shard string, count int) {
	globalManager.sessionsPerShard.WithLabelValues(shard).Set(float64(count))
}

// RecordRepositoryUpdateLatency observes one session update.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the total queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the running worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerProcessingLatency records per-frame worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordStreamMessage counts a NATS message; direction is "in" or "out".
func RecordStreamMessage(direction string) {
	globalManager.streamMessages.WithLabelValues(direction).Inc()
}

// RecordStreamError counts a failed NATS message.
func RecordStreamError(direction, reason string) {
	globalManager.streamErrors.WithLabelValues(direction, reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

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
