// Package metrics provides Prometheus metrics for the oral-scan prediction service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// latencyBuckets are milliseconds, tuned for image decode and CPU inference.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // bucket layout

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pipeline outcomes
	predictions      *prometheus.CounterVec
	catalogFallbacks *prometheus.CounterVec
	recordsPersisted prometheus.Counter
	historyReads     prometheus.Counter

	// Stage latencies
	uploadLatency    prometheus.Histogram
	normalizeLatency prometheus.Histogram
	inferenceLatency prometheus.Histogram
	pipelineLatency  *prometheus.HistogramVec

	// Stage failures
	stageErrors *prometheus.CounterVec

	// Inference queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueRejected      prometheus.Counter
	workerCount        prometheus.Gauge
	workerBusy         prometheus.Gauge
	workerJobs         prometheus.Counter
	workerJobErrors    prometheus.Counter
	recordsStoredTotal prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "oralscan",
		subsystem:        "pipeline",
		histogramBuckets: latencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often gauges sampled by background loops are refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.predictions = m.counterVec("predictions_total", "Predictions by outcome (confirmed, not_detected) and label", "outcome", "label")
	m.catalogFallbacks = m.counterVec("catalog_fallbacks_total", "Catalog lookups that fell back to placeholder text", "reason")
	m.recordsPersisted = m.counter("records_persisted_total", "Prediction records written to the store")
	m.historyReads = m.counter("history_reads_total", "History queries served")

	m.uploadLatency = m.histogram("upload_latency_milliseconds", "Object storage upload latency", m.histogramBuckets)
	m.normalizeLatency = m.histogram("normalize_latency_milliseconds", "Image decode and resize latency", m.histogramBuckets)
	m.inferenceLatency = m.histogram("inference_latency_milliseconds", "Model inference latency including queue wait", m.histogramBuckets)
	m.pipelineLatency = m.histogramVec("predict_latency_milliseconds", "End-to-end predict latency by result", "result")

	m.stageErrors = m.counterVec("stage_errors_total", "Pipeline failures by stage", "stage")

	m.queueSize = m.gauge("inference_queue_size", "Jobs waiting for an inference worker")
	m.queueCapacity = m.gauge("inference_queue_capacity", "Maximum inference queue depth")
	m.queueUtilization = m.gauge("inference_queue_utilization_ratio", "Inference queue fill ratio (0-1)")
	m.queueRejected = m.counter("inference_queue_rejected_total", "Jobs refused because the queue was full or closed")
	m.workerCount = m.gauge("inference_workers", "Inference workers (one model session each)")
	m.workerBusy = m.gauge("inference_workers_busy", "Inference workers currently running a session")
	m.workerJobs = m.counter("inference_jobs_total", "Inference jobs completed")
	m.workerJobErrors = m.counter("inference_job_errors_total", "Inference jobs that failed")
	m.recordsStoredTotal = m.gauge("records_stored", "Prediction records currently held by the store")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "HTTP errors by type and severity", "error_type", "severity")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// RecordPrediction counts a finished classification.
func RecordPrediction(outcome, label string) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictions.WithLabelValues(outcome, label).Inc()
}

// RecordCatalogFallback counts a placeholder substitution (reason: missing, unavailable).
func RecordCatalogFallback(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.catalogFallbacks.WithLabelValues(reason).Inc()
}

// RecordPersisted counts a written prediction record.
func RecordPersisted() {
	if !globalManager.enabled {
		return
	}
	globalManager.recordsPersisted.Inc()
}

// RecordHistoryRead counts a served history query.
func RecordHistoryRead() {
	if !globalManager.enabled {
		return
	}
	globalManager.historyReads.Inc()
}

// RecordUploadLatency observes one object storage upload.
func RecordUploadLatency(d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.uploadLatency.Observe(ms(d))
}

// RecordNormalizeLatency observes one image normalization.
func RecordNormalizeLatency(d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.normalizeLatency.Observe(ms(d))
}

// RecordInferenceLatency observes one classification, queue wait included.
func RecordInferenceLatency(d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.inferenceLatency.Observe(ms(d))
}

// RecordPredictLatency observes an end-to-end predict call labelled by result.
func RecordPredictLatency(result string, d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.pipelineLatency.WithLabelValues(result).Observe(ms(d))
}

// RecordStageError counts a failure of a pipeline stage (upload, normalize, inference, persist, history).
func RecordStageError(stage string) {
	if !globalManager.enabled {
		return
	}
	globalManager.stageErrors.WithLabelValues(stage).Inc()
}

// UpdateQueueSize sets the number of waiting inference jobs.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum inference queue depth.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the inference queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueRejected counts a job refused by the queue.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the number of inference workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// WorkerBusy adjusts the busy worker gauge by delta.
func WorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerJob counts a finished inference job.
func RecordWorkerJob(err error) {
	globalManager.workerJobs.Inc()
	if err != nil {
		globalManager.workerJobErrors.Inc()
	}
}

// RefreshInterval reports how often background loops should sample gauges.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// UpdateRecordsStored sets the number of records held by the store.
func UpdateRecordsStored(count int) {
	globalManager.recordsStoredTotal.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an HTTP error with endpoint, method and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an HTTP error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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

// SetEnabled toggles recording of pipeline metrics on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
