// Package metrics provides Prometheus metrics for the identity normalization pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the normalization service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Pipeline metrics
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	tablesTotal        *prometheus.CounterVec
	recordsTotal       *prometheus.CounterVec
	headerResolutions  *prometheus.CounterVec
	coercionFailures   *prometheus.CounterVec
	orphanReferences   *prometheus.CounterVec
	reviewDispositions *prometheus.CounterVec

	// Store metrics
	storeLatency *prometheus.HistogramVec

	// Queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerBusy              prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Errors by component
	errorsByComponent *prometheus.CounterVec
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
		namespace:        "idnorm",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauges fed from polled state are refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	// Pipeline
	m.runsTotal = auto.NewCounterVec(
		m.counterOpts("runs_total", "Total number of normalization runs by outcome"),
		[]string{"outcome"},
	)
	m.runDuration = auto.NewHistogram(
		m.histogramOpts("run_duration_milliseconds", "Normalization run duration in milliseconds", m.histogramBuckets),
	)
	m.tablesTotal = auto.NewCounterVec(
		m.counterOpts("tables_total", "Total number of input tables by outcome"),
		[]string{"outcome"},
	)
	m.recordsTotal = auto.NewCounterVec(
		m.counterOpts("records_total", "Total number of normalized records by table and partition"),
		[]string{"table", "partition"},
	)
	m.headerResolutions = auto.NewCounterVec(
		m.counterOpts("header_resolutions_total", "Header resolutions by confidence tier"),
		[]string{"tier"},
	)
	m.coercionFailures = auto.NewCounterVec(
		m.counterOpts("coercion_failures_total", "Cell values that could not be coerced, by field"),
		[]string{"field"},
	)
	m.orphanReferences = auto.NewCounterVec(
		m.counterOpts("orphan_references_total", "Relationship endpoints that matched no indexed entity"),
		[]string{"table"},
	)
	m.reviewDispositions = auto.NewCounterVec(
		m.counterOpts("review_dispositions_total", "Reviewer decisions on pending columns"),
		[]string{"decision"},
	)

	// Store
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)

	// Queue
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of queued runs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of runs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of runs dequeued"))
	m.queueEnqueueErrs = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue errors"))

	// Workers
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Number of workers in the pool"))
	m.workerBusy = auto.NewGauge(m.gaugeOpts("worker_busy", "Number of workers currently running a job"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", m.histogramBuckets),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of failed jobs"))

	// HTTP
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
}

// RecordRun counts a finished run and observes its duration.
func RecordRun(outcome string, d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.runsTotal.WithLabelValues(outcome).Inc()
	globalManager.runDuration.Observe(float64(d.Milliseconds()))
}

// RecordTable counts a table by outcome (normalized, skipped, failed).
func RecordTable(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.tablesTotal.WithLabelValues(outcome).Inc()
}

// RecordRecords adds n records of table to the given partition.
func RecordRecords(table, partition string, n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.recordsTotal.WithLabelValues(table, partition).Add(float64(n))
}

// RecordHeaderResolution counts a header resolution at the given tier.
func RecordHeaderResolution(tier string) {
	if !globalManager.enabled {
		return
	}
	globalManager.headerResolutions.WithLabelValues(tier).Inc()
}

// RecordCoercionFailure counts an uncoercible cell.
func RecordCoercionFailure(field string) {
	if !globalManager.enabled {
		return
	}
	globalManager.coercionFailures.WithLabelValues(field).Inc()
}

// RecordOrphanReference counts an unresolved relationship endpoint.
func RecordOrphanReference(table string) {
	if !globalManager.enabled {
		return
	}
	globalManager.orphanReferences.WithLabelValues(table).Inc()
}

// RecordReviewDisposition counts a reviewer decision (assign or skip).
func RecordReviewDisposition(decision string) {
	if !globalManager.enabled {
		return
	}
	globalManager.reviewDispositions.WithLabelValues(decision).Inc()
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// UpdateWorkerCount sets the pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// SetEnabled toggles recording of pipeline metrics on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Total returns the sum over all series of the named metric family in the
// global registry. Histograms contribute their sample count.
func Total(family string) (float64, error) {
	mfs, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	for _, mf := range mfs {
		if mf.GetName() != family {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				sum += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				sum += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				sum += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return sum, nil
	}
	return 0, nil
}
