// Package metrics exposes Prometheus instrumentation for the conversion
// service. A single Manager owns every metric; package-level helpers record
// against a process-wide manager so call sites stay one-liners.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spikepipe"

// Histogram bucket layouts.
var (
	latencyBucketsMs = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	durationBucketsS = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900, 1800}
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	registry *prometheus.Registry

	// Job lifecycle.
	jobsSubmitted prometheus.Counter
	jobsDuplicate prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsActive    prometheus.Gauge
	jobDuration   prometheus.Histogram

	// Conversion pipeline.
	chunksProcessed prometheus.Counter
	framesConverted prometheus.Counter
	bytesWritten    prometheus.Counter
	clippedSamples  prometheus.Counter
	chunkLatency    prometheus.Histogram
	readLatency     prometheus.Histogram
	writeLatency    prometheus.Histogram

	// Chunk queue.
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers.
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// External sorter.
	sorterRuns     prometheus.Counter
	sorterFailures prometheus.Counter
	sorterDuration prometheus.Histogram

	// Job store.
	repositoryRecords prometheus.Gauge

	// HTTP surface.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error accounting.
	errorsByComponent *prometheus.CounterVec

	// Process health.
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
	systemGCPause     prometheus.Histogram
}

var (
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry
	globalManager  *Manager                   //nolint:gochecknoglobals // process-wide manager
)

func init() { //nolint:gochecknoinits // metrics must exist before first use
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat metric declarations
	auto := promauto.With(m.registry)

	m.jobsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "jobs", Name: "submitted_total",
		Help: "Total number of jobs accepted for processing",
	})
	m.jobsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "jobs", Name: "duplicate_total",
		Help: "Total number of submissions rejected as duplicates",
	})
	m.jobsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "jobs", Name: "completed_total",
		Help: "Total number of jobs that reached the done state",
	})
	m.jobsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "jobs", Name: "failed_total",
		Help: "Total number of jobs that reached the failed state",
	})
	m.jobsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "jobs", Name: "active",
		Help: "Number of jobs currently converting or sorting",
	})
	m.jobDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "jobs", Name: "duration_seconds",
		Help:    "End-to-end job duration in seconds",
		Buckets: durationBucketsS,
	})

	m.chunksProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "convert", Name: "chunks_processed_total",
		Help: "Total number of chunks copied to the output binary",
	})
	m.framesConverted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "convert", Name: "frames_converted_total",
		Help: "Total number of frames converted",
	})
	m.bytesWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "convert", Name: "bytes_written_total",
		Help: "Total number of bytes written to output binaries",
	})
	m.clippedSamples = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "convert", Name: "clipped_samples_total",
		Help: "Total number of samples clamped to the int16 range during scaling",
	})
	m.chunkLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "convert", Name: "chunk_latency_ms",
		Help:    "Per-chunk read+scale+write latency in milliseconds",
		Buckets: latencyBucketsMs,
	})
	m.readLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "convert", Name: "read_latency_ms",
		Help:    "Per-chunk source read latency in milliseconds",
		Buckets: latencyBucketsMs,
	})
	m.writeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "convert", Name: "write_latency_ms",
		Help:    "Per-chunk output write latency in milliseconds",
		Buckets: latencyBucketsMs,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "queue", Name: "size",
		Help: "Current number of chunk tasks in the queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "queue", Name: "capacity",
		Help: "Configured chunk queue capacity",
	})
	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "queue", Name: "utilization",
		Help: "Queue fill ratio between 0 and 1",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "enqueue_total",
		Help: "Total number of successful chunk enqueues",
	})
	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "dequeue_total",
		Help: "Total number of chunk dequeues",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "enqueue_errors_total",
		Help: "Total number of rejected enqueues (full or closed queue)",
	})

	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "worker", Name: "active",
		Help: "Number of chunk workers currently running",
	})
	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "worker", Name: "processing_latency_ms",
		Help:    "Per-task worker processing latency in milliseconds",
		Buckets: latencyBucketsMs,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "worker", Name: "errors_total",
		Help: "Total number of chunk tasks that failed",
	})

	m.sorterRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sorter", Name: "runs_total",
		Help: "Total number of external sorter invocations",
	})
	m.sorterFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sorter", Name: "failures_total",
		Help: "Total number of failed sorter invocations",
	})
	m.sorterDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "sorter", Name: "duration_seconds",
		Help:    "Wall-clock duration of sorter runs in seconds",
		Buckets: durationBucketsS,
	})

	m.repositoryRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "repository", Name: "records",
		Help: "Number of job records held in the store",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_ms",
			Help:    "HTTP request duration in milliseconds",
			Buckets: latencyBucketsMs,
		},
		[]string{"endpoint", "method", "status"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "errors", Name: "by_component_total",
			Help: "Errors by component and reason",
		},
		[]string{"component", "reason"},
	)

	m.systemMemoryBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "system", Name: "memory_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "system", Name: "goroutines",
		Help: "Current number of goroutines",
	})
	m.systemGCPause = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "system", Name: "gc_pause_ms",
		Help:    "Average GC pause in milliseconds",
		Buckets: latencyBucketsMs,
	})
}

// GetRegistry returns the registry backing the package-level manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Job lifecycle helpers.
func RecordJobSubmitted()                { globalManager.jobsSubmitted.Inc() }
func RecordJobDuplicate()                { globalManager.jobsDuplicate.Inc() }
func RecordJobCompleted()                { globalManager.jobsCompleted.Inc() }
func RecordJobFailed()                   { globalManager.jobsFailed.Inc() }
func UpdateActiveJobs(n int)             { globalManager.jobsActive.Set(float64(n)) }
func RecordJobDuration(seconds float64)  { globalManager.jobDuration.Observe(seconds) }

// Conversion helpers.
func RecordChunkProcessed()              { globalManager.chunksProcessed.Inc() }
func RecordFramesConverted(n int64)      { globalManager.framesConverted.Add(float64(n)) }
func RecordBytesWritten(n int64)         { globalManager.bytesWritten.Add(float64(n)) }
func RecordClippedSamples(n int64)       { globalManager.clippedSamples.Add(float64(n)) }
func RecordChunkLatency(ms float64)      { globalManager.chunkLatency.Observe(ms) }
func RecordReadLatency(ms float64)       { globalManager.readLatency.Observe(ms) }
func RecordWriteLatency(ms float64)      { globalManager.writeLatency.Observe(ms) }

// Queue helpers.
func UpdateQueueSize(n int)              { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int)          { globalManager.queueCapacity.Set(float64(n)) }
func UpdateQueueUtilization(r float64)   { globalManager.queueUtilization.Set(r) }
func RecordQueueEnqueue()                { globalManager.queueEnqueues.Inc() }
func RecordQueueDequeue()                { globalManager.queueDequeues.Inc() }
func RecordQueueEnqueueError()           { globalManager.queueEnqueueErrors.Inc() }

// Worker helpers.
func UpdateWorkerActiveCount(n int)      { globalManager.workerActive.Set(float64(n)) }
func RecordWorkerLatency(ms float64)     { globalManager.workerLatency.Observe(ms) }
func RecordWorkerError()                 { globalManager.workerErrors.Inc() }

// Sorter helpers.
func RecordSorterRun()                   { globalManager.sorterRuns.Inc() }
func RecordSorterFailure()               { globalManager.sorterFailures.Inc() }
func RecordSorterDuration(seconds float64) { globalManager.sorterDuration.Observe(seconds) }

// Store helpers.
func UpdateRepositoryRecords(n int)      { globalManager.repositoryRecords.Set(float64(n)) }

// HTTP helpers.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// Error helpers.
func RecordErrorByComponent(component, reason string) {
	globalManager.errorsByComponent.WithLabelValues(component, reason).Inc()
}

// System helpers.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryBytes.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutines.Set(float64(n)) }
func RecordSystemGCPauseTime(ms float64)   { globalManager.systemGCPause.Observe(ms) }
