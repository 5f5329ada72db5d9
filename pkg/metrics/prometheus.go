// Package metrics provides Prometheus metrics for the rally settlement service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Applier outcomes, labeled by the recorded outcome value.
	eventOutcomes  *prometheus.CounterVec
	eventReplays   prometheus.Counter
	applyLatencyMs prometheus.Histogram

	// Ledger health.
	txnRetries   prometheus.Counter
	txnConflicts prometheus.Counter

	// Settlement.
	settlementsApplied   prometheus.Counter
	settlementsReversed  prometheus.Counter
	settlementFailures   prometheus.Counter
	transitionsDuplicate prometheus.Counter

	// Bracket advancement.
	slotsAdvanced prometheus.Counter

	// Transition queue and workers.
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueueErrs prometheus.Counter
	workerCount      prometheus.Gauge
	workerErrors     prometheus.Counter

	// HTTP.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Matches tracked.
	matchesTracked prometheus.Gauge

	// Process health.
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
	gcPauseMs         prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rally",
		subsystem:        "settlement",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initialize()
	return m
}

func (m *Manager) initialize() {
	auto := promauto.With(m.registry)

	m.eventOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "event_outcomes_total",
		Help:      "Score events by recorded outcome",
	}, []string{"outcome"})

	m.eventReplays = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "event_replays_total",
		Help:      "Events answered from an existing application marker",
	})

	m.applyLatencyMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "apply_latency_milliseconds",
		Help:      "Latency of one applier transaction in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.txnRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_txn_retries_total",
		Help:      "Ledger transactions retried after a write-write conflict",
	})

	m.txnConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_txn_conflicts_total",
		Help:      "Write-write conflicts observed at commit",
	})

	m.settlementsApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "settlements_applied_total",
		Help:      "Match outcomes folded into the leaderboard",
	})

	m.settlementsReversed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "settlements_reversed_total",
		Help:      "Match outcomes reversed out of the leaderboard",
	})

	m.settlementFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "settlement_failures_total",
		Help:      "Settlements that failed and were compensated",
	})

	m.transitionsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transitions_duplicate_total",
		Help:      "Duplicate done-state notifications shed before the queue",
	})

	m.slotsAdvanced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bracket_slots_advanced_total",
		Help:      "Dependent matches advanced from pending to ready",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transition_queue_size",
		Help:      "Transitions currently queued for settlement",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transition_queue_capacity",
		Help:      "Configured transition queue capacity",
	})

	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transition_queue_enqueue_errors_total",
		Help:      "Transitions rejected by the queue",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Settlement workers running",
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Errors raised while processing transitions",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.matchesTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_tracked",
		Help:      "Matches currently present in the ledger",
	})

	m.systemMemoryBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_bytes",
		Help:      "Heap bytes currently allocated",
	})

	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Goroutines currently running",
	})

	m.gcPauseMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// GetRegistry returns the registry metrics are served from.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers against the global manager.

// RecordEventOutcome counts one applier decision by outcome value.
func RecordEventOutcome(outcome string) {
	globalManager.eventOutcomes.WithLabelValues(outcome).Inc()
}

// RecordEventReplay counts an event answered from its existing marker.
func RecordEventReplay() { globalManager.eventReplays.Inc() }

// RecordApplyLatency records one applier transaction's latency.
func RecordApplyLatency(ms float64) { globalManager.applyLatencyMs.Observe(ms) }

// RecordTxnRetry counts a ledger transaction retry.
func RecordTxnRetry() { globalManager.txnRetries.Inc() }

// RecordTxnConflict counts a commit-time write-write conflict.
func RecordTxnConflict() { globalManager.txnConflicts.Inc() }

// RecordSettlementApplied counts a leaderboard fold-in.
func RecordSettlementApplied() { globalManager.settlementsApplied.Inc() }

// RecordSettlementReversed counts a leaderboard reversal.
func RecordSettlementReversed() { globalManager.settlementsReversed.Inc() }

// RecordSettlementFailure counts a compensated settlement failure.
func RecordSettlementFailure() { globalManager.settlementFailures.Inc() }

// RecordTransitionDuplicate counts a shed duplicate notification.
func RecordTransitionDuplicate() { globalManager.transitionsDuplicate.Inc() }

// RecordSlotAdvanced counts a pending slot promoted to ready.
func RecordSlotAdvanced() { globalManager.slotsAdvanced.Inc() }

// UpdateQueueSize sets the current transition queue depth.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// UpdateQueueCapacity sets the configured queue capacity.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrs.Inc() }

// UpdateWorkerCount sets the number of running settlement workers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// RecordWorkerError counts a transition processing error.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records one HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// UpdateMatchesTracked sets the number of matches in the ledger.
func UpdateMatchesTracked(n int) { globalManager.matchesTracked.Set(float64(n)) }

// UpdateSystemMemoryUsage sets the current heap allocation.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryBytes.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutines.Set(float64(n)) }

// RecordSystemGCPauseTime records the average GC pause in milliseconds.
func RecordSystemGCPauseTime(ms float64) { globalManager.gcPauseMs.Observe(ms) }
