// Package metrics provides Prometheus metrics for the Swiss tournament service.
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

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine metrics
	standingsComputed  prometheus.Counter
	standingsLatency   prometheus.Histogram
	roundsPaired       prometheus.Counter
	pairingLatency     prometheus.Histogram
	byesAssigned       prometheus.Counter
	rematchesForced    prometheus.Counter
	floatersUnpaired   prometheus.Counter
	tournamentsActive  prometheus.Gauge
	tournamentsClosed  *prometheus.CounterVec
	playersRegistered  prometheus.Counter
	playersDropped     prometheus.Counter
	drawOffersDecided  *prometheus.CounterVec
	reportsAccepted    prometheus.Counter
	reportsDuplicate   prometheus.Counter
	reportsRejected    prometheus.Counter
	reportsApplied     prometheus.Counter
	reportApplyErrors  prometheus.Counter
	eventsPublished    *prometheus.CounterVec
	eventPublishErrors prometheus.Counter

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Repository metrics
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "swiss",
		subsystem:        "tournament",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval is how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.standingsComputed = auto.NewCounter(m.counter("standings_computed_total", "Total number of standings computations"))
	m.standingsLatency = auto.NewHistogram(m.histogram("standings_latency_milliseconds", "Standings computation latency in milliseconds"))
	m.roundsPaired = auto.NewCounter(m.counter("rounds_paired_total", "Total number of rounds paired"))
	m.pairingLatency = auto.NewHistogram(m.histogram("pairing_latency_milliseconds", "Pairing generation latency in milliseconds"))
	m.byesAssigned = auto.NewCounter(m.counter("byes_assigned_total", "Total number of byes handed out"))
	m.rematchesForced = auto.NewCounter(m.counter("rematches_forced_total", "Tables where rematch avoidance had to fall back to a rematch"))
	m.floatersUnpaired = auto.NewCounter(m.counter("floaters_unpaired_total", "Players left without an opponent by the greedy matcher"))
	m.tournamentsActive = auto.NewGauge(m.gauge("tournaments_active", "Tournaments that are not complete"))
	m.tournamentsClosed = auto.NewCounterVec(m.counter("tournaments_completed_total", "Completed tournaments by completion reason"), []string{"reason"})
	m.playersRegistered = auto.NewCounter(m.counter("players_registered_total", "Total number of player registrations"))
	m.playersDropped = auto.NewCounter(m.counter("players_dropped_total", "Total number of players who dropped"))
	m.drawOffersDecided = auto.NewCounterVec(m.counter("draw_offer_checks_total", "Intentional draw checks by outcome"), []string{"allowed"})

	m.reportsAccepted = auto.NewCounter(m.counter("reports_accepted_total", "Match reports accepted for processing"))
	m.reportsDuplicate = auto.NewCounter(m.counter("reports_duplicate_total", "Match reports ignored as duplicates"))
	m.reportsRejected = auto.NewCounter(m.counter("reports_rejected_total", "Match reports rejected by backpressure"))
	m.reportsApplied = auto.NewCounter(m.counter("reports_applied_total", "Match reports written to the store"))
	m.reportApplyErrors = auto.NewCounter(m.counter("report_apply_errors_total", "Match reports that failed to apply"))

	m.eventsPublished = auto.NewCounterVec(m.counter("events_published_total", "Notifications published by type"), []string{"type"})
	m.eventPublishErrors = auto.NewCounter(m.counter("event_publish_errors_total", "Notifications that failed to publish"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current size of the report queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum capacity of the report queue"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Report queue utilization ratio (size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("queue_enqueue_total", "Total number of messages enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counter("queue_dequeue_total", "Total number of messages dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Total number of enqueue errors"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogram("queue_processing_latency_milliseconds", "Time from enqueue to dequeue in milliseconds"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Number of report workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Report processing latency in milliseconds"))
	m.workerErrorRate = auto.NewCounter(m.counter("worker_errors_total", "Total number of worker errors"))

	m.repositoryUpdateLatency = auto.NewHistogram(m.histogram("repository_update_latency_milliseconds", "Repository write latency in milliseconds"))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogram("repository_query_latency_milliseconds", "Repository read latency in milliseconds"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counter("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds"))
}

// on reports whether the global manager records anything.
func on() bool { return globalManager != nil && globalManager.enabled }

// Engine metrics.

// RecordStandingsComputed counts one standings computation and its latency.
func RecordStandingsComputed(latencyMs float64) {
	if !on() {
		return
	}
	globalManager.standingsComputed.Inc()
	globalManager.standingsLatency.Observe(latencyMs)
}

// RecordRoundPaired counts a paired round with its bye, forced rematches
// and unpaired floaters.
func RecordRoundPaired(latencyMs float64, bye bool, rematches, unpaired int) {
	if !on() {
		return
	}
	globalManager.roundsPaired.Inc()
	globalManager.pairingLatency.Observe(latencyMs)
	if bye {
		globalManager.byesAssigned.Inc()
	}
	globalManager.rematchesForced.Add(float64(rematches))
	globalManager.floatersUnpaired.Add(float64(unpaired))
}

// UpdateTournamentsActive sets the number of unfinished tournaments.
func UpdateTournamentsActive(count int) {
	if on() {
		globalManager.tournamentsActive.Set(float64(count))
	}
}

// RecordTournamentCompleted counts a completion by reason.
func RecordTournamentCompleted(reason string) {
	if on() {
		globalManager.tournamentsClosed.WithLabelValues(reason).Inc()
	}
}

// RecordPlayerRegistered counts a registration.
func RecordPlayerRegistered() {
	if on() {
		globalManager.playersRegistered.Inc()
	}
}

// RecordPlayerDropped counts a drop.
func RecordPlayerDropped() {
	if on() {
		globalManager.playersDropped.Inc()
	}
}

// RecordDrawOfferCheck counts an intentional draw check by outcome.
func RecordDrawOfferCheck(allowed bool) {
	if !on() {
		return
	}
	label := "false"
	if allowed {
		label = "true"
	}
	globalManager.drawOffersDecided.WithLabelValues(label).Inc()
}

// Report pipeline metrics.

// RecordReportAccepted increments the accepted reports counter.
func RecordReportAccepted() {
	if on() {
		globalManager.reportsAccepted.Inc()
	}
}

// RecordReportDuplicate increments the duplicate reports counter.
func RecordReportDuplicate() {
	if on() {
		globalManager.reportsDuplicate.Inc()
	}
}

// RecordReportRejected increments the backpressure rejection counter.
func RecordReportRejected() {
	if on() {
		globalManager.reportsRejected.Inc()
	}
}

// RecordReportApplied increments the applied reports counter.
func RecordReportApplied() {
	if on() {
		globalManager.reportsApplied.Inc()
	}
}

// RecordReportApplyError increments the failed report counter.
func RecordReportApplyError() {
	if on() {
		globalManager.reportApplyErrors.Inc()
	}
}

// RecordEventPublished counts a notification by type.
func RecordEventPublished(eventType string) {
	if on() {
		globalManager.eventsPublished.WithLabelValues(eventType).Inc()
	}
}

// RecordEventPublishError counts a failed notification.
func RecordEventPublishError() {
	if on() {
		globalManager.eventPublishErrors.Inc()
	}
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if on() {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueueRate.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeueRate.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency records time spent waiting in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.queueProcessingLatency.Observe(latencyMs)
	}
}

// Worker metrics.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrorRate.Inc()
	}
}

// Repository metrics.

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	if on() {
		globalManager.repositoryUpdateLatency.Observe(latencyMs)
	}
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	if on() {
		globalManager.repositoryQueryLatency.Observe(latencyMs)
	}
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if on() {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval returns the global manager's gauge refresh interval.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// SetEnabled switches global recording on or off.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// Since returns the milliseconds elapsed since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
