package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the enrichment service.
// Metrics are organized by subsystem: enrichment runs, sources, preprints and
// version links, open-access checks, batches and events. All counters and
// histograms are registered via promauto with the default Prometheus registry.
type Metrics struct {
	// EnrichmentsStarted counts single-record enrichment runs started.
	EnrichmentsStarted prometheus.Counter

	// EnrichmentsCompleted counts enrichment runs by outcome ("abstract_found", "no_abstract").
	EnrichmentsCompleted *prometheus.CounterVec

	// EnrichmentDuration observes the duration of one record enrichment in seconds.
	EnrichmentDuration prometheus.Histogram

	// SourceAttempts counts adapter attempts, labeled by source and status.
	SourceAttempts *prometheus.CounterVec

	// SourceAttemptDuration observes adapter call duration in seconds, labeled by source.
	// The value includes rate limiter waits and retries.
	SourceAttemptDuration *prometheus.HistogramVec

	// SourceFailures counts failed attempts, labeled by source and reason class.
	SourceFailures *prometheus.CounterVec

	// SourcePanics counts adapter panics recovered at the adapter boundary.
	SourcePanics *prometheus.CounterVec

	// AbstractsFound counts abstracts assigned, labeled by the supplying source.
	AbstractsFound *prometheus.CounterVec

	// AbstractsMissing counts records left without an abstract after all sources.
	AbstractsMissing prometheus.Counter

	// PreprintsDetected counts records classified as preprints, labeled by server.
	PreprintsDetected *prometheus.CounterVec

	// VersionLinks counts linking workflow outcomes
	// ("linked_new", "linked_existing", "already_linked", "failed").
	VersionLinks *prometheus.CounterVec

	// PublishedRecordsCreated counts published-version records created by linking.
	PublishedRecordsCreated prometheus.Counter

	// OAChecks counts open-access checks, labeled by status.
	OAChecks *prometheus.CounterVec

	// BatchesStarted counts batch runs started.
	BatchesStarted prometheus.Counter

	// BatchesCompleted counts batch runs finished.
	BatchesCompleted prometheus.Counter

	// BatchDuration observes batch duration in seconds.
	BatchDuration prometheus.Histogram

	// RecordsPersisted counts enriched records written back to the store.
	RecordsPersisted prometheus.Counter

	// RecordsPersistFailed counts enriched records that could not be written back.
	RecordsPersistFailed prometheus.Counter

	// EventsPublished counts events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts events that could not be published, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Enrichment runs
		EnrichmentsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_started_total",
			Help:      "Total number of record enrichments started",
		}),
		EnrichmentsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_completed_total",
			Help:      "Total number of record enrichments completed by outcome",
		}, []string{"outcome"}),
		EnrichmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_duration_seconds",
			Help:      "Duration of a single record enrichment in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),

		// Sources
		SourceAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_attempts_total",
			Help:      "Total number of source attempts by source and status",
		}, []string{"source", "status"}),
		SourceAttemptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_attempt_duration_seconds",
			Help:      "Duration of source attempts in seconds, including rate limit waits",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SourceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Total number of failed source attempts by reason",
		}, []string{"source", "reason"}),
		SourcePanics: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_panics_total",
			Help:      "Total number of recovered adapter panics",
		}, []string{"source"}),

		// Abstracts
		AbstractsFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abstracts_found_total",
			Help:      "Total number of abstracts assigned by source",
		}, []string{"source"}),
		AbstractsMissing: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abstracts_missing_total",
			Help:      "Total number of records left without an abstract",
		}),

		// Preprints and version links
		PreprintsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preprints_detected_total",
			Help:      "Total number of records classified as preprints by server",
		}, []string{"server"}),
		VersionLinks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_links_total",
			Help:      "Total number of preprint linking outcomes",
		}, []string{"outcome"}),
		PublishedRecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_records_created_total",
			Help:      "Total number of published-version records created",
		}),

		// Open access
		OAChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oa_checks_total",
			Help:      "Total number of open-access checks by status",
		}, []string{"status"}),

		// Batches
		BatchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_started_total",
			Help:      "Total number of enrichment batches started",
		}),
		BatchesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_completed_total",
			Help:      "Total number of enrichment batches completed",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of enrichment batches in seconds",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		RecordsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Total number of enriched records written to the store",
		}),
		RecordsPersistFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persist_failed_total",
			Help:      "Total number of enriched records that failed to persist",
		}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of events that failed to publish by type",
		}, []string{"event_type"}),
	}
}

// RecordEnrichmentStarted records that a record enrichment has started.
func (m *Metrics) RecordEnrichmentStarted() {
	m.EnrichmentsStarted.Inc()
}

// RecordEnrichmentCompleted records a finished enrichment.
func (m *Metrics) RecordEnrichmentCompleted(abstractFound bool, durationSeconds float64) {
	outcome := "no_abstract"
	if abstractFound {
		outcome = "abstract_found"
	} else {
		m.AbstractsMissing.Inc()
	}
	m.EnrichmentsCompleted.WithLabelValues(outcome).Inc()
	m.EnrichmentDuration.Observe(durationSeconds)
}

// RecordSourceAttempt records one adapter attempt.
func (m *Metrics) RecordSourceAttempt(source, status string, durationSeconds float64) {
	m.SourceAttempts.WithLabelValues(source, status).Inc()
	m.SourceAttemptDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceFailure records a failed attempt with its reason class.
func (m *Metrics) RecordSourceFailure(source, reason string) {
	m.SourceFailures.WithLabelValues(source, reason).Inc()
}

// RecordSourcePanic records a recovered adapter panic.
func (m *Metrics) RecordSourcePanic(source string) {
	m.SourcePanics.WithLabelValues(source).Inc()
}

// RecordAbstractFound records an abstract assigned from source.
func (m *Metrics) RecordAbstractFound(source string) {
	m.AbstractsFound.WithLabelValues(source).Inc()
}

// RecordPreprintDetected records a preprint classification.
func (m *Metrics) RecordPreprintDetected(server string) {
	m.PreprintsDetected.WithLabelValues(server).Inc()
}

// RecordVersionLink records a linking workflow outcome.
func (m *Metrics) RecordVersionLink(outcome string, recordCreated bool) {
	m.VersionLinks.WithLabelValues(outcome).Inc()
	if recordCreated {
		m.PublishedRecordsCreated.Inc()
	}
}

// RecordOACheck records an open-access check.
func (m *Metrics) RecordOACheck(status string) {
	m.OAChecks.WithLabelValues(status).Inc()
}

// RecordBatchStarted records that a batch has started.
func (m *Metrics) RecordBatchStarted() {
	m.BatchesStarted.Inc()
}

// RecordBatchCompleted records that a batch has completed.
func (m *Metrics) RecordBatchCompleted(durationSeconds float64) {
	m.BatchesCompleted.Inc()
	m.BatchDuration.Observe(durationSeconds)
}

// RecordPersisted records an enriched record written back to the store.
func (m *Metrics) RecordPersisted() {
	m.RecordsPersisted.Inc()
}

// RecordPersistFailed records a failed write of an enriched record.
func (m *Metrics) RecordPersistFailed() {
	m.RecordsPersistFailed.Inc()
}

// RecordEventPublished records a published event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records an event that could not be published.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
