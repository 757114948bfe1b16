package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
)

// DefaultMaxWorkers bounds concurrent record enrichments when unset.
const DefaultMaxWorkers = 4

// Enricher enriches a single record in place.
type Enricher interface {
	EnrichRecord(ctx context.Context, rec *domain.Record) *domain.Record
}

// RecordStore is the part of the record store the batch runner writes to.
type RecordStore interface {
	ListUnenriched(ctx context.Context, limit int) ([]*domain.Record, error)
	UpdateEnrichedRecord(ctx context.Context, rec *domain.Record) error
}

// Notifier is told about persisted enrichments. Errors are logged only.
type Notifier interface {
	RecordEnriched(ctx context.Context, rec *domain.Record) error
	VersionLinked(ctx context.Context, rec *domain.Record, outcome *domain.PublishedVersionOutcome) error
}

// BatchConfig configures a BatchRunner.
type BatchConfig struct {
	// MaxWorkers bounds how many records are enriched concurrently.
	MaxWorkers int

	// SecondPass re-runs enrichment over unenriched records when the first
	// pass created published-version records.
	SecondPass bool

	// SecondPassLimit caps the records loaded for the second pass; 0 means all.
	SecondPassLimit int
}

// BatchSummary aggregates the outcome of a batch run.
type BatchSummary struct {
	BatchID                 string
	Passes                  int
	Processed               int
	Persisted               int
	PersistFailed           int
	AbstractsFound          int
	LinksCreated            int
	PublishedRecordsCreated int
	Duration                time.Duration
}

// BatchRunner enriches many records with bounded concurrency and writes each
// one back to the store.
type BatchRunner struct {
	enricher Enricher
	store    RecordStore
	notifier Notifier
	config   BatchConfig
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewBatchRunner creates a batch runner. notifier and metrics may be nil.
func NewBatchRunner(enricher Enricher, store RecordStore, notifier Notifier, cfg BatchConfig, logger zerolog.Logger, metrics *observability.Metrics) *BatchRunner {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	return &BatchRunner{
		enricher: enricher,
		store:    store,
		notifier: notifier,
		config:   cfg,
		logger:   logger.With().Str("component", "batch").Logger(),
		metrics:  metrics,
	}
}

// RunUnenriched enriches every record that has never been enriched.
func (r *BatchRunner) RunUnenriched(ctx context.Context) (BatchSummary, error) {
	records, err := r.store.ListUnenriched(ctx, 0)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("listing unenriched records: %w", err)
	}
	return r.Run(ctx, records)
}

// Run enriches records, then optionally runs a second pass over records that
// are still unenriched (typically published versions created by the first
// pass). Failures of individual records are counted, not returned; the error
// is non-nil only when ctx ends or the second pass cannot be loaded.
func (r *BatchRunner) Run(ctx context.Context, records []*domain.Record) (BatchSummary, error) {
	start := time.Now()
	summary := BatchSummary{BatchID: uuid.NewString()}
	ctx = observability.WithBatchID(ctx, summary.BatchID)

	if r.metrics != nil {
		r.metrics.RecordBatchStarted()
	}

	r.runPass(ctx, 1, records, &summary)

	if r.config.SecondPass && summary.PublishedRecordsCreated > 0 && ctx.Err() == nil {
		pending, err := r.store.ListUnenriched(ctx, r.config.SecondPassLimit)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("listing records for second pass: %w", err)
		}
		if len(pending) > 0 {
			r.runPass(ctx, 2, pending, &summary)
		}
	}

	summary.Duration = time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordBatchCompleted(summary.Duration.Seconds())
	}
	r.logger.Info().
		Str("batch_id", summary.BatchID).
		Int("passes", summary.Passes).
		Int("processed", summary.Processed).
		Int("persisted", summary.Persisted).
		Int("persist_failed", summary.PersistFailed).
		Int("abstracts_found", summary.AbstractsFound).
		Int("published_records_created", summary.PublishedRecordsCreated).
		Dur("duration", summary.Duration).
		Msg("batch_completed")

	return summary, ctx.Err()
}

// runPass enriches records concurrently. All records of one pass share one
// enrichment timestamp.
func (r *BatchRunner) runPass(ctx context.Context, pass int, records []*domain.Record, summary *BatchSummary) {
	logger := observability.WithBatchContext(r.logger, summary.BatchID, pass)
	logger.Info().Int("records", len(records)).Msg("pass_started")

	enrichedAt := time.Now().UTC()
	summary.Passes = pass

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.MaxWorkers)

	for _, rec := range records {
		if gctx.Err() != nil {
			break
		}
		rec := rec
		g.Go(func() error {
			out := r.processRecord(gctx, logger, rec, enrichedAt)
			mu.Lock()
			summary.add(out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// recordOutcome is what one record contributes to a summary.
type recordOutcome struct {
	persisted     bool
	abstractFound bool
	linkCreated   bool
	recordCreated bool
}

func (s *BatchSummary) add(o recordOutcome) {
	s.Processed++
	if o.persisted {
		s.Persisted++
	} else {
		s.PersistFailed++
	}
	if o.abstractFound {
		s.AbstractsFound++
	}
	if o.linkCreated {
		s.LinksCreated++
	}
	if o.recordCreated {
		s.PublishedRecordsCreated++
	}
}

// RecordResult is the outcome of enriching and persisting one record.
type RecordResult struct {
	Persisted     bool
	AbstractFound bool
	LinkCreated   bool
	RecordCreated bool
}

// EnrichOne enriches and persists a single record outside of a batch run.
// Durable batch workflows call it once per record.
func (r *BatchRunner) EnrichOne(ctx context.Context, rec *domain.Record, enrichedAt time.Time) RecordResult {
	logger := r.logger
	ec := observability.EnrichmentContextFromContext(ctx)
	if ec.BatchID != "" {
		logger = logger.With().Str("batch_id", ec.BatchID).Logger()
	}
	if ec.WorkflowID != "" {
		logger = observability.WithWorkflowContext(logger, ec.WorkflowID, ec.RunID)
	}
	if ec.RequestID != "" {
		logger = logger.With().Str("request_id", ec.RequestID).Logger()
	}
	out := r.processRecord(ctx, logger, rec, enrichedAt)
	return RecordResult{
		Persisted:     out.persisted,
		AbstractFound: out.abstractFound,
		LinkCreated:   out.linkCreated,
		RecordCreated: out.recordCreated,
	}
}

func (r *BatchRunner) processRecord(ctx context.Context, logger zerolog.Logger, rec *domain.Record, enrichedAt time.Time) recordOutcome {
	enriched := r.enricher.EnrichRecord(ctx, rec)
	enriched.EnrichedAt = &enrichedAt

	var out recordOutcome
	out.abstractFound = enriched.HasAbstract()
	var pv *domain.PublishedVersionOutcome
	if enriched.EnrichmentReport != nil {
		pv = enriched.EnrichmentReport.PreprintDetection.PublishedVersion
	}
	if pv != nil {
		out.linkCreated = pv.LinkCreated
		out.recordCreated = pv.RecordCreated
	}

	if err := r.store.UpdateEnrichedRecord(ctx, enriched); err != nil {
		logger.Error().
			Err(err).
			Str("record_id", enriched.ID.String()).
			Msg("record_persist_failed")
		if r.metrics != nil {
			r.metrics.RecordPersistFailed()
		}
		return out
	}
	out.persisted = true
	if r.metrics != nil {
		r.metrics.RecordPersisted()
	}

	if r.notifier == nil {
		return out
	}
	if err := r.notifier.RecordEnriched(ctx, enriched); err != nil {
		logger.Warn().Err(err).Str("record_id", enriched.ID.String()).Msg("record_enriched_event_failed")
	}
	if pv != nil && pv.LinkCreated {
		if err := r.notifier.VersionLinked(ctx, enriched, pv); err != nil {
			logger.Warn().Err(err).Str("record_id", enriched.ID.String()).Msg("version_linked_event_failed")
		}
	}
	return out
}
