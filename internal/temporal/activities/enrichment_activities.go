package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/enrich"
	"github.com/helixir/enrichment-service/internal/observability"
)

// ErrTypeRecordNotFound marks EnrichRecord failures that retrying cannot fix.
const ErrTypeRecordNotFound = "RecordNotFound"

// RecordReader loads records for a batch.
type RecordReader interface {
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	ListUnenriched(ctx context.Context, limit int) ([]*domain.Record, error)
}

// RecordEnricher enriches and persists one record. *enrich.BatchRunner
// satisfies it.
type RecordEnricher interface {
	EnrichOne(ctx context.Context, rec *domain.Record, enrichedAt time.Time) enrich.RecordResult
}

// BatchNotifier announces finished batches. *events.Publisher satisfies it.
type BatchNotifier interface {
	BatchCompleted(ctx context.Context, batchID string, payload domain.BatchCompletedPayload) error
}

// EnrichmentActivities are the activities of EnrichmentBatchWorkflow.
// Methods on this struct are registered as Temporal activities via the worker.
type EnrichmentActivities struct {
	records  RecordReader
	enricher RecordEnricher
	notifier BatchNotifier
	metrics  *observability.Metrics
}

// NewEnrichmentActivities creates the batch activities. notifier and metrics
// may be nil.
func NewEnrichmentActivities(records RecordReader, enricher RecordEnricher, notifier BatchNotifier, metrics *observability.Metrics) *EnrichmentActivities {
	return &EnrichmentActivities{
		records:  records,
		enricher: enricher,
		notifier: notifier,
		metrics:  metrics,
	}
}

// ListUnenrichedRecords returns the IDs of records never enriched, oldest
// import first.
func (a *EnrichmentActivities) ListUnenrichedRecords(ctx context.Context, input ListUnenrichedInput) (*ListUnenrichedOutput, error) {
	logger := activity.GetLogger(ctx)

	records, err := a.records.ListUnenriched(ctx, input.Limit)
	if err != nil {
		logger.Error("failed to list unenriched records", "error", err)
		return nil, fmt.Errorf("list unenriched records: %w", err)
	}

	out := &ListUnenrichedOutput{RecordIDs: make([]uuid.UUID, 0, len(records))}
	for _, rec := range records {
		out.RecordIDs = append(out.RecordIDs, rec.ID)
	}
	logger.Info("listed unenriched records", "count", len(out.RecordIDs), "limit", input.Limit)
	return out, nil
}

// EnrichRecord enriches one record and writes it back. A retry after the
// record was already persisted for the same pass is a no-op. A record that
// cannot be persisted returns a retryable error.
func (a *EnrichmentActivities) EnrichRecord(ctx context.Context, input EnrichRecordInput) (*EnrichRecordOutput, error) {
	logger := activity.GetLogger(ctx)

	rec, err := a.records.GetRecord(ctx, input.RecordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("record %s not found", input.RecordID), ErrTypeRecordNotFound, err)
		}
		return nil, fmt.Errorf("load record %s: %w", input.RecordID, err)
	}

	if rec.EnrichedAt != nil && rec.EnrichedAt.Equal(input.EnrichedAt) {
		logger.Info("record already enriched in this pass", "recordID", input.RecordID)
		return &EnrichRecordOutput{RecordID: rec.ID, Persisted: true, Skipped: true, AbstractFound: rec.HasAbstract()}, nil
	}

	activity.RecordHeartbeat(ctx, input.RecordID.String())

	info := activity.GetInfo(ctx)
	ctx = observability.WithEnrichmentContext(ctx, observability.EnrichmentContext{
		BatchID:    input.BatchID,
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
	})
	res := a.enricher.EnrichOne(ctx, rec, input.EnrichedAt)
	if !res.Persisted {
		return nil, fmt.Errorf("record %s: %w", input.RecordID, domain.ErrNotPersisted)
	}

	return &EnrichRecordOutput{
		RecordID:      rec.ID,
		Persisted:     true,
		AbstractFound: res.AbstractFound,
		LinkCreated:   res.LinkCreated,
		RecordCreated: res.RecordCreated,
	}, nil
}

// PublishBatchCompleted emits the enrichment.batch_completed event.
func (a *EnrichmentActivities) PublishBatchCompleted(ctx context.Context, input PublishBatchCompletedInput) error {
	if a.metrics != nil && activity.GetInfo(ctx).Attempt == 1 {
		a.metrics.RecordBatchCompleted(input.Payload.Duration.Seconds())
	}
	if a.notifier == nil {
		return nil
	}
	if err := a.notifier.BatchCompleted(ctx, input.BatchID, input.Payload); err != nil {
		activity.GetLogger(ctx).Warn("failed to publish batch completed event", "batchID", input.BatchID, "error", err)
		return fmt.Errorf("publish batch completed: %w", err)
	}
	return nil
}
