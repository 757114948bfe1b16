package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/enrichment-service/internal/domain"
	entemporal "github.com/helixir/enrichment-service/internal/temporal"
	"github.com/helixir/enrichment-service/internal/temporal/activities"
)

// DefaultMaxConcurrent bounds EnrichRecord activities when the input does not.
const DefaultMaxConcurrent = 4

// EnrichmentBatchWorkflow enriches a set of records as one durable batch.
//
// The workflow proceeds through the following stages:
//  1. Select: the input record IDs, or every unenriched record
//  2. First pass: one EnrichRecord activity per record, at most
//     MaxConcurrent in flight, all sharing one enrichment timestamp
//  3. Second pass: when enabled and the first pass created published-version
//     records, the records still unenriched are enriched the same way
//  4. Announce: a best-effort batch completed event
//
// A record whose activity fails after its retries is counted as failed and
// does not fail the batch.
func EnrichmentBatchWorkflow(ctx workflow.Context, input entemporal.EnrichmentBatchInput) (*entemporal.EnrichmentBatchResult, error) {
	logger := workflow.GetLogger(ctx)
	start := workflow.Now(ctx)

	batchID := input.BatchID
	if batchID == "" {
		batchID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	limit := input.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}

	result := &entemporal.EnrichmentBatchResult{BatchID: batchID}
	progress := entemporal.BatchProgress{}

	if err := workflow.SetQueryHandler(ctx, entemporal.QueryProgress, func() (entemporal.BatchProgress, error) {
		return progress, nil
	}); err != nil {
		return nil, fmt.Errorf("register progress query: %w", err)
	}

	logger.Info("starting enrichment batch",
		"batchID", batchID,
		"requestedRecords", len(input.RecordIDs),
		"secondPass", input.SecondPass,
		"requestedBy", input.RequestedBy,
	)

	var act *activities.EnrichmentActivities

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	enrichCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        1 * time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeRecordNotFound},
		},
	})

	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})

	listUnenriched := func(n int) ([]uuid.UUID, error) {
		var out activities.ListUnenrichedOutput
		if err := workflow.ExecuteActivity(listCtx, act.ListUnenrichedRecords, activities.ListUnenrichedInput{Limit: n}).Get(ctx, &out); err != nil {
			return nil, err
		}
		return out.RecordIDs, nil
	}

	runPass := func(pass int, ids []uuid.UUID) {
		// Postgres keeps microseconds; truncating lets a retried activity
		// recognise a record it already persisted.
		enrichedAt := workflow.Now(ctx).UTC().Truncate(time.Microsecond)
		result.Passes = pass
		progress = entemporal.BatchProgress{Pass: pass, Total: len(ids)}
		logger.Info("pass started", "batchID", batchID, "pass", pass, "records", len(ids))

		selector := workflow.NewSelector(ctx)
		inFlight, next := 0, 0
		for next < len(ids) || inFlight > 0 {
			for inFlight < limit && next < len(ids) && ctx.Err() == nil {
				id := ids[next]
				next++
				inFlight++
				f := workflow.ExecuteActivity(enrichCtx, act.EnrichRecord, activities.EnrichRecordInput{
					BatchID:    batchID,
					RecordID:   id,
					EnrichedAt: enrichedAt,
				})
				selector.AddFuture(f, func(f workflow.Future) {
					inFlight--
					var out activities.EnrichRecordOutput
					err := f.Get(ctx, &out)
					result.Processed++
					progress.Completed++
					if err != nil {
						logger.Warn("record enrichment failed", "batchID", batchID, "recordID", id, "error", err)
						result.Failed++
						progress.Failed++
						return
					}
					result.Persisted++
					if out.AbstractFound {
						result.AbstractsFound++
					}
					if out.LinkCreated {
						result.LinksCreated++
					}
					if out.RecordCreated {
						result.PublishedRecordsCreated++
					}
				})
			}
			if inFlight == 0 {
				break
			}
			selector.Select(ctx)
		}
	}

	ids := DeduplicateIDs(input.RecordIDs)
	if len(input.RecordIDs) == 0 {
		var err error
		if ids, err = listUnenriched(0); err != nil {
			logger.Error("failed to list unenriched records", "batchID", batchID, "error", err)
			return result, fmt.Errorf("list unenriched records: %w", err)
		}
	}
	runPass(1, ids)

	if input.SecondPass && result.PublishedRecordsCreated > 0 && ctx.Err() == nil {
		pending, err := listUnenriched(input.SecondPassLimit)
		if err != nil {
			logger.Error("failed to list records for second pass", "batchID", batchID, "error", err)
			return result, fmt.Errorf("list records for second pass: %w", err)
		}
		if len(pending) > 0 {
			runPass(2, pending)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	payload := domain.BatchCompletedPayload{
		Passes:              result.Passes,
		RecordsEnriched:     result.Persisted,
		RecordsFailed:       result.Failed,
		AbstractsFound:      result.AbstractsFound,
		PublishedRecordsNew: result.PublishedRecordsCreated,
		Duration:            workflow.Now(ctx).Sub(start),
	}
	if err := workflow.ExecuteActivity(publishCtx, act.PublishBatchCompleted, activities.PublishBatchCompletedInput{
		BatchID: batchID,
		Payload: payload,
	}).Get(ctx, nil); err != nil {
		logger.Warn("failed to publish batch completed event", "batchID", batchID, "error", err)
	}

	logger.Info("enrichment batch completed",
		"batchID", batchID,
		"passes", result.Passes,
		"processed", result.Processed,
		"persisted", result.Persisted,
		"failed", result.Failed,
		"publishedRecordsCreated", result.PublishedRecordsCreated,
	)
	return result, nil
}
