package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	entemporal "github.com/helixir/enrichment-service/internal/temporal"
	"github.com/helixir/enrichment-service/internal/temporal/activities"
)

func newBatchEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(EnrichmentBatchWorkflow, workflow.RegisterOptions{Name: entemporal.EnrichmentBatchWorkflowName})
	return env
}

func newIDs(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestEnrichmentBatchWorkflow_ExplicitRecords(t *testing.T) {
	env := newBatchEnv(t)
	var act *activities.EnrichmentActivities

	records := newIDs(5)
	failing := records[3]

	var mu sync.Mutex
	var seen []uuid.UUID
	var stamps []time.Time
	env.OnActivity(act.EnrichRecord, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.EnrichRecordInput) (*activities.EnrichRecordOutput, error) {
			mu.Lock()
			seen = append(seen, in.RecordID)
			stamps = append(stamps, in.EnrichedAt)
			mu.Unlock()
			if in.RecordID == failing {
				return nil, temporal.NewNonRetryableApplicationError("gone", activities.ErrTypeRecordNotFound, nil)
			}
			return &activities.EnrichRecordOutput{RecordID: in.RecordID, Persisted: true, AbstractFound: in.RecordID != records[0]}, nil
		},
	)

	var published activities.PublishBatchCompletedInput
	env.OnActivity(act.PublishBatchCompleted, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.PublishBatchCompletedInput) error {
			published = in
			return nil
		},
	)

	env.ExecuteWorkflow(EnrichmentBatchWorkflow, entemporal.EnrichmentBatchInput{
		BatchID:       "batch-1",
		RecordIDs:     records,
		SecondPass:    true,
		MaxConcurrent: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result entemporal.EnrichmentBatchResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, "batch-1", result.BatchID)
	assert.Equal(t, 1, result.Passes, "no published records were created")
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 4, result.Persisted)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.AbstractsFound)

	assert.ElementsMatch(t, records, seen)
	for _, s := range stamps[1:] {
		assert.True(t, stamps[0].Equal(s), "one timestamp per pass")
	}

	assert.Equal(t, "batch-1", published.BatchID)
	assert.Equal(t, 4, published.Payload.RecordsEnriched)
	assert.Equal(t, 1, published.Payload.RecordsFailed)

	val, err := env.QueryWorkflow(entemporal.QueryProgress)
	require.NoError(t, err)
	var progress entemporal.BatchProgress
	require.NoError(t, val.Get(&progress))
	assert.Equal(t, entemporal.BatchProgress{Pass: 1, Total: 5, Completed: 5, Failed: 1}, progress)
}

func TestEnrichmentBatchWorkflow_SecondPass(t *testing.T) {
	env := newBatchEnv(t)
	var act *activities.EnrichmentActivities

	preprint := uuid.New()
	published := uuid.New()

	env.OnActivity(act.ListUnenrichedRecords, mock.Anything, activities.ListUnenrichedInput{Limit: 0}).
		Return(&activities.ListUnenrichedOutput{RecordIDs: []uuid.UUID{preprint}}, nil).Once()
	env.OnActivity(act.ListUnenrichedRecords, mock.Anything, activities.ListUnenrichedInput{Limit: 10}).
		Return(&activities.ListUnenrichedOutput{RecordIDs: []uuid.UUID{published}}, nil).Once()

	env.OnActivity(act.EnrichRecord, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.EnrichRecordInput) (*activities.EnrichRecordOutput, error) {
			if in.RecordID == preprint {
				return &activities.EnrichRecordOutput{RecordID: in.RecordID, Persisted: true, LinkCreated: true, RecordCreated: true}, nil
			}
			return &activities.EnrichRecordOutput{RecordID: in.RecordID, Persisted: true, AbstractFound: true}, nil
		},
	)
	env.OnActivity(act.PublishBatchCompleted, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(EnrichmentBatchWorkflow, entemporal.EnrichmentBatchInput{
		SecondPass:      true,
		SecondPassLimit: 10,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result entemporal.EnrichmentBatchResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.NotEmpty(t, result.BatchID, "defaults to the workflow id")
	assert.Equal(t, 2, result.Passes)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Persisted)
	assert.Equal(t, 1, result.LinksCreated)
	assert.Equal(t, 1, result.PublishedRecordsCreated)
	assert.Equal(t, 1, result.AbstractsFound)
	env.AssertExpectations(t)
}

func TestEnrichmentBatchWorkflow_SecondPassDisabled(t *testing.T) {
	env := newBatchEnv(t)
	var act *activities.EnrichmentActivities

	env.OnActivity(act.EnrichRecord, mock.Anything, mock.Anything).Return(
		&activities.EnrichRecordOutput{Persisted: true, RecordCreated: true}, nil,
	)
	env.OnActivity(act.PublishBatchCompleted, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(EnrichmentBatchWorkflow, entemporal.EnrichmentBatchInput{RecordIDs: newIDs(2)})

	require.NoError(t, env.GetWorkflowError())
	var result entemporal.EnrichmentBatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, 2, result.PublishedRecordsCreated)
}

func TestEnrichmentBatchWorkflow_ListFailure(t *testing.T) {
	env := newBatchEnv(t)
	var act *activities.EnrichmentActivities

	env.OnActivity(act.ListUnenrichedRecords, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("db down", "Unavailable", errors.New("db down")))

	env.ExecuteWorkflow(EnrichmentBatchWorkflow, entemporal.EnrichmentBatchInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	assert.Contains(t, env.GetWorkflowError().Error(), "list unenriched records")
}

func TestEnrichmentBatchWorkflow_PublishFailureIsIgnored(t *testing.T) {
	env := newBatchEnv(t)
	var act *activities.EnrichmentActivities

	env.OnActivity(act.EnrichRecord, mock.Anything, mock.Anything).Return(
		&activities.EnrichRecordOutput{Persisted: true}, nil,
	)
	env.OnActivity(act.PublishBatchCompleted, mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("broker down", "Kafka", nil))

	env.ExecuteWorkflow(EnrichmentBatchWorkflow, entemporal.EnrichmentBatchInput{RecordIDs: newIDs(1)})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
}
