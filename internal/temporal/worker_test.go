package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/config"
)

func TestWorkerConfigFrom(t *testing.T) {
	t.Run("scales activity slots with batch workers", func(t *testing.T) {
		cfg := WorkerConfigFrom(
			config.TemporalConfig{TaskQueue: "enrichment-batches"},
			config.EnrichmentConfig{MaxWorkers: 8},
		)

		assert.Equal(t, "enrichment-batches", cfg.TaskQueue)
		assert.Equal(t, 32, cfg.MaxConcurrentActivityExecutionSize)
	})

	t.Run("zero workers keeps the default", func(t *testing.T) {
		cfg := WorkerConfigFrom(config.TemporalConfig{TaskQueue: "q"}, config.EnrichmentConfig{})
		assert.Zero(t, cfg.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 16, workerOptionsFromConfig(cfg).MaxConcurrentActivityExecutionSize)
	})
}

func TestNewWorkerManager(t *testing.T) {
	_, err := NewWorkerManager(nil, WorkerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task queue is required")
}

func TestWorkerOptionsFromConfig(t *testing.T) {
	t.Run("zero values get defaults", func(t *testing.T) {
		opts := workerOptionsFromConfig(WorkerConfig{})

		assert.Equal(t, 16, opts.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 10, opts.MaxConcurrentWorkflowTaskExecutionSize)
		assert.Equal(t, 4, opts.MaxConcurrentActivityTaskPollers)
		assert.Equal(t, 2, opts.MaxConcurrentWorkflowTaskPollers)
	})

	t.Run("partial zero values get defaults selectively", func(t *testing.T) {
		opts := workerOptionsFromConfig(WorkerConfig{
			MaxConcurrentActivityExecutionSize: 24,
			MaxConcurrentActivityTaskPollers:   6,
		})

		assert.Equal(t, 24, opts.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 10, opts.MaxConcurrentWorkflowTaskExecutionSize)
		assert.Equal(t, 6, opts.MaxConcurrentActivityTaskPollers)
		assert.Equal(t, 2, opts.MaxConcurrentWorkflowTaskPollers)
	})
}
