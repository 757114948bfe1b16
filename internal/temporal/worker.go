package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/enrichment-service/internal/config"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// TaskQueue is the name of the task queue to poll.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize bounds EnrichRecord activities
	// running in this process. Default: 16
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize defaults to 10.
	MaxConcurrentWorkflowTaskExecutionSize int

	// MaxConcurrentActivityTaskPollers defaults to 4.
	MaxConcurrentActivityTaskPollers int

	// MaxConcurrentWorkflowTaskPollers defaults to 2.
	MaxConcurrentWorkflowTaskPollers int
}

// WorkerConfigFrom derives a WorkerConfig from the service configuration.
// Each batch may run MaxWorkers activities at once; the process allows four
// batches at full width.
func WorkerConfigFrom(tc config.TemporalConfig, ec config.EnrichmentConfig) WorkerConfig {
	cfg := WorkerConfig{TaskQueue: tc.TaskQueue}
	if ec.MaxWorkers > 0 {
		cfg.MaxConcurrentActivityExecutionSize = 4 * ec.MaxWorkers
	}
	return cfg
}

func workerOptionsFromConfig(cfg WorkerConfig) worker.Options {
	options := worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.MaxConcurrentWorkflowTaskExecutionSize,
		MaxConcurrentActivityTaskPollers:       cfg.MaxConcurrentActivityTaskPollers,
		MaxConcurrentWorkflowTaskPollers:       cfg.MaxConcurrentWorkflowTaskPollers,
	}

	if options.MaxConcurrentActivityExecutionSize == 0 {
		options.MaxConcurrentActivityExecutionSize = 16
	}
	if options.MaxConcurrentWorkflowTaskExecutionSize == 0 {
		options.MaxConcurrentWorkflowTaskExecutionSize = 10
	}
	if options.MaxConcurrentActivityTaskPollers == 0 {
		options.MaxConcurrentActivityTaskPollers = 4
	}
	if options.MaxConcurrentWorkflowTaskPollers == 0 {
		options.MaxConcurrentWorkflowTaskPollers = 2
	}

	return options
}

// WorkerManager owns a Temporal worker and the names registered on it.
type WorkerManager struct {
	worker     worker.Worker
	taskQueue  string
	workflows  []string
	activities []interface{}
}

// NewWorkerManager creates a worker polling cfg.TaskQueue.
func NewWorkerManager(c client.Client, cfg WorkerConfig) (*WorkerManager, error) {
	if cfg.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}

	return &WorkerManager{
		worker:    worker.New(c, cfg.TaskQueue, workerOptionsFromConfig(cfg)),
		taskQueue: cfg.TaskQueue,
	}, nil
}

// RegisterWorkflow registers a workflow function under name, which is how
// BatchWorkflowClient starts it.
func (m *WorkerManager) RegisterWorkflow(name string, wf interface{}) {
	m.workflows = append(m.workflows, name)
	m.worker.RegisterWorkflowWithOptions(wf, workflow.RegisterOptions{Name: name})
}

// RegisterActivity registers an activity struct; its exported methods become
// activities named after the methods.
func (m *WorkerManager) RegisterActivity(a interface{}) {
	m.activities = append(m.activities, a)
	m.worker.RegisterActivityWithOptions(a, activity.RegisterOptions{})
}

// Workflows returns the registered workflow names.
func (m *WorkerManager) Workflows() []string {
	return m.workflows
}

// TaskQueue returns the configured task queue name.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}

// Start runs the worker until ctx is cancelled or the worker fails.
func (m *WorkerManager) Start(ctx context.Context) error {
	return StartWorker(ctx, m.worker)
}

// StartWorker runs w until ctx is cancelled or the worker fails.
func StartWorker(ctx context.Context, w worker.Worker) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(worker.InterruptCh())
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
