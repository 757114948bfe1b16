// Package main provides the entry point for the enrichment Temporal worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixir/enrichment-service/internal/app"
	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/temporal"
	"github.com/helixir/enrichment-service/internal/temporal/activities"
	"github.com/helixir/enrichment-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Logging).With().Str("component", "worker").Logger()
	logger.Info().Msg("enrichment-service worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, app.Options{}, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	clientCfg := temporal.ClientConfigFrom(cfg.Temporal)
	clientCfg.Logger = observability.NewTemporalLogger(logger)
	temporalClient, err := temporal.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	manager, err := temporal.NewWorkerManager(temporalClient, temporal.WorkerConfigFrom(cfg.Temporal, cfg.Enrichment))
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	manager.RegisterWorkflow(temporal.EnrichmentBatchWorkflowName, workflows.EnrichmentBatchWorkflow)

	// A nil *events.Publisher must not become a non-nil interface.
	var notifier activities.BatchNotifier
	if svc.Publisher != nil {
		notifier = svc.Publisher
	}
	manager.RegisterActivity(activities.NewEnrichmentActivities(svc.Store, svc.Runner, notifier, svc.Metrics))

	logger.Info().
		Str("task_queue", manager.TaskQueue()).
		Strs("workflows", manager.Workflows()).
		Msg("starting temporal worker")

	if err := manager.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}
	return nil
}
