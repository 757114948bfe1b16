// Package main provides the entry point for the enrichment service HTTP API.
// It also runs the Kafka request listener that turns enrichment requests into
// Temporal batch workflows.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixir/enrichment-service/internal/app"
	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/events"
	"github.com/helixir/enrichment-service/internal/observability"
	httpserver "github.com/helixir/enrichment-service/internal/server/http"
	"github.com/helixir/enrichment-service/internal/temporal"
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

	logger := app.NewLogger(cfg.Logging).With().Str("component", "server").Logger()
	logger.Info().Msg("enrichment-service server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, app.Options{RunMigrations: true}, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	deps := httpserver.Deps{
		Records:           svc.Store,
		Enricher:          svc.Runner,
		DB:                svc.DB,
		DefaultSecondPass: cfg.Enrichment.SecondPass,
	}

	// Batches are optional: without Temporal the synchronous endpoints still work.
	clientCfg := temporal.ClientConfigFrom(cfg.Temporal)
	clientCfg.Logger = observability.NewTemporalLogger(logger)
	var batches *temporal.BatchWorkflowClient
	if tc, err := temporal.NewClient(clientCfg); err != nil {
		logger.Warn().Err(err).Str("host_port", cfg.Temporal.HostPort).Msg("temporal unavailable, batch endpoints disabled")
	} else {
		batches = temporal.NewBatchWorkflowClient(tc, clientCfg, cfg.Enrichment)
		defer batches.Close()
		deps.Batches = batches
		logger.Info().
			Str("host_port", cfg.Temporal.HostPort).
			Str("namespace", cfg.Temporal.Namespace).
			Msg("temporal client connected")
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		EnrichTimeout:   cfg.Server.EnrichTimeout,
		MetricsPath:     cfg.Metrics.Path,
	}
	httpSrv := httpserver.NewServer(httpCfg, deps, logger)

	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var listener *events.Listener
	if cfg.Kafka.Enabled && batches != nil {
		listener = events.NewListener(cfg.Kafka, batches, logger)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("request listener error: %w", err)
			}
		}()
	}

	logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("batches", batches != nil).
		Bool("request_listener", listener != nil).
		Msg("enrichment-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down enrichment-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if listener != nil {
		if err := listener.Close(); err != nil {
			logger.Error().Err(err).Msg("request listener close error")
		}
	}

	logger.Info().Msg("enrichment-service shutdown complete")
	return nil
}
