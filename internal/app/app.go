// Package app wires the enrichment service's collaborators from
// configuration. The binaries under cmd/ share it so they enrich records the
// same way.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/database"
	"github.com/helixir/enrichment-service/internal/enrich"
	"github.com/helixir/enrichment-service/internal/events"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/papersources"
	"github.com/helixir/enrichment-service/internal/repository"
	"github.com/helixir/enrichment-service/internal/versionlink"
)

// Services holds the wired enrichment stack.
type Services struct {
	DB           *database.DB
	Store        *repository.PgStore
	Registry     *papersources.Registry
	Orchestrator *enrich.Orchestrator
	Linker       *versionlink.Service
	Runner       *enrich.BatchRunner
	Metrics      *observability.Metrics

	// Publisher is nil when Kafka is disabled.
	Publisher *events.Publisher

	logger zerolog.Logger
}

// Options tune New for a particular binary.
type Options struct {
	// ServiceName stamps published events. Defaults to the emitter default.
	ServiceName string
	// RunMigrations applies pending migrations when the config asks for it.
	RunMigrations bool
}

// New connects to the database and builds every enrichment component.
func New(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*Services, error) {
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if opts.RunMigrations && cfg.Database.MigrationAutoRun {
		if err := migrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	s := &Services{
		DB:       db,
		Store:    repository.NewPgStore(db, logger),
		Registry: BuildRegistry(cfg.Sources),
		Metrics:  metrics,
		logger:   logger,
	}
	s.Linker = versionlink.NewService(s.Store, logger)
	s.Orchestrator = enrich.NewOrchestratorFromRegistry(
		s.Registry,
		AbstractOrder(cfg.Enrichment.AbstractOrder),
		s.Linker,
		logger,
		metrics,
	)

	var notifier enrich.Notifier
	if cfg.Kafka.Enabled {
		s.Publisher = events.NewPublisher(
			events.NewKafkaWriter(cfg.Kafka),
			events.NewEmitter(events.EmitterConfig{ServiceName: opts.ServiceName}),
			logger,
		)
		notifier = s.Publisher
	}

	s.Runner = enrich.NewBatchRunner(s.Orchestrator, s.Store, notifier, enrich.BatchConfig{
		MaxWorkers:      cfg.Enrichment.MaxWorkers,
		SecondPass:      cfg.Enrichment.SecondPass,
		SecondPassLimit: cfg.Enrichment.SecondPassLimit,
	}, logger, metrics)

	logger.Info().
		Int("sources", s.Registry.Count()).
		Bool("events", s.Publisher != nil).
		Msg("enrichment stack ready")
	return s, nil
}

// Close releases the event writer and the database pool.
func (s *Services) Close() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}
	s.DB.Close()
}

func migrateUp(db *database.DB, path string, logger zerolog.Logger) error {
	m, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// NewLogger builds the service logger from the logging section.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
		Service:    "enrichment-service",
	})
}
