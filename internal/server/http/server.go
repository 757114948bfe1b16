// Package httpserver provides the HTTP REST API of the enrichment service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/database"
	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/enrich"
	"github.com/helixir/enrichment-service/internal/repository"
	"github.com/helixir/enrichment-service/internal/temporal"
)

// DefaultEnrichTimeout bounds POST /records/{id}/enrich when unset.
const DefaultEnrichTimeout = 90 * time.Second

// RecordReader reads records and their version relations.
type RecordReader interface {
	GetRecords(ctx context.Context, filter repository.RecordFilter) ([]*domain.Record, int64, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	ListVersions(ctx context.Context, recordID uuid.UUID) ([]*domain.ArticleVersionRelation, error)
}

// RecordEnricher enriches and persists one record. *enrich.BatchRunner
// satisfies it.
type RecordEnricher interface {
	EnrichOne(ctx context.Context, rec *domain.Record, enrichedAt time.Time) enrich.RecordResult
}

// BatchClient starts and inspects durable enrichment batches.
// *temporal.BatchWorkflowClient satisfies it.
type BatchClient interface {
	StartEnrichmentBatch(ctx context.Context, req domain.EnrichmentRequestedPayload) (string, error)
	DescribeBatch(ctx context.Context, workflowID string) (*temporal.WorkflowDescription, error)
	BatchProgress(ctx context.Context, workflowID string) (*temporal.BatchProgress, error)
	BatchResult(ctx context.Context, workflowID string) (*temporal.EnrichmentBatchResult, error)
	CancelBatch(ctx context.Context, workflowID string) error
	Health(ctx context.Context) error
}

// DatabaseHealth reports database health. *database.DB satisfies it.
type DatabaseHealth interface {
	Health(ctx context.Context) database.HealthStatus
}

// Deps are the collaborators of the server. Batches may be nil, in which case
// the batch endpoints answer 503.
type Deps struct {
	Records  RecordReader
	Enricher RecordEnricher
	Batches  BatchClient
	DB       DatabaseHealth

	// DefaultSecondPass applies when a batch request omits second_pass.
	DefaultSecondPass bool
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	EnrichTimeout   time.Duration
	MetricsPath     string
}

// Server is the HTTP REST API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	deps          Deps
	validate      *validator.Validate
	enrichTimeout time.Duration
	metricsPath   string
	logger        zerolog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:          deps,
		validate:      validator.New(),
		enrichTimeout: cfg.EnrichTimeout,
		metricsPath:   cfg.MetricsPath,
		logger:        logger.With().Str("component", "http-server").Logger(),
	}
	if s.enrichTimeout <= 0 {
		s.enrichTimeout = DefaultEnrichTimeout
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLoggerMiddleware(s.logger))

	r.Get("/health", s.healthHandler)
	r.Handle(s.metricsPath, promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", s.listRecords)
		r.Route("/records/{recordID}", func(r chi.Router) {
			r.Get("/", s.getRecord)
			r.Get("/report", s.getRecordReport)
			r.Get("/versions", s.getRecordVersions)
			r.Post("/enrich", s.enrichRecord)
		})

		r.Post("/enrichments", s.startEnrichment)
		r.Get("/enrichments/{workflowID}", s.getEnrichment)
		r.Delete("/enrichments/{workflowID}", s.cancelEnrichment)
	})

	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status   string                 `json:"status"`
	Database *database.HealthStatus `json:"database,omitempty"`
	Temporal string                 `json:"temporal,omitempty"`
}

// healthHandler reports database health and, when batches are configured,
// Temporal reachability. Only the database decides the status code.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK

	if s.deps.DB != nil {
		h := s.deps.DB.Health(r.Context())
		resp.Database = &h
		if h.Status != "healthy" {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	if s.deps.Batches != nil {
		if err := s.deps.Batches.Health(r.Context()); err != nil {
			resp.Temporal = "unreachable"
		} else {
			resp.Temporal = "healthy"
		}
	}

	writeJSON(w, code, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
