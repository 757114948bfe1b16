// Package observability provides logging and metrics support for the
// enrichment service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithRecordContext(logger, rec.ID.String(), rec.DOINorm)
//	logger.Info().Str("source", "crossref").Msg("abstract_retrieved")
//
// A logger can travel in a context.Context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	ctx = observability.WithBatchID(ctx, batchID)
//	logger := observability.LoggerFromContext(ctx)
//	logger.Debug().Msg("record_enriched")
//
// # Metrics
//
//	metrics := observability.NewMetrics("enrichment")
//	metrics.RecordSourceAttempt("openalex", "success", 0.42)
//	metrics.RecordVersionLink("linked_new", true)
//
// # Standard Fields
//
//   - record_id: record identity
//   - doi: normalized DOI of the record
//   - source: provider key (s2, crossref, openalex, epmc, pubmed, ...)
//   - batch_id, pass: batch run correlation
//   - workflow_id, workflow_run_id: Temporal correlation
//
// All components are safe for concurrent use from multiple goroutines.
package observability
