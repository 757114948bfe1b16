// Package temporal runs enrichment batches as durable Temporal workflows.
//
// The root package holds what both sides of a batch share: the client used
// by the HTTP server and the Kafka listener to start and inspect batches, the
// worker lifecycle, and the input, result and progress types. The workflow
// lives in the workflows subpackage and its activities in activities.
//
// Starting a batch:
//
//	c, err := temporal.NewClient(temporal.ClientConfigFrom(cfg.Temporal))
//	if err != nil {
//	    return err
//	}
//	batches := temporal.NewBatchWorkflowClient(c, temporal.ClientConfigFrom(cfg.Temporal), cfg.Enrichment)
//	workflowID, err := batches.StartEnrichmentBatch(ctx, domain.EnrichmentRequestedPayload{SecondPass: true})
//
// Errors from the client are *TemporalError values; use IsWorkflowNotFound
// and IsWorkflowAlreadyStarted to classify them.
package temporal
