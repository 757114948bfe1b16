package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	batchIDKey    contextKey = "batch_id"
	workflowIDKey contextKey = "workflow_id"
	runIDKey      contextKey = "workflow_run_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithBatchID adds a batch ID to the context.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey, batchID)
}

// BatchIDFromContext retrieves the batch ID from context.
// Returns empty string if not present.
func BatchIDFromContext(ctx context.Context) string {
	if v := ctx.Value(batchIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithWorkflow adds workflow ID and run ID to the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	ctx = context.WithValue(ctx, runIDKey, runID)
	return ctx
}

// WorkflowFromContext retrieves workflow ID and run ID from context.
// Returns empty strings if not present.
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	if v := ctx.Value(workflowIDKey); v != nil {
		if id, ok := v.(string); ok {
			workflowID = id
		}
	}
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			runID = id
		}
	}
	return workflowID, runID
}

// WithLogger stores logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// LoggerFromContext returns the logger stored in ctx, enriched with the
// request and batch IDs found there. Without a stored logger it returns a
// disabled logger.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	logger := *zerolog.Ctx(ctx)
	lc := logger.With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := BatchIDFromContext(ctx); id != "" {
		lc = lc.Str("batch_id", id)
	}
	return lc.Logger()
}

// EnrichmentContext contains the correlation data carried through an enrichment run.
type EnrichmentContext struct {
	RequestID  string
	BatchID    string
	WorkflowID string
	RunID      string
}

// WithEnrichmentContext adds all enrichment context to the context.
func WithEnrichmentContext(ctx context.Context, ec EnrichmentContext) context.Context {
	if ec.RequestID != "" {
		ctx = WithRequestID(ctx, ec.RequestID)
	}
	if ec.BatchID != "" {
		ctx = WithBatchID(ctx, ec.BatchID)
	}
	if ec.WorkflowID != "" || ec.RunID != "" {
		ctx = WithWorkflow(ctx, ec.WorkflowID, ec.RunID)
	}
	return ctx
}

// EnrichmentContextFromContext extracts all enrichment context from the context.
func EnrichmentContextFromContext(ctx context.Context) EnrichmentContext {
	workflowID, runID := WorkflowFromContext(ctx)
	return EnrichmentContext{
		RequestID:  RequestIDFromContext(ctx),
		BatchID:    BatchIDFromContext(ctx),
		WorkflowID: workflowID,
		RunID:      runID,
	}
}
