package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/papersources"
)

// Reasons recorded for attempts that did not reach the provider.
const (
	reasonMissingCredential = "credential not configured"
	reasonAdapterPanic      = "unexpected adapter error"
)

// caller invokes adapters at the adapter boundary: it recovers panics,
// guarantees a non-nil result and records metrics.
type caller struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// call runs adapter.Fetch for rec. A panic inside the adapter becomes a
// failed result so sibling sources keep running.
func (c caller) call(ctx context.Context, adapter papersources.Adapter, rec *domain.Record) (res *papersources.Result) {
	source := string(adapter.SourceType())
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			logger := observability.WithSourceContext(c.logger, source)
			logger.Error().
				Interface("panic", p).
				Msg("source_panic")
			if c.metrics != nil {
				c.metrics.RecordSourcePanic(source)
			}
			res = papersources.Failure(fmt.Errorf("%s: %v", reasonAdapterPanic, p), nil)
		}
		if res == nil {
			res = papersources.Failure(fmt.Errorf("%s returned no result", adapter.Name()), nil)
		}
		c.observe(source, res, time.Since(start))
	}()

	return adapter.Fetch(ctx, rec)
}

func (c caller) observe(source string, res *papersources.Result, elapsed time.Duration) {
	status := string(domain.AttemptStatusSuccess)
	if res.Err != nil {
		status = string(domain.AttemptStatusFailed)
		c.logParseError(source, res.Err)
	}
	if c.metrics == nil {
		return
	}
	c.metrics.RecordSourceAttempt(source, status, elapsed.Seconds())
	if res.Err != nil {
		c.metrics.RecordSourceFailure(source, reasonClass(res.Err))
	}
}

func (c caller) logParseError(source string, err error) {
	var parseErr *domain.ParseError
	if errors.As(err, &parseErr) {
		logger := observability.WithSourceContext(c.logger, source)
		logger.Warn().
			Str("snippet", parseErr.Snippet).
			Err(parseErr.Cause).
			Msg("source_parse_error")
	}
}

// skipped reports whether adapter needs a credential that is not configured.
func skipped(adapter papersources.Adapter) bool {
	ca, ok := adapter.(papersources.CredentialedAdapter)
	return ok && !ca.HasCredential()
}
