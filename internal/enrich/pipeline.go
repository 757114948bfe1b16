package enrich

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/papersources"
)

// AbstractPipeline tries abstract sources in a fixed precedence order.
//
// Every enabled source is attempted even after an abstract is found, so the
// provenance map always holds the latest payload of each source. The first
// source that yields an abstract supplies it; later successes never replace it.
type AbstractPipeline struct {
	adapters []papersources.Adapter
	caller   caller
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewAbstractPipeline creates a pipeline over adapters, tried in slice order.
func NewAbstractPipeline(adapters []papersources.Adapter, logger zerolog.Logger, metrics *observability.Metrics) *AbstractPipeline {
	return &AbstractPipeline{
		adapters: adapters,
		caller:   caller{logger: logger, metrics: metrics},
		logger:   logger,
		metrics:  metrics,
	}
}

// Sources returns the source keys of the pipeline in precedence order.
func (p *AbstractPipeline) Sources() []domain.SourceType {
	keys := make([]domain.SourceType, len(p.adapters))
	for i, a := range p.adapters {
		keys[i] = a.SourceType()
	}
	return keys
}

// Run attempts every source for rec, writing payloads into prov and the
// abstract into rec. It returns one attempt per source in precedence order.
func (p *AbstractPipeline) Run(ctx context.Context, rec *domain.Record, prov domain.Provenance) []domain.Attempt {
	attempts := make([]domain.Attempt, 0, len(p.adapters))

	for _, adapter := range p.adapters {
		key := adapter.SourceType()
		attempt := domain.Attempt{Source: key, Name: adapter.Name()}

		if skipped(adapter) {
			attempt.Status = domain.AttemptStatusSkipped
			attempt.Reason = reasonMissingCredential
			attempts = append(attempts, attempt)
			p.logger.Debug().Str("source", string(key)).Msg("source_skipped")
			continue
		}

		res := p.caller.call(ctx, adapter, rec)
		prov.Set(string(key), res.Raw)
		applyAuxiliary(rec, res)

		switch {
		case res.HasAbstract():
			attempt.Status = domain.AttemptStatusSuccess
			if rec.SetAbstract(res.Abstract, string(key)) {
				attempt.Reason = "abstract retrieved"
				p.logger.Info().Str("source", string(key)).Int("length", len(rec.AbstractText)).Msg("abstract_retrieved")
				if p.metrics != nil {
					p.metrics.RecordAbstractFound(string(key))
				}
			} else {
				attempt.Reason = "abstract retrieved; kept abstract from " + rec.AbstractSource
			}
		case res.Err != nil:
			attempt.Status = domain.AttemptStatusFailed
			attempt.Reason = papersources.Reason(res.Err)
		default:
			attempt.Status = domain.AttemptStatusFailed
			attempt.Reason = papersources.Reason(domain.ErrNoAbstract)
		}

		if attempt.Status == domain.AttemptStatusFailed {
			p.logger.Debug().
				Str("source", string(key)).
				Str("reason", attempt.Reason).
				Msg("abstract_attempt_failed")
		}
		attempts = append(attempts, attempt)
	}

	return attempts
}

// applyAuxiliary copies identifiers and a PDF location reported by a source
// onto rec without overwriting existing values.
func applyAuxiliary(rec *domain.Record, res *papersources.Result) {
	res.Identifiers.ApplyTo(rec)
	if rec.OAPDFURL == "" && res.PDFURL != "" {
		rec.OAPDFURL = res.PDFURL
	}
}
