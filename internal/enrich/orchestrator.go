// Package enrich orchestrates the enrichment of bibliographic records.
//
// A record passes through three stages in a fixed order: preprint detection
// and preprint-server metadata, the abstract source pipeline, and the
// open-access check. When a published version of a preprint is discovered the
// version-linking workflow runs last. Every stage converts failures into
// report entries, so enrichment of one record never fails as a whole.
package enrich

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/papersources"
)

// VersionLinker links a preprint to its published version.
type VersionLinker interface {
	ProcessPreprintToPublishedLinking(ctx context.Context, preprint *domain.Record, publishedDOI string, source domain.SourceType, metadata json.RawMessage) domain.LinkResult
}

// Orchestrator enriches one record at a time. It holds no per-record state
// and is safe for concurrent use on different records.
type Orchestrator struct {
	preprints *PreprintEnricher
	abstracts *AbstractPipeline
	oa        *OpenAccessEnricher
	linker    VersionLinker
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewOrchestrator assembles an orchestrator from its stages. linker may be nil,
// in which case discovered published versions are recorded but not linked.
func NewOrchestrator(
	preprints *PreprintEnricher,
	abstracts *AbstractPipeline,
	oa *OpenAccessEnricher,
	linker VersionLinker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		preprints: preprints,
		abstracts: abstracts,
		oa:        oa,
		linker:    linker,
		logger:    logger.With().Str("component", "enrichment").Logger(),
		metrics:   metrics,
	}
}

// NewOrchestratorFromRegistry builds every stage from the adapters in reg.
// abstractOrder sets the abstract source precedence; the open-access stage
// uses the Unpaywall adapter.
func NewOrchestratorFromRegistry(
	reg *papersources.Registry,
	abstractOrder []domain.SourceType,
	linker VersionLinker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	if len(abstractOrder) == 0 {
		abstractOrder = domain.DefaultAbstractOrder
	}
	preprintAdapters := reg.Ordered([]domain.SourceType{
		domain.SourceTypeArXiv,
		domain.SourceTypeBioRxiv,
		domain.SourceTypeMedRxiv,
		domain.SourceTypePreprints,
	})
	return NewOrchestrator(
		NewPreprintEnricher(preprintAdapters, logger, metrics),
		NewAbstractPipeline(reg.Ordered(abstractOrder), logger, metrics),
		NewOpenAccessEnricher(reg.Enabled(domain.SourceTypeUnpaywall), logger, metrics),
		linker,
		logger,
		metrics,
	)
}

// EnrichRecord runs every stage for rec, mutating it in place, and returns it.
// Provenance gathered in this run is merged into rec.Provenance, replacing
// only the keys of sources attempted now. The run's trace is stored in
// rec.EnrichmentReport.
func (o *Orchestrator) EnrichRecord(ctx context.Context, rec *domain.Record) *domain.Record {
	start := time.Now()
	logger := observability.WithRecordContext(o.logger, rec.ID.String(), rec.DOINorm)
	if o.metrics != nil {
		o.metrics.RecordEnrichmentStarted()
	}

	report := domain.NewEnrichmentReport(rec)
	prov := make(domain.Provenance)

	detection, preprintAttempt, candidate := o.preprints.Enrich(ctx, rec, prov)
	if preprintAttempt != nil {
		report.AbstractAttempts = append(report.AbstractAttempts, *preprintAttempt)
	}

	report.AbstractAttempts = append(report.AbstractAttempts, o.abstracts.Run(ctx, rec, prov)...)
	report.OACheck = o.oa.Enrich(ctx, rec, prov)

	if rec.IsPreprint && candidate == nil {
		if candidate = discoverFromProvenance(rec, prov); candidate != nil {
			applyPublishedFields(rec, candidate.doi, &papersources.PreprintMetadata{PublishedJournal: candidate.journal})
			detection.Status = PreprintStatusPublishedVersion
			logger.Info().
				Str("source", string(candidate.source)).
				Str("published_doi", candidate.doi).
				Msg("published_version_found")
		}
	}
	if candidate != nil {
		detection.PublishedVersion = o.link(ctx, logger, rec, candidate)
	}
	report.PreprintDetection = detection

	rec.EnsureProvenance().Merge(prov)
	finalizeAbstract(rec, report)
	report.FinalStatus = finalStatus(rec)
	rec.EnrichmentReport = report

	logger.Info().
		Bool("abstract_found", rec.HasAbstract()).
		Str("abstract_source", rec.AbstractSource).
		Bool("is_preprint", rec.IsPreprint).
		Dur("duration", time.Since(start)).
		Msg("record_enriched")
	if o.metrics != nil {
		o.metrics.RecordEnrichmentCompleted(rec.HasAbstract(), time.Since(start).Seconds())
	}
	return rec
}

// link runs the linking workflow for candidate and converts its result into
// the report outcome.
func (o *Orchestrator) link(ctx context.Context, logger zerolog.Logger, rec *domain.Record, c *publishedCandidate) *domain.PublishedVersionOutcome {
	outcome := &domain.PublishedVersionOutcome{
		DOI:             c.doi,
		Journal:         c.journal,
		DiscoverySource: c.source,
	}
	if o.linker == nil {
		outcome.Status = domain.LinkStatusFailed
		outcome.Message = "version linking not configured"
		return outcome
	}

	res := o.linker.ProcessPreprintToPublishedLinking(ctx, rec, c.doi, c.source, c.metadata)
	outcome.Status = res.Status()
	outcome.Success = res.Success
	outcome.LinkCreated = res.LinkCreated
	outcome.RecordCreated = res.RecordCreated
	outcome.Message = res.Message
	if res.PublishedID != uuid.Nil {
		id := res.PublishedID
		outcome.PublishedVersionRecordID = &id
	}

	event := logger.Info()
	if !res.Success {
		event = logger.Warn()
	}
	event.Str("published_doi", c.doi).
		Str("status", outcome.Status).
		Str("message", res.Message).
		Msg("version_link_processed")
	if o.metrics != nil {
		o.metrics.RecordVersionLink(outcome.Status, res.RecordCreated)
	}
	return outcome
}

// finalizeAbstract enforces that exactly one of abstract_source and
// abstract_no_retrieval_reason is set.
func finalizeAbstract(rec *domain.Record, report *domain.EnrichmentReport) {
	if rec.HasAbstract() {
		rec.AbstractNoRetrievalReason = ""
		return
	}
	rec.AbstractText = ""
	rec.AbstractSource = ""
	rec.AbstractNoRetrievalReason = report.FailureSummary()
}

func finalStatus(rec *domain.Record) domain.FinalStatus {
	return domain.FinalStatus{
		AbstractFound:             rec.HasAbstract(),
		AbstractSource:            rec.AbstractSource,
		AbstractNoRetrievalReason: rec.AbstractNoRetrievalReason,
		IsOA:                      rec.IsOA,
		OAStatus:                  rec.OAStatus,
		IsPreprint:                rec.IsPreprint,
		PreprintSource:            domain.SourceType(rec.PreprintSource),
		HasPublishedVersion:       rec.PublishedDOI != "",
	}
}
