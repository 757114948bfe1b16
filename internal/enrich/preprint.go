package enrich

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/papersources"
)

// Preprint detection statuses recorded in the report.
const (
	PreprintStatusNotPreprint      = "not_preprint"
	PreprintStatusMetadataFetched  = "metadata_fetched"
	PreprintStatusMetadataFailed   = "metadata_failed"
	PreprintStatusNoAdapter        = "no_adapter"
	PreprintStatusPublishedVersion = "published_version_found"
)

// publishedCandidate is a published-version DOI awaiting linking.
type publishedCandidate struct {
	doi      string
	journal  string
	source   domain.SourceType
	metadata json.RawMessage
}

// PreprintEnricher classifies records as preprints and fetches
// preprint-server metadata through the adapter matching the server.
type PreprintEnricher struct {
	adapters map[domain.SourceType]papersources.Adapter
	caller   caller
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewPreprintEnricher creates an enricher dispatching to adapters by source
// type. Adapters that are not preprint servers are ignored.
func NewPreprintEnricher(adapters []papersources.Adapter, logger zerolog.Logger, metrics *observability.Metrics) *PreprintEnricher {
	byServer := make(map[domain.SourceType]papersources.Adapter, len(adapters))
	for _, a := range adapters {
		if a.SourceType().IsPreprintServer() {
			byServer[a.SourceType()] = a
		}
	}
	return &PreprintEnricher{
		adapters: byServer,
		caller:   caller{logger: logger, metrics: metrics},
		logger:   logger,
		metrics:  metrics,
	}
}

// Enrich detects whether rec is a preprint and, if so, fetches its metadata.
// The attempt is non-nil when a preprint adapter was consulted. The candidate
// is non-nil when the server reported a published version.
func (e *PreprintEnricher) Enrich(ctx context.Context, rec *domain.Record, prov domain.Provenance) (domain.PreprintDetection, *domain.Attempt, *publishedCandidate) {
	server, ok := DetectPreprint(rec)
	rec.IsPreprint = ok
	rec.PreprintSource = string(server)

	detection := domain.PreprintDetection{IsPreprint: ok, Source: server}
	if !ok {
		detection.Status = PreprintStatusNotPreprint
		return detection, nil, nil
	}

	e.logger.Info().Str("server", string(server)).Msg("preprint_detected")
	if e.metrics != nil {
		e.metrics.RecordPreprintDetected(string(server))
	}

	adapter := e.adapters[server]
	if adapter == nil || !adapter.IsEnabled() {
		detection.Status = PreprintStatusNoAdapter
		return detection, nil, nil
	}

	res := e.caller.call(ctx, adapter, rec)
	prov.Set(string(server), res.Raw)
	applyAuxiliary(rec, res)

	attempt := &domain.Attempt{Source: server, Name: adapter.Name()}
	switch {
	case res.HasAbstract():
		attempt.Status = domain.AttemptStatusSuccess
		attempt.Reason = "abstract retrieved"
		if rec.SetAbstract(res.Abstract, string(server)) {
			e.logger.Info().Str("source", string(server)).Msg("abstract_retrieved")
			if e.metrics != nil {
				e.metrics.RecordAbstractFound(string(server))
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

	detection.Status = PreprintStatusMetadataFetched
	if res.Preprint == nil {
		if res.Err != nil && !errors.Is(res.Err, domain.ErrNoAbstract) {
			detection.Status = PreprintStatusMetadataFailed
		}
		return detection, attempt, nil
	}

	meta := res.Preprint
	if !domain.IsMeaningfulPublishedDOI(meta.PublishedDOI) {
		return detection, attempt, nil
	}

	doi := domain.NormalizeDOI(meta.PublishedDOI)
	if doi == "" || doi == rec.DOINorm {
		return detection, attempt, nil
	}

	applyPublishedFields(rec, doi, meta)
	detection.Status = PreprintStatusPublishedVersion
	e.logger.Info().
		Str("server", string(server)).
		Str("published_doi", doi).
		Msg("published_version_found")

	return detection, attempt, &publishedCandidate{
		doi:      doi,
		journal:  meta.PublishedJournal,
		source:   server,
		metadata: discoveryMetadata(server, meta),
	}
}

// applyPublishedFields copies published-version metadata onto rec.
func applyPublishedFields(rec *domain.Record, doi string, meta *papersources.PreprintMetadata) {
	rec.PublishedDOI = doi
	if meta.PublishedJournal != "" {
		rec.PublishedJournal = meta.PublishedJournal
	}
	if meta.PublishedURL != "" {
		rec.PublishedURL = meta.PublishedURL
	} else if rec.PublishedURL == "" {
		rec.PublishedURL = "https://doi.org/" + doi
	}
	if meta.PublishedFulltextURL != "" {
		rec.PublishedFulltextURL = meta.PublishedFulltextURL
	}
}

// discoveryMetadata is stored on the version relation.
func discoveryMetadata(server domain.SourceType, meta *papersources.PreprintMetadata) json.RawMessage {
	encoded, _ := json.Marshal(map[string]string{
		"server":            string(server),
		"published_doi":     meta.PublishedDOI,
		"published_journal": meta.PublishedJournal,
		"published_date":    meta.PublishedDate,
		"published_url":     meta.PublishedURL,
		"preprint_version":  meta.Version,
	})
	return encoded
}
