package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

func unpaywallResult(isOA bool, status string) func(context.Context, *domain.Record) *papersources.Result {
	return func(context.Context, *domain.Record) *papersources.Result {
		return &papersources.Result{
			Raw:        json.RawMessage(`{"is_oa":true}`),
			OpenAccess: &papersources.OpenAccessInfo{IsOA: isOA, OAStatus: status},
		}
	}
}

func newTestOrchestrator(linker VersionLinker, adapters ...papersources.Adapter) *Orchestrator {
	reg := papersources.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	return NewOrchestratorFromRegistry(reg, nil, linker, testLogger, nil)
}

func TestOrchestrator_EnrichRecord_PreprintLinking(t *testing.T) {
	linker := newFakeLinker()
	arxiv := newFakeAdapter(domain.SourceTypeArXiv, preprintResult("Preprint abstract.", "10.1038/S41586-021-00001"))
	s2 := newFakeAdapter(domain.SourceTypeSemanticScholar, abstractResult("S2 abstract."))
	unpaywall := newFakeAdapter(domain.SourceTypeUnpaywall, unpaywallResult(true, "green"))
	o := newTestOrchestrator(linker, arxiv, s2, unpaywall)

	rec := &domain.Record{
		ID:          uuid.New(),
		Title:       "Attention is all you need",
		DOINorm:     "10.48550/arxiv.1706.03762",
		SourceTitle: "arXiv",
	}

	out := o.EnrichRecord(context.Background(), rec)

	assert.True(t, out.IsPreprint)
	assert.Equal(t, "arxiv", out.PreprintSource)
	assert.Equal(t, "10.1038/s41586-021-00001", out.PublishedDOI)
	assert.Equal(t, "Preprint abstract.", out.AbstractText)
	assert.Equal(t, "arxiv", out.AbstractSource)
	assert.Empty(t, out.AbstractNoRetrievalReason)
	assert.Equal(t, int32(1), s2.calls.Load())

	report := out.EnrichmentReport
	require.NotNil(t, report)
	require.NotEmpty(t, report.AbstractAttempts)
	assert.Equal(t, domain.SourceTypeArXiv, report.AbstractAttempts[0].Source)
	assert.Equal(t, "abstract retrieved; kept abstract from arxiv", report.AbstractAttempts[1].Reason)
	assert.Equal(t, domain.AttemptStatusSuccess, report.OACheck.Status)

	pv := report.PreprintDetection.PublishedVersion
	require.NotNil(t, pv)
	assert.Equal(t, domain.LinkStatusLinkedNew, pv.Status)
	assert.True(t, pv.LinkCreated)
	assert.True(t, pv.RecordCreated)
	require.NotNil(t, pv.PublishedVersionRecordID)
	assert.True(t, report.FinalStatus.HasPublishedVersion)
	assert.Equal(t, domain.SourceTypeArXiv, linker.lastSrc)

	for _, key := range []string{"arxiv", "s2", "unpaywall"} {
		assert.Contains(t, out.Provenance, key)
	}

	// A second run over the same record does not create a second link.
	again := o.EnrichRecord(context.Background(), out)
	pv2 := again.EnrichmentReport.PreprintDetection.PublishedVersion
	require.NotNil(t, pv2)
	assert.Equal(t, domain.LinkStatusAlreadyLinked, pv2.Status)
	assert.False(t, pv2.LinkCreated)
	assert.Equal(t, *pv.PublishedVersionRecordID, *pv2.PublishedVersionRecordID)
	assert.Len(t, linker.links, 1)
}

func TestOrchestrator_EnrichRecord_DiscoversFromProvenance(t *testing.T) {
	linker := newFakeLinker()
	biorxiv := newFakeAdapter(domain.SourceTypeBioRxiv, preprintResult("", "NA"))
	crossref := newFakeAdapter(domain.SourceTypeCrossref, func(context.Context, *domain.Record) *papersources.Result {
		return &papersources.Result{
			Abstract: "Crossref abstract.",
			Raw:      json.RawMessage(`{"message":{"relation":{"is-preprint-of":[{"id":"10.7554/eLife.1"}]}}}`),
		}
	})
	o := newTestOrchestrator(linker, biorxiv, crossref)

	rec := &domain.Record{ID: uuid.New(), DOINorm: "10.1101/2020.02.02.2", SourceTitle: "bioRxiv"}
	out := o.EnrichRecord(context.Background(), rec)

	assert.Equal(t, "10.7554/elife.1", out.PublishedDOI)
	assert.Equal(t, "https://doi.org/10.7554/elife.1", out.PublishedURL)
	assert.Equal(t, "crossref", out.AbstractSource)

	detection := out.EnrichmentReport.PreprintDetection
	assert.Equal(t, PreprintStatusPublishedVersion, detection.Status)
	require.NotNil(t, detection.PublishedVersion)
	assert.Equal(t, domain.SourceTypeCrossref, detection.PublishedVersion.DiscoverySource)
	assert.Equal(t, domain.SourceTypeCrossref, linker.lastSrc)
}

func TestOrchestrator_EnrichRecord_NoAbstract(t *testing.T) {
	s2 := newFakeAdapter(domain.SourceTypeSemanticScholar, failedResult(domain.NewExternalAPIError("Semantic Scholar", 500, "", nil)))
	crossref := newFakeAdapter(domain.SourceTypeCrossref, failedResult(domain.ErrNoAbstract))
	scopus := &credentialedFake{fakeAdapter: newFakeAdapter(domain.SourceTypeScopus, abstractResult("x"))}
	o := newTestOrchestrator(nil, s2, crossref, scopus)

	rec := &domain.Record{
		ID:             uuid.New(),
		DOINorm:        "10.1/none",
		AbstractSource: "stale",
		Provenance:     domain.Provenance{"legacy": json.RawMessage(`{"kept":true}`)},
	}
	out := o.EnrichRecord(context.Background(), rec)

	assert.False(t, out.HasAbstract())
	assert.Empty(t, out.AbstractSource)
	assert.Equal(t, "Semantic Scholar: HTTP 500; Crossref: No abstract field in response", out.AbstractNoRetrievalReason)
	assert.Equal(t, out.AbstractNoRetrievalReason, out.EnrichmentReport.FinalStatus.AbstractNoRetrievalReason)

	assert.Contains(t, out.Provenance, "legacy", "keys of sources not attempted are preserved")
	assert.NotContains(t, out.Provenance, "scopus")

	oa := out.EnrichmentReport.OACheck
	assert.Equal(t, domain.AttemptStatusFailed, oa.Status)
	assert.Equal(t, reasonOANotConfigured, oa.Reason)
	assert.False(t, out.IsPreprint)
	assert.Nil(t, out.EnrichmentReport.PreprintDetection.PublishedVersion)
}

func TestOrchestrator_EnrichRecord_NothingAttempted(t *testing.T) {
	out := newTestOrchestrator(nil).EnrichRecord(context.Background(), &domain.Record{Title: "Lonely"})

	assert.Equal(t, domain.NoSourcesAttemptedReason, out.AbstractNoRetrievalReason)
	assert.Empty(t, out.EnrichmentReport.AbstractAttempts)
}

func TestOrchestrator_EnrichRecord_LinkerFailure(t *testing.T) {
	linker := newFakeLinker()
	linker.forceFail = true
	arxiv := newFakeAdapter(domain.SourceTypeArXiv, preprintResult("A.", "10.9/pub"))
	o := newTestOrchestrator(linker, arxiv)

	out := o.EnrichRecord(context.Background(), &domain.Record{ID: uuid.New(), SourceTitle: "arXiv preprint"})

	pv := out.EnrichmentReport.PreprintDetection.PublishedVersion
	require.NotNil(t, pv)
	assert.Equal(t, domain.LinkStatusFailed, pv.Status)
	assert.False(t, pv.Success)
	assert.Nil(t, pv.PublishedVersionRecordID)
	assert.Equal(t, "10.9/pub", out.PublishedDOI, "the published DOI is recorded even when linking fails")
}

func TestOrchestrator_EnrichRecord_NoLinker(t *testing.T) {
	arxiv := newFakeAdapter(domain.SourceTypeArXiv, preprintResult("A.", "10.9/pub"))
	out := newTestOrchestrator(nil, arxiv).EnrichRecord(context.Background(), &domain.Record{SourceTitle: "arXiv"})

	pv := out.EnrichmentReport.PreprintDetection.PublishedVersion
	require.NotNil(t, pv)
	assert.Equal(t, domain.LinkStatusFailed, pv.Status)
	assert.Equal(t, "version linking not configured", pv.Message)
}

func TestOrchestrator_EnrichRecord_PanickingSourceDoesNotAbort(t *testing.T) {
	s2 := newFakeAdapter(domain.SourceTypeSemanticScholar, func(context.Context, *domain.Record) *papersources.Result {
		panic(errors.New("boom"))
	})
	crossref := newFakeAdapter(domain.SourceTypeCrossref, abstractResult("Recovered."))
	out := newTestOrchestrator(nil, s2, crossref).EnrichRecord(context.Background(), &domain.Record{DOINorm: "10.1/p"})

	assert.Equal(t, "crossref", out.AbstractSource)
	attempts := out.EnrichmentReport.AbstractAttempts
	require.Len(t, attempts, 2)
	assert.Equal(t, domain.AttemptStatusFailed, attempts[0].Status)
	assert.Contains(t, attempts[0].Reason, reasonAdapterPanic)
}
