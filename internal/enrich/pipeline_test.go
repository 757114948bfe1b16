package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

func TestAbstractPipeline_Run(t *testing.T) {
	t.Run("first success wins and provenance keeps every source", func(t *testing.T) {
		a := newFakeAdapter(domain.SourceTypeCrossref, failedResult(domain.NewExternalAPIError("Crossref", 404, "", domain.ErrNotFound)))
		b := newFakeAdapter(domain.SourceTypeOpenAlex, abstractResult("From OpenAlex."))
		c := newFakeAdapter(domain.SourceTypePubMed, abstractResult("From PubMed."))

		rec := &domain.Record{DOINorm: "10.1/x"}
		prov := make(domain.Provenance)
		attempts := NewAbstractPipeline([]papersources.Adapter{a, b, c}, testLogger, nil).Run(context.Background(), rec, prov)

		assert.Equal(t, "From OpenAlex.", rec.AbstractText)
		assert.Equal(t, "openalex", rec.AbstractSource)
		assert.Contains(t, prov, "crossref")
		assert.Contains(t, prov, "openalex")
		assert.Contains(t, prov, "pubmed")

		require.Len(t, attempts, 3)
		assert.Equal(t, domain.AttemptStatusFailed, attempts[0].Status)
		assert.Equal(t, "not found (HTTP 404)", attempts[0].Reason)
		assert.Equal(t, domain.AttemptStatusSuccess, attempts[1].Status)
		assert.Equal(t, domain.AttemptStatusSuccess, attempts[2].Status)
		assert.Contains(t, attempts[2].Reason, "kept abstract from openalex")
		assert.Equal(t, int32(1), c.calls.Load(), "later sources still run")
	})

	t.Run("attempt order follows precedence", func(t *testing.T) {
		order := []domain.SourceType{domain.SourceTypeScopus, domain.SourceTypeSemanticScholar, domain.SourceTypeEuropePMC}
		adapters := make([]papersources.Adapter, len(order))
		for i, st := range order {
			adapters[i] = newFakeAdapter(st, failedResult(domain.ErrNoAbstract))
		}

		pipeline := NewAbstractPipeline(adapters, testLogger, nil)
		attempts := pipeline.Run(context.Background(), &domain.Record{DOINorm: "10.1/x"}, make(domain.Provenance))

		assert.Equal(t, order, pipeline.Sources())
		for i, st := range order {
			assert.Equal(t, st, attempts[i].Source)
		}
	})

	t.Run("existing abstract is never overwritten", func(t *testing.T) {
		rec := &domain.Record{DOINorm: "10.1/x", AbstractText: "Original.", AbstractSource: "s2"}
		a := newFakeAdapter(domain.SourceTypeCrossref, abstractResult("Replacement."))
		prov := domain.Provenance{"crossref": []byte(`{"old":true}`)}

		pipeline := NewAbstractPipeline([]papersources.Adapter{a}, testLogger, nil)
		pipeline.Run(context.Background(), rec, prov)
		pipeline.Run(context.Background(), rec, prov)

		assert.Equal(t, "Original.", rec.AbstractText)
		assert.Equal(t, "s2", rec.AbstractSource)
		assert.JSONEq(t, `{"abstract":"Replacement."}`, string(prov["crossref"]))
	})

	t.Run("missing credential is a skip", func(t *testing.T) {
		inner := newFakeAdapter(domain.SourceTypeSemanticScholar, abstractResult("unused"))
		adapter := &credentialedFake{fakeAdapter: inner}

		prov := make(domain.Provenance)
		attempts := NewAbstractPipeline([]papersources.Adapter{adapter}, testLogger, nil).
			Run(context.Background(), &domain.Record{DOINorm: "10.1/x"}, prov)

		require.Len(t, attempts, 1)
		assert.Equal(t, domain.AttemptStatusSkipped, attempts[0].Status)
		assert.Equal(t, int32(0), inner.calls.Load())
		assert.NotContains(t, prov, "s2")
	})

	t.Run("panicking adapter does not stop siblings", func(t *testing.T) {
		bad := newFakeAdapter(domain.SourceTypeCrossref, func(context.Context, *domain.Record) *papersources.Result {
			panic("boom")
		})
		good := newFakeAdapter(domain.SourceTypeOpenAlex, abstractResult("Still here."))

		rec := &domain.Record{DOINorm: "10.1/x"}
		attempts := NewAbstractPipeline([]papersources.Adapter{bad, good}, testLogger, nil).
			Run(context.Background(), rec, make(domain.Provenance))

		require.Len(t, attempts, 2)
		assert.Equal(t, domain.AttemptStatusFailed, attempts[0].Status)
		assert.Contains(t, attempts[0].Reason, reasonAdapterPanic)
		assert.Equal(t, "Still here.", rec.AbstractText)
	})

	t.Run("nil result is a failure", func(t *testing.T) {
		nilAdapter := newFakeAdapter(domain.SourceTypeCrossref, func(context.Context, *domain.Record) *papersources.Result {
			return nil
		})

		attempts := NewAbstractPipeline([]papersources.Adapter{nilAdapter}, testLogger, nil).
			Run(context.Background(), &domain.Record{DOINorm: "10.1/x"}, make(domain.Provenance))

		assert.Equal(t, domain.AttemptStatusFailed, attempts[0].Status)
	})

	t.Run("missing DOI reason", func(t *testing.T) {
		a := newFakeAdapter(domain.SourceTypeCrossref, noDOIResult)

		prov := make(domain.Provenance)
		attempts := NewAbstractPipeline([]papersources.Adapter{a}, testLogger, nil).
			Run(context.Background(), &domain.Record{}, prov)

		assert.Equal(t, "no_doi", attempts[0].Reason)
		assert.JSONEq(t, `{}`, string(prov["crossref"]))
	})

	t.Run("identifiers and pdf are copied without overwriting", func(t *testing.T) {
		a := newFakeAdapter(domain.SourceTypeOpenAlex, func(context.Context, *domain.Record) *papersources.Result {
			return &papersources.Result{
				Err:         domain.ErrNoAbstract,
				PDFURL:      "https://oa.example/x.pdf",
				Identifiers: papersources.Identifiers{OpenAlexID: "W1", PMID: "999"},
			}
		})
		rec := &domain.Record{DOINorm: "10.1/x", PMID: "123"}

		NewAbstractPipeline([]papersources.Adapter{a}, testLogger, nil).Run(context.Background(), rec, make(domain.Provenance))

		assert.Equal(t, "W1", rec.OpenAlexID)
		assert.Equal(t, "123", rec.PMID)
		assert.Equal(t, "https://oa.example/x.pdf", rec.OAPDFURL)
	})

	t.Run("success without abstract text is a failure", func(t *testing.T) {
		a := newFakeAdapter(domain.SourceTypeCrossref, func(context.Context, *domain.Record) *papersources.Result {
			return &papersources.Result{}
		})

		attempts := NewAbstractPipeline([]papersources.Adapter{a}, testLogger, nil).
			Run(context.Background(), &domain.Record{DOINorm: "10.1/x"}, make(domain.Provenance))

		assert.Equal(t, domain.AttemptStatusFailed, attempts[0].Status)
		assert.Equal(t, "No abstract field in response", attempts[0].Reason)
	})
}

func TestReasonClass(t *testing.T) {
	assert.Equal(t, "precondition", reasonClass(domain.ErrNoDOI))
	assert.Equal(t, "no_abstract", reasonClass(domain.ErrNoAbstract))
	assert.Equal(t, "parse", reasonClass(domain.NewParseError("x", nil, errors.New("bad"))))
	assert.Equal(t, "not_found", reasonClass(domain.NewExternalAPIError("x", 404, "", domain.ErrNotFound)))
	assert.Equal(t, "http", reasonClass(domain.NewExternalAPIError("x", 400, "", nil)))
	assert.Equal(t, "timeout", reasonClass(context.DeadlineExceeded))
	assert.Equal(t, "other", reasonClass(errors.New("x")))
}
