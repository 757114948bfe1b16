package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare DOI", input: "10.1234/ABC.def", expected: "10.1234/abc.def"},
		{name: "trims whitespace", input: "  10.1234/x  ", expected: "10.1234/x"},
		{name: "https doi.org prefix", input: "https://doi.org/10.1234/X", expected: "10.1234/x"},
		{name: "https dx.doi.org prefix", input: "https://dx.doi.org/10.1234/x", expected: "10.1234/x"},
		{name: "http doi.org prefix", input: "http://doi.org/10.1234/x", expected: "10.1234/x"},
		{name: "http dx.doi.org prefix", input: "HTTP://DX.DOI.ORG/10.1234/x", expected: "10.1234/x"},
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
		{name: "prefix only", input: "https://doi.org/", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDOI(tt.input))
		})
	}
}

func TestExtractArXivID(t *testing.T) {
	assert.Equal(t, "2101.00001", ExtractArXivID("arXiv:2101.00001v2"))
	assert.Equal(t, "2101.00001", ExtractArXivID("10.48550/arxiv.2101.00001"))
	assert.Equal(t, "1901.1234", ExtractArXivID("ARXIV:1901.1234"))
	assert.Empty(t, ExtractArXivID("10.1101/2020.01.01.123456"))
	assert.Empty(t, ExtractArXivID(""))
}

func TestIsMeaningfulPublishedDOI(t *testing.T) {
	assert.True(t, IsMeaningfulPublishedDOI("10.1234/published"))
	assert.False(t, IsMeaningfulPublishedDOI("NA"))
	assert.False(t, IsMeaningfulPublishedDOI("na"))
	assert.False(t, IsMeaningfulPublishedDOI(" "))
}

func TestDOIFromURL(t *testing.T) {
	assert.Equal(t, "10.1038/s41586-020-2649-2", DOIFromURL("https://doi.org/10.1038/s41586-020-2649-2"))
	assert.Empty(t, DOIFromURL("https://openalex.org/W123"))
}

func TestRecord_SetAbstract(t *testing.T) {
	t.Run("first abstract wins", func(t *testing.T) {
		rec := &Record{}
		assert.True(t, rec.SetAbstract(" first ", "crossref"))
		assert.False(t, rec.SetAbstract("second", "openalex"))
		assert.Equal(t, "first", rec.AbstractText)
		assert.Equal(t, "crossref", rec.AbstractSource)
	})

	t.Run("empty text is ignored", func(t *testing.T) {
		rec := &Record{}
		assert.False(t, rec.SetAbstract("   ", "crossref"))
		assert.False(t, rec.HasAbstract())
		assert.Empty(t, rec.AbstractSource)
	})
}

func TestRecord_IsPersisted(t *testing.T) {
	assert.False(t, (&Record{}).IsPersisted())
	assert.True(t, (&Record{ID: uuid.New()}).IsPersisted())
}

func TestProvenance(t *testing.T) {
	t.Run("set replaces only the given key", func(t *testing.T) {
		p := Provenance{}
		p.Set("crossref", json.RawMessage(`{"a":1}`))
		p.Set("openalex", json.RawMessage(`{"b":2}`))
		p.Set("crossref", json.RawMessage(`{"a":3}`))

		assert.JSONEq(t, `{"a":3}`, string(p["crossref"]))
		assert.JSONEq(t, `{"b":2}`, string(p["openalex"]))
	})

	t.Run("nil payload stored as empty object", func(t *testing.T) {
		p := Provenance{}
		p.Set("s2", nil)
		assert.JSONEq(t, `{}`, string(p["s2"]))
	})

	t.Run("merge extends existing entries", func(t *testing.T) {
		rec := &Record{}
		rec.EnsureProvenance().Set("old", json.RawMessage(`1`))
		rec.Provenance.Merge(Provenance{"new": json.RawMessage(`2`)})
		assert.Len(t, rec.Provenance, 2)
	})
}

func TestNewPublishedVersionRecord(t *testing.T) {
	preprint := &Record{
		ID:             uuid.New(),
		Title:          "A preprint",
		DOINorm:        "10.1101/2020.01.01.000001",
		PubDate:        "2020-01-01",
		Authors:        []Author{{Name: "Ada Lovelace"}},
		SourceTitle:    "bioRxiv",
		AbstractText:   "preprint abstract",
		AbstractSource: "biorxiv",
		IsPreprint:     true,
		PreprintSource: "biorxiv",
		OAStatus:       "green",
	}

	pub := NewPublishedVersionRecord(preprint, "https://doi.org/10.1234/Pub", "10.1234/pub")

	assert.False(t, pub.IsPersisted())
	assert.Equal(t, preprint.Title, pub.Title)
	assert.Equal(t, preprint.PubDate, pub.PubDate)
	assert.Equal(t, preprint.Authors, pub.Authors)
	assert.Equal(t, "10.1234/pub", pub.DOINorm)
	assert.False(t, pub.IsPreprint)
	assert.Empty(t, pub.PreprintSource)
	assert.Empty(t, pub.SourceTitle)
	assert.Empty(t, pub.AbstractText)
	assert.Empty(t, pub.OAStatus)
	assert.Nil(t, pub.EnrichedAt)

	pub.Authors[0].Name = "changed"
	assert.Equal(t, "Ada Lovelace", preprint.Authors[0].Name, "authors must be copied")
}

func TestEnrichmentReport_FailureSummary(t *testing.T) {
	t.Run("joins failed attempts", func(t *testing.T) {
		r := &EnrichmentReport{AbstractAttempts: []Attempt{
			{Source: SourceTypeCrossref, Name: "Crossref", Status: AttemptStatusFailed, Reason: "HTTP 404"},
			{Source: SourceTypeSemanticScholar, Name: "Semantic Scholar", Status: AttemptStatusSkipped, Reason: "no API key"},
			{Source: SourceTypeOpenAlex, Name: "OpenAlex", Status: AttemptStatusFailed, Reason: "timeout"},
		}}
		assert.Equal(t, "Crossref: HTTP 404; OpenAlex: timeout", r.FailureSummary())
	})

	t.Run("no attempts", func(t *testing.T) {
		r := &EnrichmentReport{}
		assert.Equal(t, NoSourcesAttemptedReason, r.FailureSummary())
	})
}

func TestNewEnrichmentReport_TruncatesTitle(t *testing.T) {
	rec := &Record{Title: strings.Repeat("x", 100), DOINorm: "10.1/x"}
	r := NewEnrichmentReport(rec)
	assert.Equal(t, strings.Repeat("x", 80)+"...", r.RecordTitle)
	assert.Equal(t, "10.1/x", r.DOI)
	assert.NotNil(t, r.AbstractAttempts)
}

func TestSourceType(t *testing.T) {
	assert.Equal(t, "EuropePMC", SourceTypeEuropePMC.DisplayName())
	assert.Equal(t, "custom", SourceType("custom").DisplayName())
	assert.True(t, SourceTypeMedRxiv.IsPreprintServer())
	assert.False(t, SourceTypeCrossref.IsPreprintServer())
}

func TestErrors(t *testing.T) {
	t.Run("not found unwraps to sentinel", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", NewNotFoundError("record", "abc"))
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, "wrapped: record not found: abc", err.Error())
	})

	t.Run("validation unwraps to invalid input", func(t *testing.T) {
		assert.True(t, errors.Is(NewValidationError("doi", "required"), ErrInvalidInput))
	})

	t.Run("parse error truncates snippet", func(t *testing.T) {
		payload := []byte(strings.Repeat("a", 500))
		err := NewParseError("crossref", payload, errors.New("boom"))
		require.Len(t, err.Snippet, maxSnippetLen+3)
		assert.Contains(t, err.Error(), "malformed response")
	})

	t.Run("parse error cuts on rune boundary", func(t *testing.T) {
		payload := []byte(strings.Repeat("a", maxSnippetLen-1) + "é" + "tail")
		err := NewParseError("pubmed", payload, errors.New("boom"))
		assert.Equal(t, strings.Repeat("a", maxSnippetLen-1)+"...", err.Snippet)
	})

	t.Run("retries exhausted qualifiers", func(t *testing.T) {
		rateLimited := &RetriesExhaustedError{Attempts: 4, StatusCode: 429, RetryAfter: 30 * time.Second}
		assert.ErrorIs(t, rateLimited, ErrRetriesExhausted)
		assert.ErrorIs(t, rateLimited, ErrRateLimited)
		assert.NotErrorIs(t, rateLimited, ErrServiceUnavailable)
		assert.Equal(t, "retries exhausted after 4 attempts, last status: 429 (retry after 30s)", rateLimited.Error())

		unavailable := fmt.Errorf("crossref: %w", &RetriesExhaustedError{Attempts: 2, StatusCode: 503})
		assert.ErrorIs(t, unavailable, ErrServiceUnavailable)

		cause := errors.New("connection refused")
		network := &RetriesExhaustedError{Attempts: 3, Cause: cause}
		assert.ErrorIs(t, network, cause)
		assert.NotErrorIs(t, network, ErrRateLimited)
		assert.Equal(t, "retries exhausted after 3 attempts: connection refused", network.Error())
	})

	t.Run("no_doi message", func(t *testing.T) {
		assert.Equal(t, "no_doi", ErrNoDOI.Error())
	})
}
