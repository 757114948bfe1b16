package enrich

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/helixir/enrichment-service/internal/domain"
)

func TestFormatReport(t *testing.T) {
	t.Run("missing report", func(t *testing.T) {
		rec := &domain.Record{Title: strings.Repeat("x", 100)}
		out := FormatReport(rec)
		assert.Equal(t, "No enrichment report available for: "+strings.Repeat("x", 60), out)
	})

	t.Run("full report", func(t *testing.T) {
		isOA := true
		id := uuid.MustParse("6f1c1f4e-7c1d-4b55-9b8e-3f7f0c6d2a10")
		rec := &domain.Record{
			EnrichmentReport: &domain.EnrichmentReport{
				RecordTitle: "Deep learning",
				DOI:         "10.48550/arxiv.1234.5678",
				PreprintDetection: domain.PreprintDetection{
					IsPreprint: true,
					Source:     domain.SourceTypeArXiv,
					Status:     PreprintStatusPublishedVersion,
					PublishedVersion: &domain.PublishedVersionOutcome{
						DOI:                      "10.1038/nature1",
						Journal:                  "Nature",
						Status:                   domain.LinkStatusLinkedNew,
						DiscoverySource:          domain.SourceTypeArXiv,
						PublishedVersionRecordID: &id,
						Success:                  true,
						LinkCreated:              true,
						RecordCreated:            true,
						Message:                  "linked to new record",
					},
				},
				AbstractAttempts: []domain.Attempt{
					{Source: domain.SourceTypeArXiv, Name: "arXiv", Status: domain.AttemptStatusSuccess, Reason: "abstract retrieved"},
					{Source: domain.SourceTypeCrossref, Name: "Crossref", Status: domain.AttemptStatusFailed, Reason: "HTTP 500"},
					{Source: domain.SourceTypeScopus, Name: "Scopus", Status: domain.AttemptStatusSkipped, Reason: reasonMissingCredential},
				},
				OACheck: domain.OACheck{Status: domain.AttemptStatusSuccess, IsOA: &isOA, Reason: "is_oa=true, oa_status=green"},
				FinalStatus: domain.FinalStatus{
					AbstractFound:       true,
					AbstractSource:      "arxiv",
					IsOA:                &isOA,
					OAStatus:            "green",
					IsPreprint:          true,
					PreprintSource:      domain.SourceTypeArXiv,
					HasPublishedVersion: true,
				},
			},
		}

		out := FormatReport(rec)

		assert.Contains(t, out, "Enrichment report: Deep learning")
		assert.Contains(t, out, "preprint on arXiv (published_version_found)")
		assert.Contains(t, out, "published version: 10.1038/nature1 in Nature (via arXiv)")
		assert.Contains(t, out, "link: linked_new, linked to new record")
		assert.Contains(t, out, id.String())
		assert.Contains(t, out, "[OK]   arXiv: abstract retrieved")
		assert.Contains(t, out, "[FAIL] Crossref: HTTP 500")
		assert.Contains(t, out, "[SKIP] Scopus: credential not configured")
		assert.Contains(t, out, "abstract: found via arxiv")
		assert.Contains(t, out, "open access: yes (green)")
		assert.Contains(t, out, "preprint: arXiv, published version: true")
	})

	t.Run("no abstract and unknown OA", func(t *testing.T) {
		rec := &domain.Record{
			EnrichmentReport: &domain.EnrichmentReport{
				RecordTitle: "Nothing",
				OACheck:     domain.OACheck{Status: domain.AttemptStatusFailed, Reason: reasonOANotConfigured},
				FinalStatus: domain.FinalStatus{AbstractNoRetrievalReason: domain.NoSourcesAttemptedReason},
			},
		}

		out := FormatReport(rec)

		assert.Contains(t, out, "DOI: (none)")
		assert.Contains(t, out, "not a preprint")
		assert.Contains(t, out, "none attempted")
		assert.Contains(t, out, "abstract: not found (No enrichment sources attempted)")
		assert.Contains(t, out, "open access: unknown")
		assert.NotContains(t, out, "preprint:")
	})
}
