package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/enrichment-service/internal/domain"
)

func TestDetectPreprint(t *testing.T) {
	tests := []struct {
		name       string
		rec        domain.Record
		wantServer domain.SourceType
		wantOK     bool
	}{
		{"arxiv title", domain.Record{SourceTitle: "arXiv (Cornell University)"}, domain.SourceTypeArXiv, true},
		{"spaced arxiv title", domain.Record{SourceTitle: "Ar Xiv e-prints"}, domain.SourceTypeArXiv, true},
		{"medrxiv title", domain.Record{SourceTitle: "medRxiv"}, domain.SourceTypeMedRxiv, true},
		{"biorxiv title", domain.Record{SourceTitle: "bioRxiv (Cold Spring Harbor Laboratory)"}, domain.SourceTypeBioRxiv, true},
		{"preprints.org title", domain.Record{SourceTitle: "Preprints.org"}, domain.SourceTypePreprints, true},
		{"arxiv id field", domain.Record{ArXivID: "2101.00001"}, domain.SourceTypeArXiv, true},
		{"arxiv doi", domain.Record{DOINorm: "10.48550/arxiv.2101.00001"}, domain.SourceTypeArXiv, true},
		{"cold spring harbor doi", domain.Record{DOINorm: "10.1101/2020.01.01.123456"}, domain.SourceTypeBioRxiv, true},
		{"medrxiv title beats biorxiv doi", domain.Record{SourceTitle: "medRxiv", DOINorm: "10.1101/2020.01.01.1"}, domain.SourceTypeMedRxiv, true},
		{"preprints doi", domain.Record{DOINorm: "10.20944/preprints202001.0001.v1"}, domain.SourceTypePreprints, true},
		{"legacy biorxiv doi", domain.Record{DOINorm: "10.1101/123456"}, domain.SourceTypeBioRxiv, true},
		{"versioned biorxiv doi", domain.Record{DOINorm: "10.1101/2021.03.04.433912v2"}, domain.SourceTypeBioRxiv, true},
		{"journal article", domain.Record{SourceTitle: "Nature", DOINorm: "10.1038/nature12373"}, "", false},
		{"genome research", domain.Record{SourceTitle: "Genome Research", DOINorm: "10.1101/gr.275000.120"}, "", false},
		{"genes and development", domain.Record{SourceTitle: "Genes & Development", DOINorm: "10.1101/gad.1234.5"}, "", false},
		{"cshl journal doi without title", domain.Record{DOINorm: "10.1101/lm.053000.120"}, "", false},
		{"journal article with arxiv id", domain.Record{SourceTitle: "Physical Review Letters", ArXivID: "2101.00001"}, "", false},
		{"titled record with rxiv shaped doi", domain.Record{SourceTitle: "eLife", DOINorm: "10.1101/2020.01.01.123456"}, "", false},
		{"empty record", domain.Record{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, ok := DetectPreprint(&tt.rec)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantServer, server)

			again, okAgain := DetectPreprint(&tt.rec)
			assert.Equal(t, server, again)
			assert.Equal(t, ok, okAgain)
		})
	}
}

func TestDetectPreprint_DerivedPublishedRecord(t *testing.T) {
	preprint := &domain.Record{
		Title:          "Chromatin loops in development",
		DOINorm:        "10.1101/2020.05.01.072777",
		SourceTitle:    "bioRxiv",
		IsPreprint:     true,
		PreprintSource: string(domain.SourceTypeBioRxiv),
	}
	server, ok := DetectPreprint(preprint)
	assert.True(t, ok)
	assert.Equal(t, domain.SourceTypeBioRxiv, server)

	published := domain.NewPublishedVersionRecord(preprint, "https://doi.org/10.1101/gr.275000.120", "10.1101/gr.275000.120")
	server, ok = DetectPreprint(published)
	assert.False(t, ok)
	assert.Empty(t, server)
}
