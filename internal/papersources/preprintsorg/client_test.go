package preprintsorg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

func newTestClient(serverURL string) *Client {
	return NewWithHTTPClient(Config{BaseURL: serverURL, Enabled: true}, papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  100,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
	}))
}

func TestClient_Fetch(t *testing.T) {
	t.Run("alternate field names", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/manuscript/doi/10.20944/preprints202001.0001.v1", r.URL.Path)
			w.Write([]byte(`{
				"title": "Soil carbon",
				"abstract": "<p>Soil stores carbon.</p>",
				"date_published": "2020-01-02",
				"peer_reviewed_doi": "10.3390/su12010001",
				"journal_name": "Sustainability",
				"fulltext_url": "https://www.mdpi.com/2071-1050/12/1/1",
				"version": "1"
			}`))
		}))
		defer server.Close()

		res := newTestClient(server.URL).Fetch(context.Background(), &domain.Record{DOINorm: "10.20944/preprints202001.0001.v1"})

		require.NoError(t, res.Err)
		assert.Equal(t, "Soil stores carbon.", res.Abstract)
		require.NotNil(t, res.Preprint)
		assert.Equal(t, "10.3390/su12010001", res.Preprint.PublishedDOI)
		assert.Equal(t, "Sustainability", res.Preprint.PublishedJournal)
		assert.Equal(t, "2020-01-02", res.Preprint.PublishedDate)
		assert.Equal(t, "https://www.mdpi.com/2071-1050/12/1/1", res.Preprint.PublishedFulltextURL)
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		res := newTestClient(server.URL).Fetch(context.Background(), &domain.Record{DOINorm: "10.20944/x"})

		assert.ErrorIs(t, res.Err, domain.ErrNotFound)
		assert.Nil(t, res.Preprint)
	})

	t.Run("no DOI", func(t *testing.T) {
		res := newTestClient("http://127.0.0.1:1").Fetch(context.Background(), &domain.Record{})
		assert.ErrorIs(t, res.Err, domain.ErrNoDOI)
	})
}
