package scopus

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

func newTestClient(serverURL, apiKey string) *Client {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  100,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
	})
	return NewWithHTTPClient(Config{BaseURL: serverURL, APIKey: apiKey, Enabled: true}, httpClient)
}

func TestClient_HasCredential(t *testing.T) {
	assert.False(t, New(Config{}).HasCredential())
	assert.True(t, New(Config{APIKey: "k"}).HasCredential())
	assert.Equal(t, domain.SourceTypeScopus, New(Config{}).SourceType())
}

func TestClient_Fetch(t *testing.T) {
	t.Run("returns abstract", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/abstract/doi/10.1016/j.cell.2020.01.001", r.URL.Path)
			assert.Equal(t, "els-key", r.Header.Get("X-ELS-APIKey"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Write([]byte(`{"abstracts-retrieval-response": {"coredata": {
				"dc:identifier": "SCOPUS_ID:1",
				"dc:description": "© 2020 Elsevier. Cells divide.",
				"pubmed-id": "999"
			}}}`))
		}))
		defer server.Close()

		res := newTestClient(server.URL, "els-key").Fetch(context.Background(), &domain.Record{DOINorm: "10.1016/j.cell.2020.01.001"})

		require.NoError(t, res.Err)
		assert.Equal(t, "© 2020 Elsevier. Cells divide.", res.Abstract)
		assert.Equal(t, "999", res.Identifiers.PMID)
	})

	t.Run("missing description", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"abstracts-retrieval-response": {"coredata": {}}}`))
		}))
		defer server.Close()

		res := newTestClient(server.URL, "k").Fetch(context.Background(), &domain.Record{DOINorm: "10.1/x"})

		assert.ErrorIs(t, res.Err, domain.ErrNoAbstract)
	})

	t.Run("unauthorized key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		res := newTestClient(server.URL, "bad").Fetch(context.Background(), &domain.Record{DOINorm: "10.1/x"})

		assert.Equal(t, "HTTP 401", papersources.Reason(res.Err))
		assert.NotEmpty(t, res.Raw)
	})

	t.Run("no DOI", func(t *testing.T) {
		res := newTestClient("http://127.0.0.1:1", "k").Fetch(context.Background(), &domain.Record{})
		assert.ErrorIs(t, res.Err, domain.ErrNoDOI)
	})
}
