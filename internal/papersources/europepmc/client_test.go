package europepmc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

func newTestClient(serverURL string) *Client {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  100,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
	})
	return NewWithHTTPClient(Config{BaseURL: serverURL, Enabled: true}, httpClient)
}

const sampleResponse = `{
	"hitCount": 1,
	"resultList": {"result": [{
		"id": "36000000",
		"source": "MED",
		"pmid": "36000000",
		"doi": "10.1101/2020.01.01.000001",
		"abstractText": "<h4>Background</h4>Preprints <i>matter</i>.",
		"fullTextUrlList": {"fullTextUrl": [
			{"availability": "Subscription required", "documentStyle": "pdf", "url": "https://paywall.example/a.pdf"},
			{"availability": "Open access", "documentStyle": "pdf", "url": "https://europepmc.org/a.pdf"}
		]},
		"relationshipList": {"relationship": [{"type": "published_version", "doi": "10.1038/s41586-020-0001-1"}]}
	}]}
}`

func TestClient_Fetch(t *testing.T) {
	t.Run("returns first hit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, `DOI:"10.1101/2020.01.01.000001"`, r.URL.Query().Get("query"))
			assert.Equal(t, "core", r.URL.Query().Get("resultType"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			w.Write([]byte(sampleResponse))
		}))
		defer server.Close()

		res := newTestClient(server.URL).Fetch(context.Background(), &domain.Record{DOINorm: "10.1101/2020.01.01.000001"})

		require.NoError(t, res.Err)
		assert.Equal(t, "Background Preprints matter.", res.Abstract)
		assert.Equal(t, "36000000", res.Identifiers.PMID)
		assert.Equal(t, "https://europepmc.org/a.pdf", res.PDFURL)
		assert.Contains(t, string(res.Raw), "relationshipList")
	})

	t.Run("no hits", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"hitCount": 0, "resultList": {"result": []}}`))
		}))
		defer server.Close()

		res := newTestClient(server.URL).Fetch(context.Background(), &domain.Record{DOINorm: "10.1/x"})

		assert.ErrorIs(t, res.Err, domain.ErrNoAbstract)
		assert.NotEmpty(t, res.Raw)
	})

	t.Run("no DOI makes no request", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		res := newTestClient(server.URL).Fetch(context.Background(), &domain.Record{})

		assert.ErrorIs(t, res.Err, domain.ErrNoDOI)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("terminal status is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		res := newTestClient(server.URL).Fetch(context.Background(), &domain.Record{DOINorm: "10.1/x"})

		assert.Equal(t, "HTTP 400", papersources.Reason(res.Err))
		assert.Equal(t, int32(1), calls.Load())
	})
}
