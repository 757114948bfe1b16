package pubmed

import (
	"context"
	"encoding/json"
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

// Sample XML responses for testing.
const esearchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE eSearchResult PUBLIC "-//NLM//DTD esearch 20060628//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20060628/esearch.dtd">
<eSearchResult>
	<Count>1</Count>
	<IdList>
		<Id>12345678</Id>
	</IdList>
</eSearchResult>`

const esearchEmptyResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<IdList>
	</IdList>
</eSearchResult>`

const efetchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">12345678</PMID>
			<Article PubModel="Print-Electronic">
				<ArticleTitle>CRISPR-Cas9 Gene Editing in Biomedical Research</ArticleTitle>
				<ELocationID EIdType="doi" ValidYN="Y">10.1234/test.2023.001</ELocationID>
				<Abstract>
					<AbstractText Label="BACKGROUND" NlmCategory="BACKGROUND">Gene editing has <i>revolutionized</i> research.</AbstractText>
					<AbstractText Label="RESULTS" NlmCategory="RESULTS">It works.</AbstractText>
				</Abstract>
			</Article>
			<CommentsCorrectionsList>
				<CommentsCorrections RefType="UpdateOf">
					<RefSource>bioRxiv. 2022 Jan 1</RefSource>
					<PMID Version="1">11111111</PMID>
				</CommentsCorrections>
			</CommentsCorrectionsList>
		</MedlineCitation>
		<PubmedData>
			<ArticleIdList>
				<ArticleId IdType="pubmed">12345678</ArticleId>
				<ArticleId IdType="doi">10.1234/test.2023.001</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

const efetchNoAbstractXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation><PMID>12345678</PMID><Article><ArticleTitle>Letter</ArticleTitle></Article></MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

func newTestClient(serverURL, apiKey string) *Client {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  100,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
	})
	return NewWithHTTPClient(Config{BaseURL: serverURL, APIKey: apiKey, Enabled: true}, httpClient)
}

func TestClient_Fetch(t *testing.T) {
	t.Run("resolves DOI then fetches abstract", func(t *testing.T) {
		var searches, fetches atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
			switch r.URL.Path {
			case "/esearch.fcgi":
				searches.Add(1)
				assert.Equal(t, "10.1234/test.2023.001[AID]", r.URL.Query().Get("term"))
				w.Write([]byte(esearchResponseXML))
			case "/efetch.fcgi":
				fetches.Add(1)
				assert.Equal(t, "12345678", r.URL.Query().Get("id"))
				w.Write([]byte(efetchResponseXML))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		res := newTestClient(server.URL, "secret").Fetch(context.Background(), &domain.Record{DOINorm: "10.1234/test.2023.001"})

		require.NoError(t, res.Err)
		assert.Equal(t, "BACKGROUND: Gene editing has revolutionized research. RESULTS: It works.", res.Abstract)
		assert.Equal(t, "12345678", res.Identifiers.PMID)
		assert.Equal(t, int32(1), searches.Load())
		assert.Equal(t, int32(1), fetches.Load())

		var prov Provenance
		require.NoError(t, json.Unmarshal(res.Raw, &prov))
		assert.Equal(t, "12345678", prov.PMID)
		assert.Contains(t, prov.XML, "CommentsCorrectionsList")
	})

	t.Run("known PMID skips esearch", func(t *testing.T) {
		var searches atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/esearch.fcgi" {
				searches.Add(1)
			}
			w.Write([]byte(efetchResponseXML))
		}))
		defer server.Close()

		res := newTestClient(server.URL, "").Fetch(context.Background(), &domain.Record{PMID: "12345678"})

		require.NoError(t, res.Err)
		assert.Equal(t, int32(0), searches.Load())
	})

	t.Run("DOI unknown to PubMed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(esearchEmptyResponseXML))
		}))
		defer server.Close()

		res := newTestClient(server.URL, "").Fetch(context.Background(), &domain.Record{DOINorm: "10.1/x"})

		assert.ErrorIs(t, res.Err, domain.ErrNoAbstract)
		assert.Contains(t, string(res.Raw), "eSearchResult")
	})

	t.Run("article without abstract", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(efetchNoAbstractXML))
		}))
		defer server.Close()

		res := newTestClient(server.URL, "").Fetch(context.Background(), &domain.Record{PMID: "12345678"})

		assert.ErrorIs(t, res.Err, domain.ErrNoAbstract)
		assert.Equal(t, "12345678", res.Identifiers.PMID)
	})

	t.Run("malformed XML", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<PubmedArticleSet><PubmedArticle>`))
		}))
		defer server.Close()

		res := newTestClient(server.URL, "").Fetch(context.Background(), &domain.Record{PMID: "1"})

		assert.Equal(t, "malformed response", papersources.Reason(res.Err))
	})

	t.Run("no identifiers makes no request", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		res := newTestClient(server.URL, "").Fetch(context.Background(), &domain.Record{})

		assert.ErrorIs(t, res.Err, domain.ErrNoDOI)
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestParseArticleSetAndDOI(t *testing.T) {
	set, err := ParseArticleSet([]byte(efetchResponseXML))
	require.NoError(t, err)
	require.Len(t, set.Articles, 1)

	article := set.Articles[0]
	assert.Equal(t, "10.1234/test.2023.001", ArticleDOI(article))
	require.NotNil(t, article.MedlineCitation.CommentsCorrectionsList)
	assert.Equal(t, "UpdateOf", article.MedlineCitation.CommentsCorrectionsList.CommentsCorrections[0].RefType)

	_, err = ParseArticleSet([]byte("<broken"))
	assert.Error(t, err)
}
