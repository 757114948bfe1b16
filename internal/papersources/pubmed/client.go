package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed adapter.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	RateLimit float64

	MaxRetries int
	RetryDelay time.Duration

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client implements the papersources.Adapter interface for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new PubMed adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}

	return &Client{
		config:     cfg,
		httpClient: papersources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch resolves the record to a PMID and retrieves its abstract.
// Both requests pass through the PubMed rate limiter.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	pmid := strings.TrimSpace(rec.PMID)
	if pmid == "" && rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	if pmid == "" {
		found, raw, err := c.esearch(ctx, rec.DOINorm)
		if err != nil {
			return papersources.Failure(err, raw)
		}
		if found == "" {
			return papersources.Failure(domain.ErrNoAbstract, raw)
		}
		pmid = found
	}

	fetchURL := c.endpoint("efetch.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"xml"},
		"rettype": {"abstract"},
	})

	body, err := c.httpClient.Get(ctx, c.SourceType(), fetchURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(fetchURL, err))
	}

	raw, _ := json.Marshal(Provenance{PMID: pmid, XML: string(body)})
	res := &papersources.Result{Raw: raw}
	res.Identifiers.PMID = pmid

	var set PubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		res.Err = domain.NewParseError(sourceName, body, err)
		return res
	}
	if len(set.Articles) == 0 {
		res.Err = domain.ErrNoAbstract
		return res
	}

	abstract := extractAbstract(set.Articles[0].MedlineCitation.Article.Abstract)
	if abstract == "" {
		res.Err = domain.ErrNoAbstract
		return res
	}
	res.Abstract = abstract
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// esearch resolves a DOI to the first matching PMID. An empty PMID with a nil
// error means PubMed has no record for the DOI.
func (c *Client) esearch(ctx context.Context, doi string) (string, json.RawMessage, error) {
	searchURL := c.endpoint("esearch.fcgi", url.Values{
		"db":      {"pubmed"},
		"term":    {doi + "[AID]"},
		"retmode": {"xml"},
	})

	body, err := c.httpClient.Get(ctx, c.SourceType(), searchURL, nil)
	if err != nil {
		return "", papersources.Diagnostic(searchURL, err), err
	}
	raw := papersources.WrapText(searchURL, "xml", body)

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return "", raw, domain.NewParseError(sourceName, body, err)
	}
	if len(result.IDList.IDs) == 0 {
		return "", raw, nil
	}
	return strings.TrimSpace(result.IDList.IDs[0]), raw, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.config.BaseURL, "/"), path, q.Encode())
}

// extractAbstract joins the abstract sections, prefixing labeled ones.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := papersources.StripMarkup(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" && len(abstract.AbstractTexts) > 1 {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// ParseArticleSet decodes stored efetch XML.
func ParseArticleSet(data []byte) (*PubmedArticleSet, error) {
	var set PubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}
	return &set, nil
}

// ArticleDOI returns the DOI listed for an article, if any.
func ArticleDOI(article PubmedArticle) string {
	for _, id := range article.PubmedData.ArticleIdList.ArticleIds {
		if strings.EqualFold(id.IdType, "doi") {
			return strings.TrimSpace(id.Value)
		}
	}
	for _, loc := range article.MedlineCitation.Article.ELocationID {
		if strings.EqualFold(loc.EIdType, "doi") {
			return strings.TrimSpace(loc.Value)
		}
	}
	return ""
}
