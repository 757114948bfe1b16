package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default Europe PMC API base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// Config holds configuration for the Europe PMC adapter.
type Config struct {
	// BaseURL is the Europe PMC API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	MaxRetries int
	RetryDelay time.Duration

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
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

// Client implements papersources.Adapter for Europe PMC.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Adapter = (*Client)(nil)

// New creates a new Europe PMC adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return NewWithHTTPClient(cfg, papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}))
}

// NewWithHTTPClient creates a new Europe PMC adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch searches Europe PMC by DOI and returns the first hit's abstract.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	searchURL, err := c.buildSearchURL(rec.DOINorm)
	if err != nil {
		return papersources.Failure(err, nil)
	}

	body, err := c.httpClient.Get(ctx, c.SourceType(), searchURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(searchURL, err))
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, err), papersources.RawJSON(body))
	}

	res := &papersources.Result{Raw: json.RawMessage(body)}
	if len(resp.ResultList.Result) == 0 {
		res.Err = domain.ErrNoAbstract
		return res
	}

	article := resp.ResultList.Result[0]
	res.Identifiers.PMID = strings.TrimSpace(article.PMID)
	res.PDFURL = openAccessPDF(article.FullTextURLList.FullTextURL)

	abstract := papersources.StripMarkup(article.AbstractText)
	if abstract == "" {
		res.Err = domain.ErrNoAbstract
		return res
	}
	res.Abstract = abstract
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeEuropePMC
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "EuropePMC"
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the Europe PMC search API URL for a DOI lookup.
func (c *Client) buildSearchURL(doi string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search"

	query := url.Values{}
	query.Set("query", fmt.Sprintf(`DOI:"%s"`, doi))
	query.Set("format", "json")
	query.Set("resultType", "core")
	query.Set("pageSize", "1")
	baseURL.RawQuery = query.Encode()

	return baseURL.String(), nil
}

// openAccessPDF picks the first open PDF location.
func openAccessPDF(urls []FullTextURL) string {
	for _, u := range urls {
		if strings.EqualFold(u.DocumentStyle, "pdf") && !strings.EqualFold(u.Availability, "Subscription required") {
			return u.URL
		}
	}
	return ""
}
