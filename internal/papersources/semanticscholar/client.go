package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit in calls per second.
	DefaultRateLimit = 5.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "title,abstract,externalIds,openAccessPdf"
)

// Config contains configuration options for the Semantic Scholar adapter.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is required; the adapter is skipped without it.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// MaxRetries caps retries of transient failures.
	MaxRetries int

	// RetryDelay is the initial retry backoff.
	RetryDelay time.Duration

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// Client implements papersources.Adapter for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time check that Client implements papersources.CredentialedAdapter.
var _ papersources.CredentialedAdapter = (*Client)(nil)

// NewClient creates a new Semantic Scholar adapter with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
			RetryDelay:   cfg.RetryDelay,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Fetch looks the record up by DOI and returns its abstract, open access PDF
// and external identifiers.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	paperURL := fmt.Sprintf("%s/paper/DOI:%s?fields=%s",
		strings.TrimRight(c.config.BaseURL, "/"), papersources.EscapeDOIPath(rec.DOINorm), paperFields)

	body, err := c.httpClient.Get(ctx, c.SourceType(), paperURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(paperURL, err))
	}

	var paper PaperResult
	if err := json.Unmarshal(body, &paper); err != nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, err), papersources.RawJSON(body))
	}

	res := &papersources.Result{Raw: json.RawMessage(body)}
	res.Identifiers.S2PaperID = paper.PaperID
	if paper.ExternalIDs != nil {
		res.Identifiers.PMID = paper.ExternalIDs.PubMed
		res.Identifiers.ArXivID = paper.ExternalIDs.ArXiv
	}
	if paper.OpenAccessPDF != nil {
		res.PDFURL = paper.OpenAccessPDF.URL
	}

	if paper.Abstract == nil || strings.TrimSpace(*paper.Abstract) == "" {
		res.Err = domain.ErrNoAbstract
		return res
	}
	res.Abstract = strings.TrimSpace(*paper.Abstract)
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return c.SourceType().DisplayName()
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.config.APIKey != ""
}
