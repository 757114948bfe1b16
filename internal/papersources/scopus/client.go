package scopus

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default Scopus API base URL.
	DefaultBaseURL = "https://api.elsevier.com/content"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// apiKeyHeader is the HTTP header name for the Scopus API key.
	apiKeyHeader = "X-ELS-APIKey"

	// sourceName is the human-readable name for this source.
	sourceName = "Scopus"
)

// Config holds configuration for the Scopus adapter.
type Config struct {
	// BaseURL is the Scopus API base URL.
	BaseURL string

	// APIKey is the Elsevier API key for authentication.
	// Required for all Scopus API requests; without it the adapter is skipped.
	APIKey string

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

// Client implements papersources.CredentialedAdapter for Scopus.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements CredentialedAdapter interface.
var _ papersources.CredentialedAdapter = (*Client)(nil)

// New creates a new Scopus adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new Scopus adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves the Scopus abstract for the record's DOI.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	abstractURL := strings.TrimRight(c.config.BaseURL, "/") + "/abstract/doi/" + papersources.EscapeDOIPath(rec.DOINorm)
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set(apiKeyHeader, c.config.APIKey)

	body, err := c.httpClient.Get(ctx, c.SourceType(), abstractURL, header)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(abstractURL, err))
	}

	var resp AbstractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return papersources.Failure(domain.NewParseError(sourceName, body, err), papersources.RawJSON(body))
	}

	core := resp.Retrieval.Coredata
	res := &papersources.Result{Raw: json.RawMessage(body)}
	res.Identifiers.PMID = strings.TrimSpace(core.PubMedID)

	abstract := papersources.StripMarkup(core.Description)
	if abstract == "" {
		res.Err = domain.ErrNoAbstract
		return res
	}
	res.Abstract = abstract
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeScopus
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// HasCredential reports whether an Elsevier API key is configured.
func (c *Client) HasCredential() bool {
	return c.config.APIKey != ""
}
