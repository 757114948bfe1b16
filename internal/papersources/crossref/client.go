package crossref

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
	// DefaultBaseURL is the default base URL for the Crossref REST API.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit in calls per second.
	DefaultRateLimit = 1.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second
)

// Config contains configuration options for the Crossref adapter.
type Config struct {
	// BaseURL defaults to DefaultBaseURL if empty.
	BaseURL string

	// Email, when set, is sent as mailto to join the polite pool.
	Email string

	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	RetryDelay time.Duration
	Enabled    bool
}

// Client implements papersources.Adapter for Crossref.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

var _ papersources.Adapter = (*Client)(nil)

// NewClient creates a new Crossref adapter.
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
		ua := papersources.DefaultUserAgent
		if cfg.Email != "" {
			ua = fmt.Sprintf("%s (mailto:%s)", ua, cfg.Email)
		}
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			UserAgent:  ua,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Fetch retrieves the Crossref work for the record's DOI.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	workURL := fmt.Sprintf("%s/works/%s", strings.TrimRight(c.config.BaseURL, "/"), papersources.EscapeDOIPath(rec.DOINorm))
	if c.config.Email != "" {
		workURL += "?mailto=" + url.QueryEscape(c.config.Email)
	}

	body, err := c.httpClient.Get(ctx, c.SourceType(), workURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(workURL, err))
	}

	var resp WorkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, err), papersources.RawJSON(body))
	}

	res := &papersources.Result{Raw: json.RawMessage(body)}
	for _, link := range resp.Message.Link {
		if link.ContentType == "application/pdf" {
			res.PDFURL = link.URL
			break
		}
	}

	abstract := CleanJATS(resp.Message.Abstract)
	if abstract == "" {
		res.Err = domain.ErrNoAbstract
		return res
	}
	res.Abstract = abstract
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCrossref
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return c.SourceType().DisplayName()
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// CleanJATS strips JATS markup from a Crossref abstract and collapses whitespace.
// A leading <jats:title> heading ("Abstract") is dropped.
func CleanJATS(fragment string) string {
	return papersources.StripMarkup(fragment, "jats:title")
}
