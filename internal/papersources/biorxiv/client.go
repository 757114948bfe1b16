package biorxiv

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
	// DefaultBaseURL is the default bioRxiv/medRxiv API base URL.
	DefaultBaseURL = "https://api.biorxiv.org"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second
)

// Config holds configuration for the bioRxiv/medRxiv adapter.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// Server is the preprint server path segment ("biorxiv" or "medrxiv").
	Server string

	// SourceType is the domain source type (SourceTypeBioRxiv or SourceTypeMedRxiv).
	SourceType domain.SourceType

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// Limiter lets the bioRxiv and medRxiv adapters share one schedule,
	// since both hit the same host.
	Limiter *papersources.RateLimiter

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
	if c.SourceType == "" {
		c.SourceType = domain.SourceTypeBioRxiv
	}
	if c.Server == "" {
		c.Server = string(c.SourceType)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client implements the papersources.Adapter interface for bioRxiv/medRxiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Adapter interface.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new bioRxiv/medRxiv adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		Limiter:    cfg.Limiter,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new bioRxiv/medRxiv adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves the preprint details for the record's DOI.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	detailsURL := fmt.Sprintf("%s/details/%s/%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.Server, papersources.EscapeDOIPath(rec.DOINorm))

	body, err := c.httpClient.Get(ctx, c.SourceType(), detailsURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(detailsURL, err))
	}

	var resp DetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, err), papersources.RawJSON(body))
	}

	res := &papersources.Result{Raw: json.RawMessage(body)}
	if len(resp.Collection) == 0 {
		res.Err = domain.NewExternalAPIError(c.Name(), 404, "no results for "+rec.DOINorm, domain.ErrNotFound)
		return res
	}

	item := resp.Collection[0]
	res.Preprint = itemMetadata(item)
	res.Abstract = papersources.StripMarkup(item.Abstract)
	if res.Abstract == "" {
		res.Err = domain.ErrNoAbstract
	}
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return c.config.SourceType
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return c.config.SourceType.DisplayName()
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func itemMetadata(item Item) *papersources.PreprintMetadata {
	meta := &papersources.PreprintMetadata{
		Title:         strings.TrimSpace(item.Title),
		PublishedDate: item.Date,
		Version:       item.Version,
	}

	published := strings.TrimSpace(item.Published)
	if domain.IsMeaningfulPublishedDOI(published) {
		meta.PublishedDOI = published
		meta.PublishedURL = "https://doi.org/" + published
		meta.PublishedJournal = item.PublishedJournal
		if meta.PublishedJournal == "" {
			meta.PublishedJournal = item.Journal
		}
	}
	return meta
}
