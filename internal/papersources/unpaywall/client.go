// Package unpaywall provides the open-access adapter backed by the Unpaywall API.
//
// Unpaywall requires a contact email on every request; without one the
// adapter reports itself as lacking a credential.
//
// API Documentation: https://unpaywall.org/products/api
package unpaywall

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default Unpaywall API base URL.
	DefaultBaseURL = "https://api.unpaywall.org/v2"

	// DefaultRateLimit is the default rate limit (5 requests per second).
	DefaultRateLimit = 5.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// Work is the subset of the Unpaywall DOI object the adapter reads.
type Work struct {
	DOI            string    `json:"doi"`
	IsOA           *bool     `json:"is_oa"`
	OAStatus       string    `json:"oa_status"`
	BestOALocation *Location `json:"best_oa_location"`
}

// Location is an open-access copy of a work.
type Location struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
	License   string `json:"license"`
	Version   string `json:"version"`
	HostType  string `json:"host_type"`
}

// Config holds configuration for the Unpaywall adapter.
type Config struct {
	BaseURL string

	// Email is the contact address Unpaywall requires.
	Email string

	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	RetryDelay time.Duration
	Enabled    bool
}

// Client implements papersources.CredentialedAdapter for Unpaywall.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.CredentialedAdapter = (*Client)(nil)

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

// New creates a new Unpaywall adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return NewWithHTTPClient(cfg, papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		UserAgent:  papersources.DefaultUserAgent + " (mailto:" + cfg.Email + ")",
	}))
}

// NewWithHTTPClient creates a new Unpaywall adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves the open-access status of the record's DOI.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	workURL := strings.TrimRight(c.config.BaseURL, "/") + "/" + papersources.EscapeDOIPath(rec.DOINorm) +
		"?email=" + url.QueryEscape(c.config.Email)

	body, err := c.httpClient.Get(ctx, c.SourceType(), workURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(workURL, err))
	}

	var work Work
	if err := json.Unmarshal(body, &work); err != nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, err), papersources.RawJSON(body))
	}
	if work.IsOA == nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, errMissingIsOA), json.RawMessage(body))
	}

	info := &papersources.OpenAccessInfo{
		IsOA:     *work.IsOA,
		OAStatus: work.OAStatus,
	}
	if work.BestOALocation != nil {
		info.License = work.BestOALocation.License
		info.PDFURL = work.BestOALocation.URLForPDF
	}

	return &papersources.Result{
		Raw:        json.RawMessage(body),
		OpenAccess: info,
		PDFURL:     info.PDFURL,
	}
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType { return domain.SourceTypeUnpaywall }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return "Unpaywall" }

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool { return c.config.Enabled }

// HasCredential reports whether a contact email is configured.
func (c *Client) HasCredential() bool { return c.config.Email != "" }
