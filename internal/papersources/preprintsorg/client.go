// Package preprintsorg provides the Preprints.org preprint adapter.
//
// The manuscript endpoint has used several field names for the same data
// over time; the adapter accepts each of them.
package preprintsorg

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default Preprints.org API base URL.
	DefaultBaseURL = "https://www.preprints.org/api"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second
)

// Manuscript is the manuscript lookup response.
type Manuscript struct {
	Title            string `json:"title"`
	Abstract         string `json:"abstract"`
	PublishedDate    string `json:"published_date"`
	DatePublished    string `json:"date_published"`
	PublishedDOI     string `json:"published_doi"`
	PeerReviewedDOI  string `json:"peer_reviewed_doi"`
	PublishedJournal string `json:"published_journal"`
	JournalName      string `json:"journal_name"`
	PublishedURL     string `json:"published_url"`
	FulltextURL      string `json:"fulltext_url"`
	Version          string `json:"version"`
}

// Config holds configuration for the Preprints.org adapter.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	RetryDelay time.Duration
	Enabled    bool
}

// Client implements papersources.Adapter for Preprints.org.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Adapter = (*Client)(nil)

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

// New creates a new Preprints.org adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return NewWithHTTPClient(cfg, papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}))
}

// NewWithHTTPClient creates a new Preprints.org adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch looks the manuscript up by DOI.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	manuscriptURL := strings.TrimRight(c.config.BaseURL, "/") + "/manuscript/doi/" + papersources.EscapeDOIPath(rec.DOINorm)
	body, err := c.httpClient.Get(ctx, c.SourceType(), manuscriptURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(manuscriptURL, err))
	}

	var m Manuscript
	if err := json.Unmarshal(body, &m); err != nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, err), papersources.RawJSON(body))
	}

	res := &papersources.Result{Raw: json.RawMessage(body)}
	res.Preprint = &papersources.PreprintMetadata{
		Title:                strings.TrimSpace(m.Title),
		PublishedDate:        firstNonEmpty(m.PublishedDate, m.DatePublished),
		PublishedFulltextURL: firstNonEmpty(m.PublishedURL, m.FulltextURL),
		Version:              m.Version,
	}
	if doi := firstNonEmpty(m.PublishedDOI, m.PeerReviewedDOI); domain.IsMeaningfulPublishedDOI(doi) {
		res.Preprint.PublishedDOI = doi
		res.Preprint.PublishedURL = "https://doi.org/" + doi
		res.Preprint.PublishedJournal = firstNonEmpty(m.PublishedJournal, m.JournalName)
	}

	res.Abstract = papersources.StripMarkup(m.Abstract)
	if res.Abstract == "" {
		res.Err = domain.ErrNoAbstract
	}
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType { return domain.SourceTypePreprints }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return c.SourceType().DisplayName() }

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool { return c.config.Enabled }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
