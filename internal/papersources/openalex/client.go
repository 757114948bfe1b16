package openalex

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"
)

// Config holds configuration for the OpenAlex adapter.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

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

// Client implements the papersources.Adapter interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Adapter interface.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new OpenAlex adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	ua := papersources.DefaultUserAgent
	if cfg.Email != "" {
		ua += " (mailto:" + cfg.Email + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		UserAgent:  ua,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves the OpenAlex work for the record's DOI.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}

	workURL := c.workURL(rec.DOINorm)
	body, err := c.httpClient.Get(ctx, c.SourceType(), workURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(workURL, err))
	}

	var work Work
	if err := json.Unmarshal(body, &work); err != nil {
		return papersources.Failure(domain.NewParseError(c.Name(), body, err), papersources.RawJSON(body))
	}

	res := &papersources.Result{Raw: json.RawMessage(body)}
	res.Identifiers.OpenAlexID = normalizeOpenAlexID(work.ID)
	res.Identifiers.PMID = normalizePMID(work.IDs.PMID)
	if work.BestOALocation != nil {
		res.PDFURL = work.BestOALocation.PDFURL
	}

	abstract := reconstructAbstract(work.AbstractInvertedIndex)
	if abstract == "" {
		res.Err = domain.ErrNoAbstract
		return res
	}
	res.Abstract = abstract
	return res
}

// SourceType returns the source type for OpenAlex.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name of this source.
func (c *Client) Name() string {
	return "OpenAlex"
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) workURL(doi string) string {
	u := strings.TrimRight(c.config.BaseURL, "/") + "/works/doi:" + papersources.EscapeDOIPath(doi)
	if c.config.Email != "" {
		u += "?mailto=" + url.QueryEscape(c.config.Email)
	}
	return u
}

// normalizeOpenAlexID extracts the short ID from full OpenAlex URLs.
func normalizeOpenAlexID(id string) string {
	if id == "" {
		return ""
	}
	id = strings.TrimPrefix(id, openAlexIDPrefix)
	return strings.TrimSpace(id)
}

// normalizePMID strips any URL prefixes from PubMed IDs.
func normalizePMID(pmid string) string {
	if pmid == "" {
		return ""
	}
	pmid = strings.TrimPrefix(pmid, "https://pubmed.ncbi.nlm.nih.gov/")
	return strings.Trim(strings.TrimSpace(pmid), "/")
}

// reconstructAbstract reconstructs the abstract text from OpenAlex's inverted index format.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if totalPairs == 0 || totalPairs > maxAbstractWords {
		return ""
	}
	pairs := make([]posWord, 0, totalPairs)

	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}

	return strings.TrimSpace(builder.String())
}
