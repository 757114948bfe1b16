package arxiv

import (
	"context"
	"encoding/xml"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is one request every three seconds, as arXiv asks.
	DefaultRateLimit = 0.33

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the full URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv adapter.
type Config struct {
	// BaseURL is the arXiv API base URL.
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

// Client implements the papersources.Adapter interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Adapter interface.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new arXiv adapter with the given configuration.
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

// NewWithHTTPClient creates a new arXiv adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves arXiv metadata for the record. The arXiv identifier comes
// from the record, or failing that from its DOI.
func (c *Client) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	arxivID := strings.TrimSpace(rec.ArXivID)
	if arxivID == "" {
		arxivID = domain.ExtractArXivID(rec.DOINorm)
	}
	if arxivID == "" {
		return papersources.Failure(domain.ErrNoIdentifier, nil)
	}

	queryURL := strings.TrimRight(c.config.BaseURL, "/") + "/query?id_list=" + url.QueryEscape(arxivID)
	body, err := c.httpClient.Get(ctx, c.SourceType(), queryURL, nil)
	if err != nil {
		return papersources.Failure(err, papersources.Diagnostic(queryURL, err))
	}

	res := &papersources.Result{Raw: papersources.WrapText(queryURL, "xml", body)}
	res.Identifiers.ArXivID = arxivID

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		res.Err = domain.NewParseError(sourceName, body, err)
		return res
	}
	if len(feed.Entries) == 0 || extractArXivID(feed.Entries[0].ID) == "" {
		// arXiv answers unknown ids with an error entry instead of a 404.
		res.Err = domain.NewExternalAPIError(sourceName, 404, "no entry for "+arxivID, domain.ErrNotFound)
		return res
	}

	entry := feed.Entries[0]
	res.Preprint = entryMetadata(&entry)
	res.Abstract = normalizeWhitespace(entry.Summary)
	res.PDFURL = pdfLink(entry.Links)
	if res.Abstract == "" {
		res.Err = domain.ErrNoAbstract
	}
	return res
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// entryMetadata converts an Atom entry into preprint metadata.
func entryMetadata(entry *Entry) *papersources.PreprintMetadata {
	meta := &papersources.PreprintMetadata{
		Title:            normalizeWhitespace(entry.Title),
		PublishedDate:    strings.TrimSpace(entry.Published),
		PublishedJournal: normalizeWhitespace(entry.JournalRef),
	}

	doi := strings.TrimSpace(entry.DOI)
	doiLink := ""
	for _, link := range entry.Links {
		if link.Title == "doi" {
			doiLink = link.Href
			break
		}
	}
	if doi == "" && doiLink != "" {
		doi = domain.DOIFromURL(doiLink)
	}
	if doi != "" {
		meta.PublishedDOI = doi
		meta.PublishedURL = doiLink
		if meta.PublishedURL == "" {
			meta.PublishedURL = "https://doi.org/" + doi
		}
	}
	return meta
}

func pdfLink(links []Link) string {
	for _, link := range links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			return link.Href
		}
	}
	return ""
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
