package papersources

import (
	"context"
	"encoding/json"

	"github.com/helixir/enrichment-service/internal/domain"
)

// Adapter defines the interface every external metadata provider implements.
//
// Fetch must not return a nil Result. Expected failure modes (missing
// identifier, non-2xx HTTP, malformed payload) are reported through
// Result.Err; Fetch itself never panics for them. A record lacking the
// identifier the provider is keyed on must yield Result.Err set to
// domain.ErrNoDOI or domain.ErrNoIdentifier without any network call.
//
// Example usage:
//
//	adapter := crossref.New(crossref.Config{Email: "ops@example.org"})
//	res := adapter.Fetch(ctx, rec)
//	if res.Err == nil && res.Abstract != "" {
//		rec.SetAbstract(res.Abstract, string(adapter.SourceType()))
//	}
type Adapter interface {
	// Fetch queries the provider for rec and returns the parsed fields
	// together with the raw payload kept as provenance.
	Fetch(ctx context.Context, rec *domain.Record) *Result

	// SourceType returns the provider key, which is also its provenance key.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logs and reports.
	Name() string

	// IsEnabled returns whether this provider is enabled by configuration.
	IsEnabled() bool
}

// CredentialedAdapter is implemented by adapters that need an auxiliary
// credential (API key, contact email). Callers check HasCredential before
// invoking Fetch and record a skip instead of a failure when it is false.
type CredentialedAdapter interface {
	Adapter
	HasCredential() bool
}

// Result is the outcome of one adapter call.
type Result struct {
	// Abstract is the plain-text abstract, empty when none was found.
	Abstract string

	// Raw is the verbatim payload (or diagnostic context on failure) kept
	// under the adapter's provenance key.
	Raw json.RawMessage

	// Err is nil on success and otherwise classifies the failure.
	Err error

	// PDFURL is an open-access PDF location offered by the provider, if any.
	PDFURL string

	// Identifiers carries external identifiers the provider reported.
	Identifiers Identifiers

	// Preprint is populated by preprint-server adapters.
	Preprint *PreprintMetadata

	// OpenAccess is populated by the open-access adapter.
	OpenAccess *OpenAccessInfo
}

// Identifiers holds external identifiers discovered by a provider.
type Identifiers struct {
	PMID       string
	OpenAlexID string
	S2PaperID  string
	ArXivID    string
}

// PreprintMetadata is what a preprint server reports about a preprint.
type PreprintMetadata struct {
	Title                string
	PublishedDate        string
	PublishedDOI         string
	PublishedJournal     string
	PublishedURL         string
	PublishedFulltextURL string
	Version              string
}

// OpenAccessInfo is the open-access status of a work.
type OpenAccessInfo struct {
	IsOA     bool
	OAStatus string
	License  string
	PDFURL   string
}

// Failure builds a failed Result.
func Failure(err error, raw json.RawMessage) *Result {
	return &Result{Err: err, Raw: raw}
}

// HasAbstract reports whether the result carries a non-empty abstract.
func (r *Result) HasAbstract() bool {
	return r != nil && r.Err == nil && r.Abstract != ""
}

// ApplyTo copies the identifiers a provider reported onto rec without
// overwriting values already present.
func (ids Identifiers) ApplyTo(rec *domain.Record) {
	if rec.PMID == "" {
		rec.PMID = ids.PMID
	}
	if rec.OpenAlexID == "" {
		rec.OpenAlexID = ids.OpenAlexID
	}
	if rec.S2PaperID == "" {
		rec.S2PaperID = ids.S2PaperID
	}
	if rec.ArXivID == "" {
		rec.ArXivID = ids.ArXivID
	}
}
