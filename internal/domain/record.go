// Package domain provides domain models for the enrichment service.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author represents a record author with optional affiliation and ORCID.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	if a.ORCID != "" {
		sb.WriteString(" [")
		sb.WriteString(a.ORCID)
		sb.WriteString("]")
	}

	return sb.String()
}

// Provenance maps a source key to the raw payload that source returned.
// Entries are replaced per key and never removed.
type Provenance map[string]json.RawMessage

// Set stores raw under key. A nil payload is stored as an empty object so the
// attempt remains visible.
func (p Provenance) Set(key string, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	p[key] = raw
}

// Merge copies every entry of other into p, replacing entries with the same key.
func (p Provenance) Merge(other Provenance) {
	for k, v := range other {
		p[k] = v
	}
}

// Record is a bibliographic article tracked by the enrichment service.
type Record struct {
	ID          uuid.UUID
	Title       string
	DOIRaw      string
	DOINorm     string
	PubDate     string
	Authors     []Author
	SourceTitle string

	// External identifiers discovered at import or by enrichment sources.
	ArXivID    string
	PMID       string
	OpenAlexID string
	S2PaperID  string

	AbstractText              string
	AbstractSource            string
	AbstractNoRetrievalReason string

	IsOA     *bool
	OAStatus string
	License  string
	OAPDFURL string

	IsPreprint     bool
	PreprintSource string

	PublishedDOI         string
	PublishedJournal     string
	PublishedURL         string
	PublishedFulltextURL string

	Provenance       Provenance
	EnrichmentReport *EnrichmentReport

	ImportedAt time.Time
	EnrichedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsPersisted reports whether the record has been assigned an identity.
func (r *Record) IsPersisted() bool {
	return r.ID != uuid.Nil
}

// HasAbstract reports whether an abstract has been retrieved.
func (r *Record) HasAbstract() bool {
	return strings.TrimSpace(r.AbstractText) != ""
}

// SetAbstract assigns the abstract only if none is present.
// It returns true when the abstract was assigned.
func (r *Record) SetAbstract(text, source string) bool {
	text = strings.TrimSpace(text)
	if text == "" || r.HasAbstract() {
		return false
	}
	r.AbstractText = text
	r.AbstractSource = source
	return true
}

// EnsureProvenance initializes the provenance map if needed and returns it.
func (r *Record) EnsureProvenance() Provenance {
	if r.Provenance == nil {
		r.Provenance = make(Provenance)
	}
	return r.Provenance
}

// NewPublishedVersionRecord builds the minimal record for a published version
// discovered from preprint. Only title, authors and publication date are
// inherited; everything else is left for a later enrichment pass.
func NewPublishedVersionRecord(preprint *Record, publishedDOIRaw, publishedDOINorm string) *Record {
	authors := make([]Author, len(preprint.Authors))
	copy(authors, preprint.Authors)

	return &Record{
		Title:      preprint.Title,
		DOIRaw:     publishedDOIRaw,
		DOINorm:    publishedDOINorm,
		PubDate:    preprint.PubDate,
		Authors:    authors,
		IsPreprint: false,
		Provenance: make(Provenance),
		ImportedAt: time.Now().UTC(),
	}
}
