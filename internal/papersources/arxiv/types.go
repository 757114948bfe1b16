// Package arxiv provides the arXiv preprint adapter.
//
// The adapter queries the export.arxiv.org Atom API by arXiv identifier and
// reports the abstract together with the journal DOI and reference that
// authors add once the work is published.
//
// API Documentation: https://info.arxiv.org/help/api/index.html
package arxiv

import "encoding/xml"

// Feed represents the Atom XML response from the arXiv API.
type Feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []Entry  `xml:"entry"`
}

// Entry represents a single arXiv paper in the Atom feed.
type Entry struct {
	ID         string `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title      string `xml:"title"`
	Summary    string `xml:"summary"`   // abstract
	Published  string `xml:"published"` // "2023-01-15T18:30:00Z"
	Updated    string `xml:"updated"`
	Links      []Link `xml:"link"`
	DOI        string `xml:"doi"`         // arxiv:doi, set once published
	JournalRef string `xml:"journal_ref"` // arxiv:journal_ref
	Comment    string `xml:"comment"`
}

// Link represents a link element in the Atom feed.
type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
