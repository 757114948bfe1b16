// Package crossref provides an abstract adapter for the Crossref REST API.
//
// Crossref returns abstracts as JATS XML fragments; the adapter strips the
// markup and collapses whitespace. The adapter also reports a PDF link when
// the work metadata lists one.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorkResponse is the envelope of the /works/{doi} endpoint.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work is the subset of Crossref work metadata the adapter reads.
type Work struct {
	DOI      string    `json:"DOI"`
	Abstract string    `json:"abstract"`
	Link     []Link    `json:"link"`
	Relation Relations `json:"relation"`
}

// Link is a full-text link of a work.
type Link struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}

// Relations maps a relation type ("is-preprint-of", "has-version") to its targets.
type Relations map[string][]RelatedItem

// RelatedItem is one target of a Crossref relation.
type RelatedItem struct {
	IDType     string `json:"id-type"`
	ID         string `json:"id"`
	AssertedBy string `json:"asserted-by"`
	Type       string `json:"type,omitempty"`
}
