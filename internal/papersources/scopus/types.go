// Package scopus provides an abstract adapter for the Elsevier Scopus
// Abstract Retrieval API. An Elsevier API key is required.
//
// API Documentation: https://dev.elsevier.com/documentation/AbstractRetrievalAPI.wadl
package scopus

// AbstractResponse is the top-level Abstract Retrieval API response.
type AbstractResponse struct {
	Retrieval Retrieval `json:"abstracts-retrieval-response"`
}

// Retrieval wraps the core document data.
type Retrieval struct {
	Coredata Coredata `json:"coredata"`
}

// Coredata holds the document metadata the adapter reads.
type Coredata struct {
	Identifier      string `json:"dc:identifier"` // "SCOPUS_ID:85012345678"
	EID             string `json:"eid"`
	DOI             string `json:"prism:doi"`
	Title           string `json:"dc:title"`
	Description     string `json:"dc:description"` // abstract
	PublicationName string `json:"prism:publicationName"`
	PubMedID        string `json:"pubmed-id"`
	OpenAccess      string `json:"openaccess"` // "0" or "1"
}
