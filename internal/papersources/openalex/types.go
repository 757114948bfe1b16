// Package openalex provides an abstract adapter for the OpenAlex API.
//
// OpenAlex is a free, open catalog of scholarly papers, authors, venues,
// institutions, and concepts. Abstracts are served as an inverted index
// which the adapter reconstructs into plain text.
//
// API Documentation: https://docs.openalex.org/
package openalex

// Work represents an academic work (paper) in OpenAlex.
type Work struct {
	ID              string      `json:"id"`
	DOI             string      `json:"doi"`
	Title           string      `json:"title"`
	DisplayName     string      `json:"display_name"`
	PublicationDate string      `json:"publication_date"`
	Type            string      `json:"type"`
	OpenAccess      *OpenAccess `json:"open_access"`
	PrimaryLocation *Location   `json:"primary_location"`
	BestOALocation  *Location   `json:"best_oa_location"`
	Locations       []Location  `json:"locations"`
	IDs             IDs         `json:"ids"`
	RelatedWorks    []string    `json:"related_works"`

	// Abstract is stored as an inverted index - we will reconstruct it
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// OpenAccess contains open access information for a work.
type OpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAURL    string `json:"oa_url"`
	OAStatus string `json:"oa_status"`
}

// Location represents where a work is available.
type Location struct {
	Source         *Source `json:"source"`
	LandingPageURL string  `json:"landing_page_url"`
	PDFURL         string  `json:"pdf_url"`
	Version        string  `json:"version"`
	IsOA           bool    `json:"is_oa"`
}

// Source represents a publication venue (journal, repository, etc.).
type Source struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// IDs contains various identifiers for a work.
type IDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
	PMID     string `json:"pmid"`
	PMCID    string `json:"pmcid"`
}
