// Package europepmc provides an abstract adapter for the Europe PMC REST API.
//
// The adapter searches by DOI with resultType=core, which includes the
// abstract, full-text links and the preprint/publication relationship list.
//
// API Documentation: https://europepmc.org/RestfulWebService
package europepmc

// SearchResponse represents the top-level Europe PMC search API response.
type SearchResponse struct {
	HitCount   int        `json:"hitCount"`
	ResultList ResultList `json:"resultList"`
}

// ResultList wraps the array of article results.
type ResultList struct {
	Result []Article `json:"result"`
}

// Article represents a single article in the Europe PMC response.
type Article struct {
	ID               string           `json:"id"`
	Source           string           `json:"source"` // "MED", "PMC", "PPR"
	PMID             string           `json:"pmid"`
	PMCID            string           `json:"pmcid"`
	DOI              string           `json:"doi"`
	Title            string           `json:"title"`
	AbstractText     string           `json:"abstractText"`
	IsOpenAccess     string           `json:"isOpenAccess"` // "Y"/"N"
	FullTextURLList  FullTextURLList  `json:"fullTextUrlList"`
	RelationshipList RelationshipList `json:"relationshipList"`
}

// FullTextURLList lists the full-text locations of an article.
type FullTextURLList struct {
	FullTextURL []FullTextURL `json:"fullTextUrl"`
}

// FullTextURL is one full-text location.
type FullTextURL struct {
	Availability  string `json:"availability"`
	DocumentStyle string `json:"documentStyle"` // "pdf", "html", "doi"
	Site          string `json:"site"`
	URL           string `json:"url"`
}

// RelationshipList holds links between a preprint and its other versions.
type RelationshipList struct {
	Relationship []Relationship `json:"relationship"`
}

// Relationship is one version link reported by Europe PMC.
type Relationship struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	DOI  string `json:"doi"`
}
