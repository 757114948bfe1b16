// Package biorxiv provides the bioRxiv and medRxiv preprint adapter.
//
// Both servers share the api.biorxiv.org details endpoint; the adapter is
// configured with the server name it queries. The details of the latest
// version carry the published DOI and journal once the preprint has been
// published ("NA" otherwise).
//
// API Documentation: https://api.biorxiv.org/
package biorxiv

// DetailsResponse is the response of /details/{server}/{doi}.
type DetailsResponse struct {
	Messages   []Message `json:"messages"`
	Collection []Item    `json:"collection"`
}

// Message is a status message of the details endpoint.
type Message struct {
	Status string `json:"status"`
}

// Item is one version of a preprint.
type Item struct {
	DOI              string `json:"doi"`
	Title            string `json:"title"`
	Authors          string `json:"authors"`
	Date             string `json:"date"`
	Version          string `json:"version"`
	Category         string `json:"category"`
	Abstract         string `json:"abstract"`
	Published        string `json:"published"`
	PublishedJournal string `json:"published_journal"`
	Journal          string `json:"journal"`
	Server           string `json:"server"`
}
