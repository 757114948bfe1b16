package domain

// SourceType identifies an external metadata provider. The value is also the
// provenance key under which the provider's raw payload is stored.
type SourceType string

const (
	SourceTypeSemanticScholar SourceType = "s2"
	SourceTypeCrossref        SourceType = "crossref"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeEuropePMC       SourceType = "epmc"
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeScopus          SourceType = "scopus"
	SourceTypeUnpaywall       SourceType = "unpaywall"
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeBioRxiv         SourceType = "biorxiv"
	SourceTypeMedRxiv         SourceType = "medrxiv"
	SourceTypePreprints       SourceType = "preprints"
)

// sourceDisplayNames maps source types to human-readable names.
var sourceDisplayNames = map[SourceType]string{
	SourceTypeSemanticScholar: "Semantic Scholar",
	SourceTypeCrossref:        "Crossref",
	SourceTypeOpenAlex:        "OpenAlex",
	SourceTypeEuropePMC:       "EuropePMC",
	SourceTypePubMed:          "PubMed",
	SourceTypeScopus:          "Scopus",
	SourceTypeUnpaywall:       "Unpaywall",
	SourceTypeArXiv:           "arXiv",
	SourceTypeBioRxiv:         "bioRxiv",
	SourceTypeMedRxiv:         "medRxiv",
	SourceTypePreprints:       "Preprints.org",
}

// DisplayName returns the human-readable provider name, falling back to the key.
func (s SourceType) DisplayName() string {
	if name, ok := sourceDisplayNames[s]; ok {
		return name
	}
	return string(s)
}

// IsPreprintServer reports whether s is one of the known preprint servers.
func (s SourceType) IsPreprintServer() bool {
	switch s {
	case SourceTypeArXiv, SourceTypeBioRxiv, SourceTypeMedRxiv, SourceTypePreprints:
		return true
	default:
		return false
	}
}

// DefaultAbstractOrder is the default precedence of abstract sources.
var DefaultAbstractOrder = []SourceType{
	SourceTypeSemanticScholar,
	SourceTypeCrossref,
	SourceTypeOpenAlex,
	SourceTypeEuropePMC,
	SourceTypePubMed,
	SourceTypeScopus,
}

// AttemptStatus is the outcome of a single source attempt.
type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusFailed  AttemptStatus = "failed"
	// AttemptStatusSkipped marks a source that could not run because a
	// required credential was not configured. It is not a failure.
	AttemptStatusSkipped AttemptStatus = "skipped"
)
