package enrich

import (
	"regexp"
	"strings"

	"github.com/helixir/enrichment-service/internal/domain"
)

// preprintPatterns lists, per preprint server, the case-insensitive
// substrings that identify it in a source title. Order matters: medRxiv and
// bioRxiv are checked before the generic "preprints" names.
var preprintPatterns = []struct {
	server   domain.SourceType
	patterns []string
}{
	{domain.SourceTypeArXiv, []string{"arxiv", "ar xiv"}},
	{domain.SourceTypeMedRxiv, []string{"medrxiv", "med rxiv"}},
	{domain.SourceTypeBioRxiv, []string{"biorxiv", "bio rxiv"}},
	{domain.SourceTypePreprints, []string{"preprints.org", "preprints"}},
}

// doiPrefixes maps DOI prefixes to preprint servers. They are consulted only
// for records without a source title. 10.1101 is shared with the Cold Spring
// Harbor journals (gr., gad., lm., cshperspect.), so it additionally needs the
// bioRxiv/medRxiv suffix shape.
var doiPrefixes = []struct {
	prefix string
	server domain.SourceType
	shape  *regexp.Regexp
}{
	{"10.48550/arxiv.", domain.SourceTypeArXiv, nil},
	{"10.1101/", domain.SourceTypeBioRxiv, rxivDOIShape},
	{"10.20944/preprints", domain.SourceTypePreprints, nil},
}

// rxivDOIShape matches 10.1101/2020.01.01.123456 and the legacy numeric
// suffixes such as 10.1101/123456, each with an optional version.
var rxivDOIShape = regexp.MustCompile(`^10\.1101/(\d{4}\.\d{2}\.\d{2}\.\d+|\d+)(v\d+)?$`)

// DetectPreprint classifies rec from its source title and identifiers.
// It returns the preprint server and true when rec is a preprint. The result
// depends only on rec's bibliographic fields, so repeated calls agree.
func DetectPreprint(rec *domain.Record) (domain.SourceType, bool) {
	title := strings.ToLower(rec.SourceTitle)
	if title != "" {
		for _, p := range preprintPatterns {
			for _, pattern := range p.patterns {
				if strings.Contains(title, pattern) {
					return p.server, true
				}
			}
		}
	}

	// A named venue that matched no pattern is a journal, whatever its
	// identifiers.
	if title != "" {
		return "", false
	}

	if rec.ArXivID != "" || domain.ExtractArXivID(rec.DOINorm) != "" {
		return domain.SourceTypeArXiv, true
	}

	doi := strings.ToLower(rec.DOINorm)
	for _, p := range doiPrefixes {
		if !strings.HasPrefix(doi, p.prefix) {
			continue
		}
		if p.shape != nil && !p.shape.MatchString(doi) {
			return "", false
		}
		return p.server, true
	}
	return "", false
}
