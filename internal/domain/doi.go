package domain

import (
	"regexp"
	"strings"
)

// doiURLPrefixes are stripped from the front of a DOI during normalization.
var doiURLPrefixes = []string{
	"https://doi.org/",
	"https://dx.doi.org/",
	"http://doi.org/",
	"http://dx.doi.org/",
}

// NoPublishedVersionDOI is the sentinel some preprint servers return when no
// published version exists.
const NoPublishedVersionDOI = "NA"

// arxivIDPattern matches arXiv identifiers embedded in DOIs or free text,
// e.g. "arXiv:2101.00001v2" or "10.48550/arxiv.2101.00001".
var arxivIDPattern = regexp.MustCompile(`(?i)arxiv[:.](\d{4}\.\d{4,5})(v\d+)?`)

// NormalizeDOI trims, lowercases and strips doi.org URL prefixes.
// It returns "" when nothing usable remains.
func NormalizeDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range doiURLPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	return strings.TrimSpace(s)
}

// IsMeaningfulPublishedDOI reports whether doi names an actual published version.
func IsMeaningfulPublishedDOI(doi string) bool {
	doi = strings.TrimSpace(doi)
	return doi != "" && !strings.EqualFold(doi, NoPublishedVersionDOI)
}

// ExtractArXivID returns the bare arXiv identifier (without version) found in s.
func ExtractArXivID(s string) string {
	m := arxivIDPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// DOIFromURL extracts the DOI from a doi.org URL. It returns "" for other URLs.
func DOIFromURL(u string) string {
	idx := strings.Index(u, "doi.org/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(u[idx+len("doi.org/"):])
}
