package papersources

import (
	"net/url"
	"strings"
)

// EscapeDOIPath escapes a DOI for use inside a URL path, keeping the slash
// that separates prefix and suffix literal as providers expect.
func EscapeDOIPath(doi string) string {
	parts := strings.Split(doi, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
