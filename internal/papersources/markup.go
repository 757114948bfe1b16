package papersources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements are closed with a space so adjacent paragraphs do not run together.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true,
	"jats:p": true, "jats:sec": true,
}

// StripMarkup removes HTML or XML tags from a provider text field, decodes
// entities and collapses whitespace. Elements named in drop are removed
// together with their text.
func StripMarkup(fragment string, drop ...string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	dropped := make(map[string]bool, len(drop))
	for _, name := range drop {
		dropped[name] = true
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch {
		case dropped[name]:
			s.Remove()
		case blockElements[name]:
			s.AppendHtml(" ")
		}
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}
