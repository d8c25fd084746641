package papersources

import (
	"html"
	"regexp"
	"strings"
)

var markupRegex = regexp.MustCompile(`<[^>]*>`)

// CleanText removes inline markup, decodes entities and collapses runs of
// whitespace. Catalogs embed <i>, <sup> and friends in titles and abstracts.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = markupRegex.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDOI strips resolver prefixes and lower-cases a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(doi))
}
