package domain

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// PaperIdentity holds the fields used to decide whether a paper already
// exists in the record store. Any non-empty identifier, or the exact
// title, is enough for a match.
type PaperIdentity struct {
	DOI      string
	PubMedID string
	ArXivID  string
	Title    string
}

// IsEmpty returns true if no identifier and no title are set.
func (id PaperIdentity) IsEmpty() bool {
	return id.DOI == "" && id.PubMedID == "" && id.ArXivID == "" && id.Title == ""
}

// GenerateCanonicalID generates a canonical identifier from a paper identity.
// Priority order: DOI > ArXiv > PubMed > normalized title.
// Returns empty string if nothing usable is available.
func GenerateCanonicalID(id PaperIdentity) string {
	if doi := strings.TrimSpace(id.DOI); doi != "" {
		return "doi:" + strings.ToLower(doi)
	}

	if arxiv := strings.TrimSpace(id.ArXivID); arxiv != "" {
		return "arxiv:" + arxiv
	}

	if pubmed := strings.TrimSpace(id.PubMedID); pubmed != "" {
		return "pubmed:" + pubmed
	}

	if title := NormalizeTitle(id.Title); title != "" {
		return "title:" + title
	}

	return ""
}

// NormalizeTitle lower-cases a title and drops every rune that is not an
// ASCII letter or digit.
func NormalizeTitle(title string) string {
	var sb strings.Builder
	sb.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Paper is the canonical normalized record produced by a source adapter.
type Paper struct {
	ID                 uuid.UUID  `json:"id"`
	CanonicalID        string     `json:"canonical_id"`
	DOI                string     `json:"doi,omitempty"`
	PubMedID           string     `json:"pubmed_id,omitempty"`
	ArXivID            string     `json:"arxiv_id,omitempty"`
	Title              string     `json:"title"`
	Authors            []string   `json:"authors,omitempty"`
	Abstract           string     `json:"abstract,omitempty"`
	Journal            string     `json:"journal,omitempty"`
	PublicationDate    *time.Time `json:"publication_date,omitempty"`
	ExternalURL        string     `json:"external_url,omitempty"`
	Source             SourceType `json:"source"`
	Keywords           []string   `json:"keywords,omitempty"`
	HasPerformanceData bool       `json:"has_performance_data"`
	CreatedAt          time.Time  `json:"created_at,omitzero"`
}

// Identity returns the identity fields of the paper.
func (p *Paper) Identity() PaperIdentity {
	return PaperIdentity{
		DOI:      p.DOI,
		PubMedID: p.PubMedID,
		ArXivID:  p.ArXivID,
		Title:    p.Title,
	}
}

// Validate checks the invariants every stored paper must satisfy.
func (p *Paper) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return NewValidationError("title", "title is required")
	}
	return nil
}

// SetKeywords replaces the keyword set. Keywords are trimmed, lower-cased,
// de-duplicated and sorted since their order carries no meaning.
func (p *Paper) SetKeywords(keywords []string) {
	p.Keywords = NormalizeKeywords(keywords)
}

// NormalizeKeywords returns a sorted, de-duplicated copy of keywords with
// whitespace collapsed and empty entries removed.
func NormalizeKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.Join(strings.FieldsFunc(k, unicode.IsSpace), " "))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
