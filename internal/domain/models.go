// Package domain provides the core models and error types for the literature harvester.
package domain

// SourceType identifies the external catalog that produced a paper.
// These values must match the database enum source_type.
type SourceType string

const (
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeManual          SourceType = "manual"
)

// String returns the string form of the source type.
func (s SourceType) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known source types.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypePubMed, SourceTypeArXiv, SourceTypeOpenAlex, SourceTypeSemanticScholar, SourceTypeManual:
		return true
	}
	return false
}
