// Package semanticscholar fetches pages of results from the Semantic
// Scholar Academic Graph API.
//
// API documentation: https://api.semanticscholar.org/api-docs/graph
package semanticscholar

// SearchResponse is the /paper/search response.
// Next is the offset of the next page and is absent on the last page.
type SearchResponse struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Next   int           `json:"next"`
	Data   []PaperResult `json:"data"`
}

// PaperResult is one paper.
type PaperResult struct {
	PaperID         string       `json:"paperId"`
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	Abstract        string       `json:"abstract"`
	PublicationDate string       `json:"publicationDate"`
	Venue           string       `json:"venue"`
	Journal         *Journal     `json:"journal,omitempty"`
	Authors         []Author     `json:"authors"`
	FieldsOfStudy   []string     `json:"fieldsOfStudy"`
	ExternalIDs     *ExternalIDs `json:"externalIds,omitempty"`
}

// ExternalIDs carries identifiers from other catalogs.
type ExternalIDs struct {
	DOI    string `json:"DOI,omitempty"`
	ArXiv  string `json:"ArXiv,omitempty"`
	PubMed string `json:"PubMed,omitempty"`
}

// Journal is the publication venue.
type Journal struct {
	Name string `json:"name,omitempty"`
}

// Author is a paper author.
type Author struct {
	Name string `json:"name"`
}

// ErrorResponse is the error body returned by the API.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
