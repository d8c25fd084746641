// Package openalex fetches pages of results from the OpenAlex works API.
//
// API documentation: https://docs.openalex.org/api-entities/works
package openalex

// SearchResponse is the /works response.
type SearchResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta carries the total count and page information.
type Meta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work is one scholarly work.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationDate string       `json:"publication_date"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	IDs             IDs          `json:"ids"`
	Keywords        []Keyword    `json:"keywords"`

	// AbstractInvertedIndex maps each word to its positions in the abstract.
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// Authorship links a work to an author.
type Authorship struct {
	Author AuthorInfo `json:"author"`
}

// AuthorInfo is the author part of an authorship.
type AuthorInfo struct {
	DisplayName string `json:"display_name"`
}

// Location is where a work is hosted.
type Location struct {
	LandingPageURL string  `json:"landing_page_url"`
	Source         *Source `json:"source"`
}

// Source is the venue of a location.
type Source struct {
	DisplayName string `json:"display_name"`
}

// IDs carries external identifiers.
type IDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
	PMID     string `json:"pmid"`
}

// Keyword is a keyword OpenAlex assigned to the work.
type Keyword struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}
