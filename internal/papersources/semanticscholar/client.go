package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the unauthenticated shared limit.
	DefaultRateLimit = 1.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest limit the search endpoint accepts.
	MaxPageSize = 100

	sourceName   = "Semantic Scholar"
	apiKeyHeader = "x-api-key"

	paperFields = "paperId,url,title,abstract,publicationDate,venue,journal,authors,fieldsOfStudy,externalIds"
)

// Config holds the configuration for the Semantic Scholar client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	Enabled   bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client implements papersources.PaperSource for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new Semantic Scholar client.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		}),
	}
}

// NewWithHTTPClient creates a client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// FetchPage fetches one page from /paper/search. HasMore follows the
// response's next offset.
func (c *Client) FetchPage(ctx context.Context, query string, offset, pageSize int) (*papersources.Page, error) {
	if err := papersources.ValidatePageRequest(query, offset, pageSize); err != nil {
		return nil, err
	}
	start := time.Now()
	pageSize = min(pageSize, MaxPageSize)

	q := url.Values{}
	q.Set("query", query)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("fields", paperFields)

	body, err := c.httpClient.Get(ctx, sourceName, c.config.BaseURL+"/paper/search?"+q.Encode(), nil)
	if err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypeSemanticScholar), offset, describeError(err))
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypeSemanticScholar), offset, fmt.Errorf("decode response: %w", err))
	}

	page := papersources.EmptyPage(domain.SourceTypeSemanticScholar)
	page.PageSize = pageSize
	page.TotalResults = resp.Total
	for _, result := range resp.Data {
		if p := convertToPaper(result); p != nil {
			page.Papers = append(page.Papers, p)
		}
	}
	// The API stops returning next once offset+limit reaches its search
	// window, even if total is larger.
	page.HasMore = resp.Next > 0 && len(resp.Data) > 0
	page.Duration = time.Since(start)
	return page, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// describeError replaces the raw JSON body of an API error with its message.
func describeError(err error) error {
	var apiErr *domain.ExternalAPIError
	if !errors.As(err, &apiErr) {
		return err
	}
	var body ErrorResponse
	if json.Unmarshal([]byte(apiErr.Message), &body) == nil {
		msg := body.Message
		if msg == "" {
			msg = body.Error
		}
		if msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

func convertToPaper(result PaperResult) *domain.Paper {
	title := papersources.CleanText(result.Title)
	if title == "" {
		return nil
	}

	p := &domain.Paper{
		Title:       title,
		Abstract:    papersources.CleanText(result.Abstract),
		Journal:     strings.TrimSpace(result.Venue),
		ExternalURL: result.URL,
		Source:      domain.SourceTypeSemanticScholar,
	}
	if result.Journal != nil && strings.TrimSpace(result.Journal.Name) != "" {
		p.Journal = strings.TrimSpace(result.Journal.Name)
	}
	if ids := result.ExternalIDs; ids != nil {
		p.DOI = papersources.NormalizeDOI(ids.DOI)
		p.ArXivID = strings.TrimSpace(ids.ArXiv)
		p.PubMedID = strings.TrimSpace(ids.PubMed)
	}
	for _, a := range result.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	if result.PublicationDate != "" {
		if t, err := time.Parse(time.DateOnly, result.PublicationDate); err == nil {
			p.PublicationDate = &t
		}
	}

	p.SetKeywords(result.FieldsOfStudy)
	p.CanonicalID = domain.GenerateCanonicalID(p.Identity())
	return p
}
