package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for the arXiv API.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit follows arXiv's request of no more than one call
	// every few seconds for sustained use.
	DefaultRateLimit = 0.34

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest max_results arXiv serves in one call.
	MaxPageSize = 2000

	sourceName = "arXiv"
)

var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds the configuration for the arXiv client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Enabled   bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client implements papersources.PaperSource for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: 1,
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

// FetchPage queries the Atom API for one window of results.
func (c *Client) FetchPage(ctx context.Context, query string, offset, pageSize int) (*papersources.Page, error) {
	if err := papersources.ValidatePageRequest(query, offset, pageSize); err != nil {
		return nil, err
	}
	start := time.Now()
	pageSize = min(pageSize, MaxPageSize)

	searchURL, err := c.buildSearchURL(query, offset, pageSize)
	if err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypeArXiv), offset, err)
	}

	body, err := c.httpClient.Get(ctx, sourceName, searchURL, nil)
	if err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypeArXiv), offset, err)
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypeArXiv), offset, fmt.Errorf("decode feed: %w", err))
	}

	page := papersources.EmptyPage(domain.SourceTypeArXiv)
	page.PageSize = pageSize
	page.TotalResults = feed.TotalResults
	for i := range feed.Entries {
		if p := entryToPaper(&feed.Entries[i]); p != nil {
			page.Papers = append(page.Papers, p)
		}
	}
	page.HasMore = papersources.HasMoreByTotal(offset, len(feed.Entries), feed.TotalResults)
	page.Duration = time.Since(start)
	return page, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) buildSearchURL(query string, offset, pageSize int) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/query"

	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", strconv.Itoa(offset))
	q.Set("max_results", strconv.Itoa(pageSize))
	// Submission order keeps earlier offsets stable while new papers arrive.
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "ascending")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func entryToPaper(entry *Entry) *domain.Paper {
	title := papersources.CleanText(entry.Title)
	if title == "" {
		return nil
	}

	arxivID := extractArXivID(entry.ID)

	p := &domain.Paper{
		DOI:      papersources.NormalizeDOI(entry.DOI),
		ArXivID:  arxivID,
		Title:    title,
		Abstract: papersources.CleanText(entry.Summary),
		Journal:  papersources.CleanText(entry.JournalRef),
		Source:   domain.SourceTypeArXiv,
	}

	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			t = t.UTC()
			p.PublicationDate = &t
		}
	}

	for _, link := range entry.Links {
		if link.Rel == "alternate" && link.Href != "" {
			p.ExternalURL = link.Href
			break
		}
	}
	if p.ExternalURL == "" && arxivID != "" {
		p.ExternalURL = "https://arxiv.org/abs/" + arxivID
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		categories = append(categories, cat.Term)
	}
	p.SetKeywords(categories)
	p.CanonicalID = domain.GenerateCanonicalID(p.Identity())
	return p
}

// extractArXivID turns "http://arxiv.org/abs/2301.12345v1" into "2301.12345".
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
