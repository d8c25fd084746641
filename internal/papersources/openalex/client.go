package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for the OpenAlex API.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit stays well under the polite pool limit of 10 req/s.
	DefaultRateLimit = 5.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest per_page OpenAlex accepts.
	MaxPageSize = 200

	sourceName = "OpenAlex"

	maxAbstractWords = 100_000
)

// Config holds the configuration for the OpenAlex client.
type Config struct {
	BaseURL string

	// Email joins the polite pool when set.
	Email string

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

// Client implements papersources.PaperSource for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new OpenAlex client.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := ""
	if cfg.Email != "" {
		userAgent = "literature-harvester/1.0 (mailto:" + cfg.Email + ")"
	}

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			UserAgent: userAgent,
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

// FetchPage fetches one page of works. OpenAlex only addresses whole
// pages, so the request is aligned with alignPage and the page size used is
// reported back on the Page.
func (c *Client) FetchPage(ctx context.Context, query string, offset, pageSize int) (*papersources.Page, error) {
	if err := papersources.ValidatePageRequest(query, offset, pageSize); err != nil {
		return nil, err
	}
	start := time.Now()
	pageSize, pageNum := alignPage(offset, min(pageSize, MaxPageSize))

	q := url.Values{}
	q.Set("search", query)
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(pageNum))
	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}

	body, err := c.httpClient.Get(ctx, sourceName, c.config.BaseURL+"/works?"+q.Encode(), nil)
	if err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypeOpenAlex), offset, err)
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypeOpenAlex), offset, fmt.Errorf("decode response: %w", err))
	}

	page := papersources.EmptyPage(domain.SourceTypeOpenAlex)
	page.PageSize = pageSize
	page.TotalResults = resp.Meta.Count
	for i := range resp.Results {
		if p := workToPaper(&resp.Results[i]); p != nil {
			page.Papers = append(page.Papers, p)
		}
	}
	page.HasMore = papersources.HasMoreByTotal(offset, len(resp.Results), resp.Meta.Count)
	page.Duration = time.Since(start)
	return page, nil
}

// alignPage returns the largest per_page <= pageSize that divides offset,
// and the 1-indexed page that starts exactly at offset.
func alignPage(offset, pageSize int) (perPage, page int) {
	perPage = pageSize
	for offset%perPage != 0 {
		perPage--
	}
	return perPage, offset/perPage + 1
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func workToPaper(work *Work) *domain.Paper {
	title := papersources.CleanText(work.Title)
	if title == "" {
		title = papersources.CleanText(work.DisplayName)
	}
	if title == "" {
		return nil
	}

	doi := work.DOI
	if doi == "" {
		doi = work.IDs.DOI
	}

	p := &domain.Paper{
		DOI:      papersources.NormalizeDOI(doi),
		PubMedID: normalizePMID(work.IDs.PMID),
		Title:    title,
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
		Source:   domain.SourceTypeOpenAlex,
	}

	for _, a := range work.Authorships {
		if name := strings.TrimSpace(a.Author.DisplayName); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	if loc := work.PrimaryLocation; loc != nil {
		p.ExternalURL = loc.LandingPageURL
		if loc.Source != nil {
			p.Journal = strings.TrimSpace(loc.Source.DisplayName)
		}
	}
	if p.ExternalURL == "" {
		p.ExternalURL = work.ID
	}

	if work.PublicationDate != "" {
		if t, err := time.Parse(time.DateOnly, work.PublicationDate); err == nil {
			p.PublicationDate = &t
		}
	}

	keywords := make([]string, 0, len(work.Keywords))
	for _, k := range work.Keywords {
		keywords = append(keywords, k.DisplayName)
	}
	p.SetKeywords(keywords)
	p.CanonicalID = domain.GenerateCanonicalID(p.Identity())
	return p
}

// normalizePMID turns "https://pubmed.ncbi.nlm.nih.gov/12345678" into "12345678".
func normalizePMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	if i := strings.LastIndex(strings.TrimRight(pmid, "/"), "/"); i >= 0 {
		pmid = strings.TrimRight(pmid, "/")[i+1:]
	}
	return pmid
}

// reconstructAbstract rebuilds abstract text from an inverted index.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}

	total := 0
	for _, positions := range invertedIndex {
		total += len(positions)
	}
	if total > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, total)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, pair := range pairs {
		words[i] = pair.word
	}
	return strings.Join(words, " ")
}
