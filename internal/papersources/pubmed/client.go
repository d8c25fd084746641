package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the limit without an API key. With a key NCBI
	// allows 10 requests per second.
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest retmax esearch accepts.
	MaxPageSize = 10000

	sourceName = "PubMed"

	articleURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the optional NCBI API key.
	APIKey string

	Timeout   time.Duration
	RateLimit float64

	// Enabled indicates whether this source takes part in harvests.
	Enabled bool
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

// Client implements papersources.PaperSource for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new PubMed client.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: int(cfg.RateLimit),
		}),
	}
}

// NewWithHTTPClient creates a client with a custom HTTP client, typically
// one pointed at a test server.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// FetchPage runs esearch for the requested window and efetch for the PMIDs
// it returns. HasMore comes from esearch's total count.
func (c *Client) FetchPage(ctx context.Context, query string, offset, pageSize int) (*papersources.Page, error) {
	if err := papersources.ValidatePageRequest(query, offset, pageSize); err != nil {
		return nil, err
	}
	start := time.Now()
	pageSize = min(pageSize, MaxPageSize)

	search, err := c.esearch(ctx, query, offset, pageSize)
	if err != nil {
		return nil, domain.NewAdapterFetchError(string(domain.SourceTypePubMed), offset, fmt.Errorf("esearch: %w", err))
	}

	page := papersources.EmptyPage(domain.SourceTypePubMed)
	page.PageSize = pageSize
	if search.ErrorList != nil && len(search.ErrorList.PhraseNotFound) > 0 && len(search.IDList.IDs) == 0 {
		page.TotalResults = 0
		page.Duration = time.Since(start)
		return page, nil
	}
	page.TotalResults = search.Count

	if len(search.IDList.IDs) > 0 {
		articles, err := c.efetch(ctx, search.IDList.IDs)
		if err != nil {
			return nil, domain.NewAdapterFetchError(string(domain.SourceTypePubMed), offset, fmt.Errorf("efetch: %w", err))
		}
		for _, article := range articles.Articles {
			if p := articleToPaper(article); p != nil {
				page.Papers = append(page.Papers, p)
			}
		}
	}

	// Count the window, not the parsed papers: efetch may drop records
	// that esearch listed.
	page.HasMore = papersources.HasMoreByTotal(offset, len(search.IDList.IDs), search.Count)
	page.Duration = time.Since(start)
	return page, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) esearch(ctx context.Context, query string, offset, pageSize int) (*ESearchResult, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", query)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(pageSize))
	q.Set("retstart", strconv.Itoa(offset))
	q.Set("sort", "pub_date")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	body, err := c.httpClient.Get(ctx, sourceName, c.config.BaseURL+"/esearch.fcgi?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse XML response: %w", err)
	}
	return &result, nil
}

func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	body, err := c.httpClient.Get(ctx, sourceName, c.config.BaseURL+"/efetch.fcgi?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result PubmedArticleSet
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse XML response: %w", err)
	}
	return &result, nil
}

// articleToPaper converts an article record. Records without a title are dropped.
func articleToPaper(article PubmedArticle) *domain.Paper {
	citation := article.MedlineCitation
	title := papersources.CleanText(citation.Article.ArticleTitle.Value)
	if title == "" {
		return nil
	}

	pmid := strings.TrimSpace(citation.PMID)
	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	p := &domain.Paper{
		DOI:             papersources.NormalizeDOI(extractDOI(article)),
		PubMedID:        pmid,
		Title:           title,
		Authors:         extractAuthors(citation.Article.AuthorList),
		Abstract:        extractAbstract(citation.Article.Abstract),
		Journal:         strings.TrimSpace(journal),
		PublicationDate: extractPublicationDate(citation.Article),
		Source:          domain.SourceTypePubMed,
	}
	if pmid != "" {
		p.ExternalURL = articleURLPrefix + pmid + "/"
	}

	var keywords []string
	for _, kl := range citation.KeywordList {
		keywords = append(keywords, kl.Keywords...)
	}
	if citation.MeshHeadingList != nil {
		for _, mh := range citation.MeshHeadingList.MeshHeadings {
			keywords = append(keywords, mh.DescriptorName)
		}
	}
	p.SetKeywords(keywords)
	p.CanonicalID = domain.GenerateCanonicalID(p.Identity())
	return p
}

// extractDOI prefers a valid ELocationID over the ArticleIdList.
func extractDOI(article PubmedArticle) string {
	for _, eloc := range article.MedlineCitation.Article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}
	for _, aid := range article.PubmedData.ArticleIDList.ArticleIDs {
		if aid.IDType == "doi" {
			return aid.Value
		}
	}
	return ""
}

// extractPublicationDate prefers the electronic ArticleDate and falls back
// to the journal issue date, including free-form MedlineDate values.
func extractPublicationDate(article Article) *time.Time {
	for _, ad := range article.ArticleDate {
		if t := parseDate(ad.Year, ad.Month, ad.Day); t != nil {
			return t
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.Year != "" {
		return parseDate(pubDate.Year, pubDate.Month, pubDate.Day)
	}
	if pubDate.MedlineDate != "" {
		// "2020 Jan-Feb", "2020 Spring", "2019-2020"
		fields := strings.Fields(pubDate.MedlineDate)
		if len(fields) > 0 {
			return parseDate(strings.Split(fields[0], "-")[0], "", "")
		}
	}
	return nil
}

func parseDate(year, month, day string) *time.Time {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y <= 0 {
		return nil
	}

	d := 1
	if day != "" {
		if parsed, err := strconv.Atoi(day); err == nil && parsed >= 1 && parsed <= 31 {
			d = parsed
		}
	}

	t := time.Date(y, parseMonth(month), d, 0, 0, 0, 0, time.UTC)
	return &t
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func parseMonth(month string) time.Month {
	month = strings.TrimSpace(month)
	if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
		return time.Month(m)
	}
	if len(month) >= 3 {
		if m, ok := monthNames[strings.ToLower(month[:3])]; ok {
			return m
		}
	}
	return time.January
}

// extractAbstract joins structured abstract sections, prefixing labels.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil {
		return ""
	}

	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, at := range abstract.AbstractTexts {
		text := papersources.CleanText(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			text = at.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func extractAuthors(list *AuthorList) []string {
	if list == nil {
		return nil
	}

	authors := make([]string, 0, len(list.Authors))
	for _, a := range list.Authors {
		if a.ValidYN == "N" {
			continue
		}
		name := strings.TrimSpace(a.CollectiveName)
		if name == "" {
			name = strings.TrimSpace(strings.TrimSpace(a.ForeName) + " " + strings.TrimSpace(a.LastName))
		}
		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}
