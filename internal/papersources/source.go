// Package papersources defines the contract every external catalog adapter
// follows and the shared plumbing they use.
//
// An adapter fetches one page of results for a query at an offset and
// normalizes it into domain.Paper values. Adapters are stateless apart from
// their HTTP client and rate limiter.
//
// Example usage:
//
//	src := pubmed.New(pubmed.Config{Enabled: true})
//	page, err := src.FetchPage(ctx, "microbial fuel cell", 0, 20)
//	if err != nil {
//		// the registry fan-out degrades this to an empty page
//	}
package papersources

import (
	"context"
	"strings"
	"time"

	"github.com/helixir/literature-harvester/internal/domain"
)

// Page is one page of normalized results from a catalog.
type Page struct {
	// Papers holds the normalized records. Never nil on success.
	Papers []*domain.Paper

	// HasMore is true if the catalog has results beyond this page. For
	// catalogs that report no total it means the page came back full,
	// which may over-estimate by one empty page.
	HasMore bool

	// TotalResults is the catalog's reported total, or -1 if unknown.
	TotalResults int

	// Source identifies the catalog.
	Source domain.SourceType

	// PageSize is the window the adapter actually requested, after any
	// catalog cap. Callers advance their offset by this, not by the size
	// they asked for. Zero means the requested size was used.
	PageSize int

	// Duration is the time spent fetching and parsing the page.
	Duration time.Duration
}

// EmptyPage returns a page with no papers and HasMore=false.
func EmptyPage(source domain.SourceType) *Page {
	return &Page{
		Papers:       []*domain.Paper{},
		TotalResults: -1,
		Source:       source,
	}
}

// PaperSource is implemented by each catalog adapter.
type PaperSource interface {
	// FetchPage returns up to pageSize papers for query starting at offset.
	// Network and parse failures are returned as *domain.AdapterFetchError.
	FetchPage(ctx context.Context, query string, offset, pageSize int) (*Page, error)

	// SourceType returns the catalog identifier.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logs and metrics.
	Name() string

	// IsEnabled reports whether the adapter should take part in harvests.
	IsEnabled() bool
}

// ValidatePageRequest checks the arguments every FetchPage implementation
// must reject before touching the network.
func ValidatePageRequest(query string, offset, pageSize int) error {
	if strings.TrimSpace(query) == "" {
		return domain.NewValidationError("query", "query is required")
	}
	if offset < 0 {
		return domain.NewValidationError("offset", "offset must be non-negative")
	}
	if pageSize <= 0 {
		return domain.NewValidationError("page_size", "page size must be positive")
	}
	return nil
}

// HasMoreByTotal reports whether results remain past offset+n given the
// catalog's total count.
func HasMoreByTotal(offset, n, total int) bool {
	return n > 0 && offset+n < total
}

// HasMoreByFullPage approximates HasMore for catalogs without a total.
func HasMoreByFullPage(n, pageSize int) bool {
	return n > 0 && n >= pageSize
}
