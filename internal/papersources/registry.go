package papersources

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-harvester/internal/domain"
)

// DefaultFetchTimeout bounds a single adapter fetch.
const DefaultFetchTimeout = 30 * time.Second

// FetchRequest asks one source for one page.
type FetchRequest struct {
	Source   PaperSource
	Query    string
	Offset   int
	PageSize int
}

// FetchResult is the outcome of one FetchRequest. Page is never nil: a
// failed fetch yields an empty page with HasMore=false and Err set.
type FetchResult struct {
	Source domain.SourceType
	Name   string
	Offset int
	Page   *Page
	Err    error
}

// Registry manages paper sources and fans out page fetches across them.
type Registry struct {
	mu           sync.RWMutex
	sources      map[domain.SourceType]PaperSource
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// NewRegistry creates an empty registry. A non-positive fetchTimeout uses
// DefaultFetchTimeout.
func NewRegistry(fetchTimeout time.Duration, logger zerolog.Logger) *Registry {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Registry{
		sources:      make(map[domain.SourceType]PaperSource),
		fetchTimeout: fetchTimeout,
		logger:       logger.With().Str("component", "source_registry").Logger(),
	}
}

// Register adds a source, replacing any source of the same type.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
func (r *Registry) Get(sourceType domain.SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// EnabledSources returns the enabled sources sorted by source type so that
// callers iterate them in a stable order.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].SourceType() < sources[j].SourceType()
	})
	return sources
}

// FetchAll runs every request concurrently and returns results in request
// order. Each fetch gets its own timeout; a slow or failing source only
// affects its own result.
func (r *Registry) FetchAll(ctx context.Context, reqs []FetchRequest) []FetchResult {
	results := make([]FetchResult, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.fetch(ctx, req)
		}()
	}
	wg.Wait()

	return results
}

func (r *Registry) fetch(ctx context.Context, req FetchRequest) FetchResult {
	src := req.Source
	res := FetchResult{
		Source: src.SourceType(),
		Name:   src.Name(),
		Offset: req.Offset,
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	start := time.Now()
	page, err := src.FetchPage(fetchCtx, req.Query, req.Offset, req.PageSize)
	if err == nil && page == nil {
		err = errors.New("adapter returned no page")
	}
	if err != nil {
		var fetchErr *domain.AdapterFetchError
		if !errors.As(err, &fetchErr) {
			err = domain.NewAdapterFetchError(string(src.SourceType()), req.Offset, err)
		}
		r.logger.Warn().Err(err).
			Str("source", string(src.SourceType())).
			Int("offset", req.Offset).
			Int("page_size", req.PageSize).
			Msg("source fetch failed; treating as exhausted for this round")

		res.Page = EmptyPage(src.SourceType())
		res.Page.Duration = time.Since(start)
		res.Err = err
		return res
	}

	if page.Papers == nil {
		page.Papers = []*domain.Paper{}
	}
	if page.Duration == 0 {
		page.Duration = time.Since(start)
	}
	page.Source = src.SourceType()
	res.Page = page
	return res
}
