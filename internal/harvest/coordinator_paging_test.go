package harvest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/papersources"
	"github.com/helixir/literature-harvester/internal/papersources/openalex"
	"github.com/helixir/literature-harvester/internal/papersources/semanticscholar"
	"github.com/helixir/literature-harvester/internal/store"
)

// hashedTitles returns n titles that are pairwise far apart under the fuzzy
// matcher.
func hashedTitles(prefix string, n int) []string {
	titles := make([]string, n)
	for i := range titles {
		sum := sha256.Sum256([]byte(prefix + strconv.Itoa(i)))
		titles[i] = hex.EncodeToString(sum[:16])
	}
	return titles
}

type requestLog struct {
	mu      sync.Mutex
	queries []string
}

func (l *requestLog) add(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, q)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.queries...)
}

func semanticScholarCatalog(t *testing.T, titles []string, log *requestLog) *semanticscholar.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		log.add("offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(limit))

		resp := semanticscholar.SearchResponse{Total: len(titles), Offset: offset}
		end := min(offset+limit, len(titles))
		for i := offset; i < end; i++ {
			resp.Data = append(resp.Data, semanticscholar.PaperResult{PaperID: "s2-" + strconv.Itoa(i), Title: titles[i]})
		}
		if end < len(titles) {
			resp.Next = end
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 1000, MaxRetries: -1})
	return semanticscholar.NewWithHTTPClient(semanticscholar.Config{BaseURL: server.URL, Enabled: true}, httpClient)
}

func openAlexCatalog(t *testing.T, titles []string, log *requestLog) *openalex.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		log.add("page=" + strconv.Itoa(page) + "&per_page=" + strconv.Itoa(perPage))

		resp := openalex.SearchResponse{Meta: openalex.Meta{Count: len(titles), Page: page, PerPage: perPage}}
		start := (page - 1) * perPage
		end := min(start+perPage, len(titles))
		for i := start; i < end; i++ {
			resp.Results = append(resp.Results, openalex.Work{Title: titles[i]})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 1000, MaxRetries: -1})
	return openalex.NewWithHTTPClient(openalex.Config{BaseURL: server.URL, Enabled: true}, httpClient)
}

func TestCoordinator_PageSizeAboveCatalogCap(t *testing.T) {
	s2Titles := hashedTitles("s2-", 300)
	oaTitles := hashedTitles("oa-", 300)
	s2Log, oaLog := &requestLog{}, &requestLog{}

	reg := newRegistry(
		semanticScholarCatalog(t, s2Titles, s2Log),
		openAlexCatalog(t, oaTitles, oaLog),
	)
	rs := store.NewMemoryStore(domain.SelfCitationAllow)
	cps := &memoryCheckpoints{}

	cfg := Config{PageSizes: map[domain.SourceType]int{
		domain.SourceTypeSemanticScholar: 150,
		domain.SourceTypeOpenAlex:        250,
	}}
	c := newTestCoordinator(t, cfg, reg, rs, cps)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, 600, summary.Imported)

	ctx := context.Background()
	for _, title := range append(s2Titles, oaTitles...) {
		p, err := rs.FindExisting(ctx, domain.PaperIdentity{Title: title})
		require.NoError(t, err)
		require.NotNil(t, p, "missing %s", title)
	}

	assert.Equal(t, []string{
		"offset=0&limit=100",
		"offset=100&limit=100",
		"offset=200&limit=100",
	}, s2Log.all())
	assert.Equal(t, []string{
		"page=1&per_page=200",
		"page=2&per_page=200",
		"page=2&per_page=200",
	}, oaLog.all())
	assert.Equal(t, map[string]int{
		string(domain.SourceTypeSemanticScholar): 200,
		string(domain.SourceTypeOpenAlex):        200,
	}, summary.SourceOffsets)
}

func TestCoordinator_ResumeRealignsOpenAlexPages(t *testing.T) {
	titles := hashedTitles("oa-", 300)
	log := &requestLog{}
	reg := newRegistry(openAlexCatalog(t, titles, log))
	rs := store.NewMemoryStore(domain.SelfCitationAllow)

	// A checkpoint written by an earlier run that used per_page 150.
	cps := &memoryCheckpoints{}
	cp := NewCheckpoint()
	cp.Advance(domain.SourceTypeOpenAlex, 150)
	require.NoError(t, cps.Save(context.Background(), cp))

	cfg := Config{PageSizes: map[domain.SourceType]int{domain.SourceTypeOpenAlex: 200}}
	c := newTestCoordinator(t, cfg, reg, rs, cps)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, 150, summary.Imported)

	ctx := context.Background()
	for _, title := range titles[150:] {
		p, err := rs.FindExisting(ctx, domain.PaperIdentity{Title: title})
		require.NoError(t, err)
		require.NotNil(t, p, "missing %s", title)
	}
	assert.Equal(t, "page=2&per_page=150", log.all()[0])
}
