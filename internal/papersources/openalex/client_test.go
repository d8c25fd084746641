package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/papersources"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{
		BaseURL: server.URL,
		Email:   "test@example.com",
		Timeout: 5 * time.Second,
		Enabled: true,
	}
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  100,
		MaxRetries: -1,
	})
	return NewWithHTTPClient(cfg, httpClient)
}

func TestClient_FetchPage(t *testing.T) {
	t.Run("maps works and page number", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works", r.URL.Path)
			assert.Equal(t, "sediment fuel cell", r.URL.Query().Get("search"))
			assert.Equal(t, "25", r.URL.Query().Get("per_page"))
			assert.Equal(t, "3", r.URL.Query().Get("page"))
			assert.Equal(t, "test@example.com", r.URL.Query().Get("mailto"))

			resp := SearchResponse{
				Meta: Meta{Count: 120, Page: 3, PerPage: 25},
				Results: []Work{
					{
						ID:              "https://openalex.org/W1",
						DOI:             "https://doi.org/10.1021/ES0499344",
						Title:           "Electricity generation in <i>sediment</i> fuel cells",
						PublicationDate: "2004-07-01",
						Authorships:     []Authorship{{Author: AuthorInfo{DisplayName: "Hong Liu"}}},
						PrimaryLocation: &Location{LandingPageURL: "https://pubs.acs.org/doi/10.1021/es0499344", Source: &Source{DisplayName: "Environmental Science & Technology"}},
						IDs:             IDs{PMID: "https://pubmed.ncbi.nlm.nih.gov/15112845"},
						Keywords:        []Keyword{{DisplayName: "Sediment"}},
						AbstractInvertedIndex: map[string][]int{
							"Power": {0}, "density": {1}, "was": {2}, "high": {3},
						},
					},
					{ID: "https://openalex.org/W2"},
					{ID: "https://openalex.org/W3", DisplayName: "Fallback title"},
				},
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		})

		page, err := client.FetchPage(context.Background(), "sediment fuel cell", 50, 25)
		require.NoError(t, err)

		assert.True(t, page.HasMore)
		assert.Equal(t, 120, page.TotalResults)
		require.Len(t, page.Papers, 2, "works without any title are dropped")

		p := page.Papers[0]
		assert.Equal(t, "10.1021/es0499344", p.DOI)
		assert.Equal(t, "15112845", p.PubMedID)
		assert.Equal(t, "Electricity generation in sediment fuel cells", p.Title)
		assert.Equal(t, "Power density was high", p.Abstract)
		assert.Equal(t, []string{"Hong Liu"}, p.Authors)
		assert.Equal(t, "Environmental Science & Technology", p.Journal)
		assert.Equal(t, "https://pubs.acs.org/doi/10.1021/es0499344", p.ExternalURL)
		assert.Equal(t, []string{"sediment"}, p.Keywords)
		require.NotNil(t, p.PublicationDate)
		assert.Equal(t, time.Date(2004, 7, 1, 0, 0, 0, 0, time.UTC), *p.PublicationDate)

		assert.Equal(t, "Fallback title", page.Papers[1].Title)
		assert.Equal(t, "https://openalex.org/W3", page.Papers[1].ExternalURL)
		assert.Equal(t, "title:fallbacktitle", page.Papers[1].CanonicalID)
	})

	t.Run("last page", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"meta":{"count":26},"results":[{"id":"W26","title":"Last"}]}`))
		})

		page, err := client.FetchPage(context.Background(), "mfc", 25, 25)
		require.NoError(t, err)
		assert.False(t, page.HasMore)
	})

	t.Run("page size is capped and reported", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "200", r.URL.Query().Get("per_page"))
			assert.Equal(t, "3", r.URL.Query().Get("page"))
			w.Write([]byte(`{"meta":{"count":1000},"results":[{"id":"W1","title":"Capped"}]}`))
		})

		page, err := client.FetchPage(context.Background(), "mfc", 400, 500)
		require.NoError(t, err)
		assert.Equal(t, MaxPageSize, page.PageSize)
	})

	t.Run("unaligned offset shrinks the page", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "30", r.URL.Query().Get("per_page"))
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			w.Write([]byte(`{"meta":{"count":100},"results":[{"id":"W31","title":"Thirty one"}]}`))
		})

		page, err := client.FetchPage(context.Background(), "mfc", 30, 50)
		require.NoError(t, err)
		assert.Equal(t, 30, page.PageSize)
	})

	t.Run("bad json", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"meta":`))
		})

		_, err := client.FetchPage(context.Background(), "mfc", 0, 25)
		var fetchErr *domain.AdapterFetchError
		assert.True(t, errors.As(err, &fetchErr))
	})
}

func TestAlignPage(t *testing.T) {
	tests := []struct {
		offset, pageSize int
		perPage, page    int
	}{
		{0, 200, 200, 1},
		{400, 200, 200, 3},
		{150, 200, 150, 2},
		{250, 200, 125, 3},
		{7, 5, 1, 8},
	}
	for _, tt := range tests {
		perPage, page := alignPage(tt.offset, tt.pageSize)
		assert.Equal(t, tt.perPage, perPage, "offset %d size %d", tt.offset, tt.pageSize)
		assert.Equal(t, tt.page, page, "offset %d size %d", tt.offset, tt.pageSize)
		assert.Equal(t, tt.offset, (page-1)*perPage)
	}
}

func TestReconstructAbstract(t *testing.T) {
	assert.Equal(t, "", reconstructAbstract(nil))
	assert.Equal(t, "the anode and the cathode", reconstructAbstract(map[string][]int{
		"the": {0, 3}, "anode": {1}, "and": {2}, "cathode": {4},
	}))
}

func TestNormalizePMID(t *testing.T) {
	assert.Equal(t, "123", normalizePMID("https://pubmed.ncbi.nlm.nih.gov/123"))
	assert.Equal(t, "123", normalizePMID("https://pubmed.ncbi.nlm.nih.gov/123/"))
	assert.Equal(t, "123", normalizePMID("123"))
	assert.Equal(t, "", normalizePMID(""))
}
