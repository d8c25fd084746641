package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-harvester/internal/domain"
)

func newPaper(title string) *domain.Paper {
	date := time.Date(2021, time.March, 4, 0, 0, 0, 0, time.UTC)
	return &domain.Paper{
		Title:              title,
		DOI:                "10.1016/j.biortech." + domain.NormalizeTitle(title),
		Authors:            []string{"Logan B.", "Rabaey K."},
		Abstract:           "Power density reached 1.2 W/m2.",
		Journal:            "Bioresource Technology",
		PublicationDate:    &date,
		ExternalURL:        "https://doi.org/10.1016/x",
		Source:             domain.SourceTypeOpenAlex,
		Keywords:           []string{"MFC", " anode "},
		HasPerformanceData: true,
	}
}

// runStoreContract exercises the behaviour every backend shares.
func runStoreContract(t *testing.T, open func(t *testing.T, policy domain.SelfCitationPolicy) Store) {
	ctx := context.Background()

	t.Run("create then find by every identity field", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		p := newPaper("Carbon cloth anodes in microbial fuel cells")
		p.PubMedID = "33445566"
		p.ArXivID = "2101.00001"
		created, err := s.Create(ctx, p)
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "doi:"+created.DOI, created.CanonicalID)
		assert.Equal(t, []string{"anode", "mfc"}, created.Keywords)
		assert.False(t, created.CreatedAt.IsZero())

		lookups := map[string]domain.PaperIdentity{
			"doi upper case": {DOI: "10.1016/J.BIORTECH." + domain.NormalizeTitle(p.Title)},
			"pubmed":         {PubMedID: "33445566"},
			"arxiv":          {ArXivID: "2101.00001"},
			"exact title":    {Title: p.Title},
		}
		for name, id := range lookups {
			t.Run(name, func(t *testing.T) {
				found, err := s.FindExisting(ctx, id)
				require.NoError(t, err)
				require.NotNil(t, found)
				assert.Equal(t, created.ID, found.ID)
				assert.Equal(t, p.Title, found.Title)
				assert.Equal(t, p.Authors, found.Authors)
				assert.Equal(t, domain.SourceTypeOpenAlex, found.Source)
				assert.True(t, found.HasPerformanceData)
				require.NotNil(t, found.PublicationDate)
				assert.True(t, p.PublicationDate.Equal(*found.PublicationDate))
			})
		}
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, open(t, domain.SelfCitationAllow).Ping(ctx))
	})

	t.Run("find returns nil when absent", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		found, err := s.FindExisting(ctx, domain.PaperIdentity{Title: "Nothing stored"})
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("title match is exact", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)
		_, err := s.Create(ctx, &domain.Paper{Title: "Sediment MFC", Source: domain.SourceTypeArXiv})
		require.NoError(t, err)

		found, err := s.FindExisting(ctx, domain.PaperIdentity{Title: "sediment mfc"})
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("empty identity is invalid", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		_, err := s.FindExisting(ctx, domain.PaperIdentity{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("create rejects blank title", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		_, err := s.Create(ctx, &domain.Paper{Title: "  "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("duplicate canonical id is already exists", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		_, err := s.Create(ctx, newPaper("Air cathode"))
		require.NoError(t, err)
		_, err = s.Create(ctx, newPaper("Air cathode"))
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("concurrent creates of one paper store it once", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.Create(ctx, newPaper("Shared title"))
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("list titles in insertion order", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		for i := range 3 {
			_, err := s.Create(ctx, &domain.Paper{Title: fmt.Sprintf("Paper %d", i), Source: domain.SourceTypePubMed})
			require.NoError(t, err)
		}

		titles, err := s.ListTitles(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Paper 0", "Paper 1", "Paper 2"}, titles)
	})

	t.Run("citation edges are idempotent", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		created, err := s.AddCitation(ctx, "A", "B")
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.AddCitation(ctx, "A", "B")
		require.NoError(t, err)
		assert.False(t, created)

		_, err = s.AddCitation(ctx, "A", "C")
		require.NoError(t, err)
		_, err = s.AddCitation(ctx, "D", "A")
		require.NoError(t, err)

		out, in, err := s.QueryCitationEdges(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, out)
		assert.Equal(t, []string{"D"}, in)
	})

	t.Run("unknown id has no edges", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		out, in, err := s.QueryCitationEdges(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Empty(t, in)
	})

	t.Run("self citation follows policy", func(t *testing.T) {
		allow := open(t, domain.SelfCitationAllow)
		created, err := allow.AddCitation(ctx, "A", "A")
		require.NoError(t, err)
		assert.True(t, created)

		out, in, err := allow.QueryCitationEdges(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, out)
		assert.Equal(t, []string{"A"}, in)

		reject := open(t, domain.SelfCitationReject)
		_, err = reject.AddCitation(ctx, "A", "A")
		assert.ErrorIs(t, err, domain.ErrSelfCitation)
	})

	t.Run("blank edge ids are invalid", func(t *testing.T) {
		s := open(t, domain.SelfCitationAllow)

		_, err := s.AddCitation(ctx, "", "B")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
