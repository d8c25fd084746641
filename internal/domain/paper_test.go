package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCanonicalID(t *testing.T) {
	tests := []struct {
		name     string
		id       PaperIdentity
		expected string
	}{
		{
			name:     "doi wins and is lower-cased",
			id:       PaperIdentity{DOI: " 10.1016/J.Biortech.2020.1 ", ArXivID: "2101.00001", PubMedID: "123"},
			expected: "doi:10.1016/j.biortech.2020.1",
		},
		{
			name:     "arxiv before pubmed",
			id:       PaperIdentity{ArXivID: "2101.00001", PubMedID: "123"},
			expected: "arxiv:2101.00001",
		},
		{
			name:     "pubmed",
			id:       PaperIdentity{PubMedID: "123"},
			expected: "pubmed:123",
		},
		{
			name:     "title fallback",
			id:       PaperIdentity{Title: "Enhanced MFC Performance!"},
			expected: "title:enhancedmfcperformance",
		},
		{
			name:     "nothing usable",
			id:       PaperIdentity{Title: "!!!"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GenerateCanonicalID(tt.id))
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "enhancedmfcperformance", NormalizeTitle("Enhanced MFC Performance!"))
	assert.Equal(t, "enhancedmfcperformance", NormalizeTitle("enhanced mfc performance"))
	assert.Equal(t, "coreduction2021", NormalizeTitle("CO₂-Reduction (2021)"))
	assert.Equal(t, "", NormalizeTitle(""))
}

func TestPaper_Validate(t *testing.T) {
	t.Run("blank title", func(t *testing.T) {
		p := &Paper{Title: "   "}
		err := p.Validate()
		require.Error(t, err)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "title", ve.Field)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("title only is valid", func(t *testing.T) {
		p := &Paper{Title: "Anode biofilms"}
		assert.NoError(t, p.Validate())
	})
}

func TestPaper_Identity(t *testing.T) {
	p := &Paper{DOI: "10.1/x", PubMedID: "9", ArXivID: "a", Title: "T"}
	assert.Equal(t, PaperIdentity{DOI: "10.1/x", PubMedID: "9", ArXivID: "a", Title: "T"}, p.Identity())
	assert.False(t, p.Identity().IsEmpty())
	assert.True(t, PaperIdentity{}.IsEmpty())
}

func TestNormalizeKeywords(t *testing.T) {
	got := NormalizeKeywords([]string{"  Microbial Fuel Cell ", "anode", "microbial   fuel\tcell", "", "Anode"})
	assert.Equal(t, []string{"anode", "microbial fuel cell"}, got)
	assert.Nil(t, NormalizeKeywords(nil))
	assert.Nil(t, NormalizeKeywords([]string{" ", ""}))

	p := &Paper{}
	p.SetKeywords([]string{"b", "a", "b"})
	assert.Equal(t, []string{"a", "b"}, p.Keywords)
}
