package papersources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "inline markup", input: "CO<sub>2</sub> reduction in <i>Geobacter</i>", expected: "CO2 reduction in Geobacter"},
		{name: "entities", input: "power &amp; current &lt;10%", expected: "power & current <10%"},
		{name: "whitespace", input: "  a\n\t b  ", expected: "a b"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	assert.Equal(t, "10.1016/j.jpowsour.2020.1", NormalizeDOI("https://doi.org/10.1016/J.JPOWSOUR.2020.1"))
	assert.Equal(t, "10.1/x", NormalizeDOI("doi:10.1/X"))
	assert.Equal(t, "10.1/x", NormalizeDOI(" 10.1/x "))
	assert.Equal(t, "", NormalizeDOI(""))
}
