// Package relevance decides whether a paper carries quantitative
// performance evidence worth keeping.
package relevance

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/helixir/literature-harvester/internal/domain"
)

// MinIndicatorMatches is the number of distinct indicator phrases that
// accept a paper without any numeric evidence.
const MinIndicatorMatches = 2

// Evaluation is the detailed outcome of scoring one paper.
type Evaluation struct {
	// Indicators lists the distinct indicator phrases found, sorted.
	Indicators []string
	// Measurement is the first number-with-unit token found, if any.
	Measurement string
	Relevant    bool
}

// Filter scores papers against an indicator vocabulary.
type Filter struct {
	indicators  []string
	measurement *regexp.Regexp
}

// NewFilter compiles a filter from a vocabulary. Empty vocabulary sections
// fall back to the defaults.
func NewFilter(v Vocabulary) (*Filter, error) {
	v = v.withDefaults()

	indicators := normalizePhrases(v.Indicators)
	units := normalizePhrases(v.Units)
	if len(indicators) == 0 {
		return nil, domain.NewConfigurationError("relevance.indicators", "at least one indicator phrase is required")
	}
	if len(units) == 0 {
		return nil, domain.NewConfigurationError("relevance.units", "at least one unit token is required")
	}

	// Longest units first so "mw/m2" is preferred over "mw".
	sort.SliceStable(units, func(i, j int) bool { return len(units[i]) > len(units[j]) })
	quoted := make([]string, len(units))
	for i, u := range units {
		quoted[i] = regexp.QuoteMeta(u)
	}

	pattern := `(\d+(?:[.,]\d+)?)\s*(` + strings.Join(quoted, "|") + `)(?:[^a-z0-9]|$)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile measurement pattern: %w", err)
	}

	return &Filter{
		indicators:  indicators,
		measurement: re,
	}, nil
}

// MustNewFilter is like NewFilter but panics on error. It is meant for the
// built-in vocabulary.
func MustNewFilter(v Vocabulary) *Filter {
	f, err := NewFilter(v)
	if err != nil {
		panic(err)
	}
	return f
}

// Evaluate scores p without modifying it.
func (f *Filter) Evaluate(p *domain.Paper) Evaluation {
	blob := textBlob(p)

	var ev Evaluation
	for _, phrase := range f.indicators {
		if strings.Contains(blob, phrase) {
			ev.Indicators = append(ev.Indicators, phrase)
		}
	}
	sort.Strings(ev.Indicators)

	if len(ev.Indicators) >= MinIndicatorMatches {
		ev.Relevant = true
		return ev
	}

	if m := f.measurement.FindStringSubmatch(blob); m != nil {
		ev.Measurement = m[1] + " " + m[2]
		ev.Relevant = len(ev.Indicators) >= 1
	}

	return ev
}

// IsRelevant reports whether p carries usable performance evidence.
func (f *Filter) IsRelevant(p *domain.Paper) bool {
	return f.Evaluate(p).Relevant
}

// Apply scores p and records the verdict in p.HasPerformanceData.
func (f *Filter) Apply(p *domain.Paper) bool {
	ok := f.IsRelevant(p)
	p.HasPerformanceData = ok
	return ok
}

func textBlob(p *domain.Paper) string {
	parts := make([]string, 0, 2+len(p.Keywords))
	parts = append(parts, p.Title, p.Abstract)
	parts = append(parts, p.Keywords...)
	return strings.ToLower(strings.Join(parts, " "))
}

func normalizePhrases(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
