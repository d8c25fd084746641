// Package dedup detects near-duplicate papers by their titles.
//
// Titles are reduced to a fingerprint (lower-case ASCII letters and digits,
// truncated to a fixed prefix) and compared against every fingerprint seen
// so far using normalized Levenshtein similarity. An Index belongs to a
// single harvest run and is not safe for concurrent mutation.
package dedup

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/helixir/literature-harvester/internal/domain"
)

// Defaults used when a Config field is left at its zero value.
const (
	DefaultThreshold         = 0.85
	DefaultFingerprintLength = 50
)

// Config holds the matching parameters of an Index.
type Config struct {
	// Threshold is the similarity a pair must strictly exceed to be a duplicate.
	Threshold float64
	// FingerprintLength is the prefix length fingerprints are truncated to.
	FingerprintLength int
}

// DefaultConfig returns the reference matching parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		FingerprintLength: DefaultFingerprintLength,
	}
}

func (c *Config) applyDefaults() {
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = DefaultThreshold
	}
	if c.FingerprintLength <= 0 {
		c.FingerprintLength = DefaultFingerprintLength
	}
}

// Match describes the outcome of checking a title against the index.
type Match struct {
	Fingerprint string
	Duplicate   bool
	// Exact is true when the fingerprint itself was already registered.
	Exact bool
	// MatchedFingerprint and MatchedTitle identify the entry that matched.
	MatchedFingerprint string
	MatchedTitle       string
	Similarity         float64
}

// Index maps fingerprints to the first title registered under them.
type Index struct {
	cfg     Config
	entries map[string]string
	// order keeps insertion order so scans are deterministic.
	order []string
}

// NewIndex creates an empty index.
func NewIndex(cfg Config) *Index {
	cfg.applyDefaults()
	return &Index{
		cfg:     cfg,
		entries: make(map[string]string),
	}
}

// Fingerprint returns the fingerprint of title using the index's prefix length.
func (ix *Index) Fingerprint(title string) string {
	return Fingerprint(title, ix.cfg.FingerprintLength)
}

// Fingerprint lower-cases title, keeps only [a-z0-9] and truncates the result
// to length characters. It depends on nothing but its arguments.
func Fingerprint(title string, length int) string {
	fp := domain.NormalizeTitle(title)
	if length > 0 && len(fp) > length {
		fp = fp[:length]
	}
	return fp
}

// Similarity returns the normalized Levenshtein similarity of a and b:
// (max(len) - distance) / max(len), or 1.0 when both are empty.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(longest-dist) / float64(longest)
}

// Check classifies title without registering it.
func (ix *Index) Check(title string) Match {
	fp := ix.Fingerprint(title)
	m := Match{Fingerprint: fp}

	if existing, ok := ix.entries[fp]; ok {
		m.Duplicate = true
		m.Exact = true
		m.MatchedFingerprint = fp
		m.MatchedTitle = existing
		m.Similarity = 1.0
		return m
	}

	for _, candidate := range ix.order {
		sim := Similarity(fp, candidate)
		if sim > ix.cfg.Threshold {
			m.Duplicate = true
			m.MatchedFingerprint = candidate
			m.MatchedTitle = ix.entries[candidate]
			m.Similarity = sim
			return m
		}
	}

	return m
}

// IsDuplicate reports whether title is a near-duplicate of anything already
// registered. Titles that are not duplicates are registered.
func (ix *Index) IsDuplicate(title string) bool {
	m := ix.Check(title)
	if !m.Duplicate {
		ix.register(m.Fingerprint, title)
	}
	return m.Duplicate
}

// Seed registers fingerprints restored from a checkpoint or a record store.
// Seeded entries use the fingerprint as their title. Already known
// fingerprints are ignored.
func (ix *Index) Seed(fingerprints ...string) {
	for _, fp := range fingerprints {
		if _, ok := ix.entries[fp]; ok {
			continue
		}
		ix.register(fp, fp)
	}
}

// SeedTitles registers full titles, fingerprinting each one first.
func (ix *Index) SeedTitles(titles ...string) {
	for _, title := range titles {
		fp := ix.Fingerprint(title)
		if _, ok := ix.entries[fp]; ok {
			continue
		}
		ix.register(fp, title)
	}
}

// Contains reports whether fingerprint is registered.
func (ix *Index) Contains(fingerprint string) bool {
	_, ok := ix.entries[fingerprint]
	return ok
}

// Len returns the number of registered fingerprints.
func (ix *Index) Len() int {
	return len(ix.order)
}

// Fingerprints returns the registered fingerprints in sorted order.
func (ix *Index) Fingerprints() []string {
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	sort.Strings(out)
	return out
}

func (ix *Index) register(fp, title string) {
	ix.entries[fp] = title
	ix.order = append(ix.order, fp)
}
