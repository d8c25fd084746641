package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/helixir/literature-harvester/internal/domain"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps papers and citation edges in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	policy   domain.SelfCitationPolicy
	papers   []*domain.Paper
	byCanon  map[string]*domain.Paper
	outgoing map[string][]string
	incoming map[string][]string
	edges    map[domain.CitationEdge]struct{}
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(policy domain.SelfCitationPolicy) *MemoryStore {
	return &MemoryStore{
		policy:   policy,
		byCanon:  make(map[string]*domain.Paper),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		edges:    make(map[domain.CitationEdge]struct{}),
		now:      time.Now,
	}
}

// FindExisting returns the first stored paper sharing any identity field
// with id, or nil.
func (s *MemoryStore) FindExisting(_ context.Context, id domain.PaperIdentity) (*domain.Paper, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.papers {
		switch {
		case id.DOI != "" && strings.EqualFold(p.DOI, id.DOI),
			id.PubMedID != "" && p.PubMedID == id.PubMedID,
			id.ArXivID != "" && p.ArXivID == id.ArXivID,
			id.Title != "" && p.Title == id.Title:
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

// Create stores a copy of p.
func (s *MemoryStore) Create(_ context.Context, p *domain.Paper) (*domain.Paper, error) {
	if err := prepareForCreate(p, s.now()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCanon[p.CanonicalID]; ok {
		return nil, alreadyExists(p)
	}
	c := *p
	c.Authors = slices.Clone(p.Authors)
	c.Keywords = slices.Clone(p.Keywords)
	s.papers = append(s.papers, &c)
	s.byCanon[c.CanonicalID] = &c
	return p, nil
}

// QueryCitationEdges returns the sorted cited and citing ids of id.
func (s *MemoryStore) QueryCitationEdges(_ context.Context, id string) ([]string, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.outgoing[id])
	in := slices.Clone(s.incoming[id])
	slices.Sort(out)
	slices.Sort(in)
	return out, in, nil
}

// AddCitation stores citing -> cited.
func (s *MemoryStore) AddCitation(_ context.Context, citingID, citedID string) (bool, error) {
	edge, err := checkEdge(s.policy, citingID, citedID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[edge]; ok {
		return false, nil
	}
	s.edges[edge] = struct{}{}
	s.outgoing[edge.CitingID] = append(s.outgoing[edge.CitingID], edge.CitedID)
	s.incoming[edge.CitedID] = append(s.incoming[edge.CitedID], edge.CitingID)
	return true, nil
}

// ListTitles returns stored titles in insertion order.
func (s *MemoryStore) ListTitles(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titles := make([]string, 0, len(s.papers))
	for _, p := range s.papers {
		titles = append(titles, p.Title)
	}
	return titles, nil
}

// Len returns the number of stored papers.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.papers)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
