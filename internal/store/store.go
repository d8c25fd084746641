// Package store provides the record store backends: PostgreSQL through
// pgx, an embedded SQLite file through modernc.org/sqlite, and an
// in-memory store for tests and dry runs.
//
// Every backend implements the same contract:
//
//   - FindExisting looks a paper up by any identity field or its exact
//     title and returns (nil, nil) when nothing matches.
//   - Create inserts a paper keyed by its canonical id. A conflicting
//     canonical id yields a *domain.AlreadyExistsError.
//   - Citation edges are idempotent: adding an existing edge is a no-op.
//   - Citation ids are opaque strings and need not name a stored paper.
//
// All backends are safe for concurrent use.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/literature-harvester/internal/domain"
)

// Store is the full record store surface used by the commands.
type Store interface {
	FindExisting(ctx context.Context, id domain.PaperIdentity) (*domain.Paper, error)
	Create(ctx context.Context, p *domain.Paper) (*domain.Paper, error)
	QueryCitationEdges(ctx context.Context, id string) (outgoing, incoming []string, err error)
	CitationWriter
	TitleLister
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// CitationWriter ingests citation edges.
type CitationWriter interface {
	// AddCitation stores citing -> cited. It reports whether a new edge was
	// created; an existing edge returns (false, nil).
	AddCitation(ctx context.Context, citingID, citedID string) (bool, error)
}

// TitleLister lists every stored title so a resumed harvest can seed its
// duplicate index.
type TitleLister interface {
	ListTitles(ctx context.Context) ([]string, error)
}

// prepareForCreate fills the generated fields of p and validates it.
func prepareForCreate(p *domain.Paper, now time.Time) error {
	if p == nil {
		return domain.NewValidationError("paper", "paper cannot be nil")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CanonicalID == "" {
		p.CanonicalID = domain.GenerateCanonicalID(p.Identity())
	}
	p.Keywords = domain.NormalizeKeywords(p.Keywords)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
	}
	return nil
}

// validateIdentity rejects lookups that could match nothing meaningful.
func validateIdentity(id domain.PaperIdentity) error {
	if id.IsEmpty() {
		return domain.NewValidationError("identity", "at least one identity field is required")
	}
	return nil
}

// checkEdge applies the self-citation policy and normalizes the ids.
func checkEdge(policy domain.SelfCitationPolicy, citingID, citedID string) (domain.CitationEdge, error) {
	edge := domain.CitationEdge{
		CitingID: strings.TrimSpace(citingID),
		CitedID:  strings.TrimSpace(citedID),
	}
	if err := policy.Check(edge); err != nil {
		return edge, err
	}
	return edge, nil
}

func alreadyExists(p *domain.Paper) error {
	return domain.NewAlreadyExistsError("paper", p.CanonicalID)
}
