package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/literature-harvester/internal/database"
	"github.com/helixir/literature-harvester/internal/domain"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

var _ Store = (*PostgresStore)(nil)

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	db     database.DBTX
	owner  *database.DB
	policy domain.SelfCitationPolicy
	now    func() time.Time
}

// NewPostgresStore creates a store over db. db may be a pool, a
// transaction or a mock.
func NewPostgresStore(db database.DBTX, policy domain.SelfCitationPolicy) *PostgresStore {
	return &PostgresStore{db: db, policy: policy, now: time.Now}
}

// NewPostgresStoreFromDB creates a store that closes db on Close.
func NewPostgresStoreFromDB(db *database.DB, policy domain.SelfCitationPolicy) *PostgresStore {
	s := NewPostgresStore(db, policy)
	s.owner = db
	return s
}

// ErrHarvestLocked is returned when another harvester holds the lock.
var ErrHarvestLocked = errors.New("another harvest is running against this database")

// AcquireHarvestLock takes the database-wide harvest advisory lock. The
// returned function releases it.
func (s *PostgresStore) AcquireHarvestLock(ctx context.Context) (func(), error) {
	if s.owner == nil {
		return func() {}, nil
	}
	release, ok, err := s.owner.AcquireAdvisoryLock(ctx, database.HarvestLockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire harvest lock: %w", err)
	}
	if !ok {
		return nil, ErrHarvestLocked
	}
	return release, nil
}

const paperColumns = `id, canonical_id, doi, pubmed_id, arxiv_id, title, authors, abstract,
			journal, publication_date, external_url, source, keywords,
			has_performance_data, created_at`

// FindExisting looks a paper up by DOI (case-insensitive), PubMed id,
// arXiv id or exact title. Returns (nil, nil) when nothing matches.
func (s *PostgresStore) FindExisting(ctx context.Context, id domain.PaperIdentity) (*domain.Paper, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any
	add := func(cond string, v string) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if id.DOI != "" {
		add("lower(doi) = lower($%d)", id.DOI)
	}
	if id.PubMedID != "" {
		add("pubmed_id = $%d", id.PubMedID)
	}
	if id.ArXivID != "" {
		add("arxiv_id = $%d", id.ArXivID)
	}
	if id.Title != "" {
		add("title = $%d", id.Title)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM papers
		WHERE %s
		ORDER BY created_at
		LIMIT 1`, paperColumns, strings.Join(conditions, " OR "))

	paper, err := scanPaper(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find existing paper: %w", err)
	}
	return paper, nil
}

// Create inserts p. A paper with the same canonical id already stored
// yields a *domain.AlreadyExistsError.
func (s *PostgresStore) Create(ctx context.Context, p *domain.Paper) (*domain.Paper, error) {
	if err := prepareForCreate(p, s.now()); err != nil {
		return nil, err
	}

	authorsJSON, err := marshalStrings(p.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}
	keywordsJSON, err := marshalStrings(p.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO papers (
			id, canonical_id, doi, pubmed_id, arxiv_id, title, authors, abstract,
			journal, publication_date, external_url, source, keywords,
			has_performance_data, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (canonical_id) DO NOTHING
		RETURNING created_at`

	err = s.db.QueryRow(ctx, query,
		p.ID,
		p.CanonicalID,
		p.DOI,
		p.PubMedID,
		p.ArXivID,
		p.Title,
		authorsJSON,
		p.Abstract,
		p.Journal,
		p.PublicationDate,
		p.ExternalURL,
		string(p.Source),
		keywordsJSON,
		p.HasPerformanceData,
		p.CreatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alreadyExists(p)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, alreadyExists(p)
		}
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}

	return p, nil
}

// QueryCitationEdges returns the sorted cited and citing ids of id.
func (s *PostgresStore) QueryCitationEdges(ctx context.Context, id string) ([]string, []string, error) {
	outgoing, err := s.queryIDs(ctx,
		`SELECT cited_id FROM citation_edges WHERE citing_id = $1 ORDER BY cited_id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query outgoing citations: %w", err)
	}
	incoming, err := s.queryIDs(ctx,
		`SELECT citing_id FROM citation_edges WHERE cited_id = $1 ORDER BY citing_id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query incoming citations: %w", err)
	}
	return outgoing, incoming, nil
}

// AddCitation stores citing -> cited, subject to the self-citation policy.
func (s *PostgresStore) AddCitation(ctx context.Context, citingID, citedID string) (bool, error) {
	edge, err := checkEdge(s.policy, citingID, citedID)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO citation_edges (citing_id, cited_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (citing_id, cited_id) DO NOTHING`

	tag, err := s.db.Exec(ctx, query, edge.CitingID, edge.CitedID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add citation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListTitles returns every stored title, oldest first.
func (s *PostgresStore) ListTitles(ctx context.Context) ([]string, error) {
	titles, err := s.queryIDs(ctx, `SELECT title FROM papers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	return titles, nil
}

// Ping runs a trivial query.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.owner != nil {
		return s.owner.Ping(ctx)
	}
	_, err := s.db.Exec(ctx, "SELECT 1")
	return err
}

// Close releases the pool if the store owns it.
func (s *PostgresStore) Close() error {
	if s.owner != nil {
		s.owner.Close()
	}
	return nil
}

func (s *PostgresStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper        domain.Paper
	source       string
	authorsJSON  []byte
	keywordsJSON []byte
}

func (d *paperScanDest) destinations() []any {
	return []any{
		&d.paper.ID, &d.paper.CanonicalID, &d.paper.DOI, &d.paper.PubMedID, &d.paper.ArXivID,
		&d.paper.Title, &d.authorsJSON, &d.paper.Abstract, &d.paper.Journal,
		&d.paper.PublicationDate, &d.paper.ExternalURL, &d.source, &d.keywordsJSON,
		&d.paper.HasPerformanceData, &d.paper.CreatedAt,
	}
}

func (d *paperScanDest) finalize() (*domain.Paper, error) {
	d.paper.Source = domain.SourceType(d.source)
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	if len(d.keywordsJSON) > 0 {
		if err := json.Unmarshal(d.keywordsJSON, &d.paper.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	if len(d.paper.Authors) == 0 {
		d.paper.Authors = nil
	}
	if len(d.paper.Keywords) == 0 {
		d.paper.Keywords = nil
	}
	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// marshalStrings encodes a string list as a JSON array, never null.
func marshalStrings(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}
