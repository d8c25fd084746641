package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/helixir/literature-harvester/internal/domain"
)

const sqliteDateLayout = "2006-01-02"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS papers (
	id                   TEXT PRIMARY KEY,
	canonical_id         TEXT NOT NULL UNIQUE,
	doi                  TEXT NOT NULL DEFAULT '',
	pubmed_id            TEXT NOT NULL DEFAULT '',
	arxiv_id             TEXT NOT NULL DEFAULT '',
	title                TEXT NOT NULL,
	authors              TEXT NOT NULL DEFAULT '[]',
	abstract             TEXT NOT NULL DEFAULT '',
	journal              TEXT NOT NULL DEFAULT '',
	publication_date     TEXT,
	external_url         TEXT NOT NULL DEFAULT '',
	source               TEXT NOT NULL,
	keywords             TEXT NOT NULL DEFAULT '[]',
	has_performance_data INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers (doi COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_papers_pubmed_id ON papers (pubmed_id);
CREATE INDEX IF NOT EXISTS idx_papers_arxiv_id ON papers (arxiv_id);
CREATE INDEX IF NOT EXISTS idx_papers_title ON papers (title);

CREATE TABLE IF NOT EXISTS citation_edges (
	citing_id  TEXT NOT NULL,
	cited_id   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (citing_id, cited_id)
);
CREATE INDEX IF NOT EXISTS idx_citation_edges_cited_id ON citation_edges (cited_id);
`

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is a single-file store for local harvests.
type SQLiteStore struct {
	db     *sql.DB
	policy domain.SelfCitationPolicy
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, policy domain.SelfCitationPolicy) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, policy: policy, now: time.Now}, nil
}

// FindExisting looks a paper up by DOI (case-insensitive), PubMed id,
// arXiv id or exact title. Returns (nil, nil) when nothing matches.
func (s *SQLiteStore) FindExisting(ctx context.Context, id domain.PaperIdentity) (*domain.Paper, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any
	if id.DOI != "" {
		conditions = append(conditions, "doi = ? COLLATE NOCASE")
		args = append(args, id.DOI)
	}
	if id.PubMedID != "" {
		conditions = append(conditions, "pubmed_id = ?")
		args = append(args, id.PubMedID)
	}
	if id.ArXivID != "" {
		conditions = append(conditions, "arxiv_id = ?")
		args = append(args, id.ArXivID)
	}
	if id.Title != "" {
		conditions = append(conditions, "title = ?")
		args = append(args, id.Title)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM papers
		WHERE %s
		ORDER BY rowid
		LIMIT 1`, paperColumns, strings.Join(conditions, " OR "))

	paper, err := scanSQLitePaper(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find existing paper: %w", err)
	}
	return paper, nil
}

// Create inserts p. A paper with the same canonical id already stored
// yields a *domain.AlreadyExistsError.
func (s *SQLiteStore) Create(ctx context.Context, p *domain.Paper) (*domain.Paper, error) {
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

	var pubDate sql.NullString
	if p.PublicationDate != nil {
		pubDate = sql.NullString{String: p.PublicationDate.Format(sqliteDateLayout), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO papers (
			id, canonical_id, doi, pubmed_id, arxiv_id, title, authors, abstract,
			journal, publication_date, external_url, source, keywords,
			has_performance_data, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (canonical_id) DO NOTHING`,
		p.ID.String(),
		p.CanonicalID,
		p.DOI,
		p.PubMedID,
		p.ArXivID,
		p.Title,
		string(authorsJSON),
		p.Abstract,
		p.Journal,
		pubDate,
		p.ExternalURL,
		string(p.Source),
		string(keywordsJSON),
		p.HasPerformanceData,
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}
	if n == 0 {
		return nil, alreadyExists(p)
	}
	return p, nil
}

// QueryCitationEdges returns the sorted cited and citing ids of id.
func (s *SQLiteStore) QueryCitationEdges(ctx context.Context, id string) ([]string, []string, error) {
	outgoing, err := s.queryStrings(ctx,
		`SELECT cited_id FROM citation_edges WHERE citing_id = ? ORDER BY cited_id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query outgoing citations: %w", err)
	}
	incoming, err := s.queryStrings(ctx,
		`SELECT citing_id FROM citation_edges WHERE cited_id = ? ORDER BY citing_id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query incoming citations: %w", err)
	}
	return outgoing, incoming, nil
}

// AddCitation stores citing -> cited, subject to the self-citation policy.
func (s *SQLiteStore) AddCitation(ctx context.Context, citingID, citedID string) (bool, error) {
	edge, err := checkEdge(s.policy, citingID, citedID)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO citation_edges (citing_id, cited_id, created_at) VALUES (?, ?, ?)`,
		edge.CitingID, edge.CitedID, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("failed to add citation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add citation: %w", err)
	}
	return n > 0, nil
}

// ListTitles returns every stored title, oldest first.
func (s *SQLiteStore) ListTitles(ctx context.Context) ([]string, error) {
	titles, err := s.queryStrings(ctx, `SELECT title FROM papers ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	return titles, nil
}

// Ping checks the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return out, rows.Err()
}

func scanSQLitePaper(row *sql.Row) (*domain.Paper, error) {
	var (
		p            domain.Paper
		id           string
		source       string
		authorsJSON  string
		keywordsJSON string
		pubDate      sql.NullString
		createdAt    string
	)
	err := row.Scan(
		&id, &p.CanonicalID, &p.DOI, &p.PubMedID, &p.ArXivID,
		&p.Title, &authorsJSON, &p.Abstract, &p.Journal,
		&pubDate, &p.ExternalURL, &source, &keywordsJSON,
		&p.HasPerformanceData, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid paper id %q: %w", id, err)
	}
	p.Source = domain.SourceType(source)
	if err := json.Unmarshal([]byte(authorsJSON), &p.Authors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
	}
	if err := json.Unmarshal([]byte(keywordsJSON), &p.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	if len(p.Authors) == 0 {
		p.Authors = nil
	}
	if len(p.Keywords) == 0 {
		p.Keywords = nil
	}
	if pubDate.Valid {
		d, err := time.Parse(sqliteDateLayout, pubDate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid publication date %q: %w", pubDate.String, err)
		}
		p.PublicationDate = &d
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return &p, nil
}
