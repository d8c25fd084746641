package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-harvester/migrations"
)

const (
	migrationsTable = "schema_migrations"

	// EmbeddedSource names the schema compiled into the binary.
	EmbeddedSource = "embedded"
)

// MigratorOption configures a Migrator.
type MigratorOption func(*migratorOptions)

type migratorOptions struct {
	dir string
}

// WithMigrationsDir reads migrations from dir instead of the embedded
// schema. An empty dir keeps the embedded schema.
func WithMigrationsDir(dir string) MigratorOption {
	return func(o *migratorOptions) { o.dir = dir }
}

// Migrator applies the record store schema to postgres.
type Migrator struct {
	migrate *migrate.Migrate
	source  source.Driver
	sqlDB   *sql.DB
	origin  string
	logger  zerolog.Logger
}

// OpenMigrationSource returns the migration files as a golang-migrate source
// and a label for logs. An empty dir selects the embedded schema.
func OpenMigrationSource(dir string) (source.Driver, string, error) {
	if dir == "" {
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, "", fmt.Errorf("open embedded migrations: %w", err)
		}
		return src, EmbeddedSource, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, "", fmt.Errorf("migrations directory: %w", err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("migrations directory: %s is not a directory", dir)
	}
	src, err := iofs.New(os.DirFS(dir), ".")
	if err != nil {
		return nil, "", fmt.Errorf("open migrations in %s: %w", dir, err)
	}
	return src, dir, nil
}

// LatestVersion walks src and returns its highest migration version.
func LatestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, errors.New("no migrations found")
		}
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}

// NewMigrator builds a migrator over db's pool.
func NewMigrator(db *DB, logger zerolog.Logger, opts ...MigratorOption) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if db.pool == nil {
		return nil, errors.New("database pool not initialized")
	}

	var o migratorOptions
	for _, opt := range opts {
		opt(&o)
	}

	src, origin, err := OpenMigrationSource(o.dir)
	if err != nil {
		return nil, err
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = src.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		source:  src,
		sqlDB:   sqlDB,
		origin:  origin,
		logger: logger.With().
			Str("component", "migrator").
			Str("migrations", origin).
			Logger(),
	}, nil
}

// Origin reports where the migrations were read from.
func (m *Migrator) Origin() string {
	return m.origin
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("applying record store schema")
	return m.run("up", m.migrate.Up())
}

// Down rolls the schema back to empty. This drops every stored paper.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back record store schema")
	return m.run("down", m.migrate.Down())
}

// Steps moves n migrations up (n > 0) or down (n < 0).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("moving record store schema")
	err := m.migrate.Steps(n)
	// Stepping past the newest or oldest file surfaces as a missing file.
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Info().Int("steps", n).Msg("schema already at the last available migration")
		return nil
	}
	return m.run("steps", err)
}

func (m *Migrator) run(action string, err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info().Str("action", action).Msg("record store schema unchanged")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	m.logger.Info().Str("action", action).Msg("record store schema migrated")
	return nil
}

// Version returns the applied migration version. A database that was never
// migrated reports version 0 without an error.
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Latest returns the newest migration version available from the source.
func (m *Migrator) Latest() (uint, error) {
	return LatestVersion(m.source)
}

// Force records version as applied and clears the dirty flag.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing record store schema version")
	return m.migrate.Force(version)
}

// Close releases the source and the sql.DB view of the pool.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	var errs []error
	if sourceErr != nil {
		errs = append(errs, fmt.Errorf("close migration source: %w", sourceErr))
	}
	if dbErr != nil {
		errs = append(errs, fmt.Errorf("close migration database: %w", dbErr))
	}
	return errors.Join(errs...)
}
