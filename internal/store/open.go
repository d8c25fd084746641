package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-harvester/internal/config"
	"github.com/helixir/literature-harvester/internal/database"
	"github.com/helixir/literature-harvester/internal/domain"
)

// Open creates the store selected by cfg.Store.Driver. For postgres the
// pending migrations are applied first when database.migration_auto_run
// is set.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	policy, err := domain.ParseSelfCitationPolicy(cfg.Citation.SelfCitation)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Database.MigrationAutoRun {
			if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
				db.Close()
				return nil, err
			}
		}
		return NewPostgresStoreFromDB(db, policy), nil

	case config.StoreDriverSQLite:
		s, err := OpenSQLite(ctx, cfg.Store.SQLitePath, policy)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.Store.SQLitePath).Msg("sqlite record store opened")
		return s, nil

	case config.StoreDriverMemory:
		logger.Warn().Msg("using in-memory record store; nothing will be persisted")
		return NewMemoryStore(policy), nil

	default:
		return nil, domain.NewConfigurationError("store.driver", fmt.Sprintf("unknown driver %q", cfg.Store.Driver))
	}
}

func migrate(db *database.DB, dir string, logger zerolog.Logger) error {
	m, err := database.NewMigrator(db, logger, database.WithMigrationsDir(dir))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
