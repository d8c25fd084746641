package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/literature-harvester/internal/config"
	"github.com/helixir/literature-harvester/internal/database"
	"github.com/helixir/literature-harvester/internal/domain"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL record store schema",
	Long: `Apply or roll back the SQL migrations of the postgres record store.
The sqlite and memory stores create their schema on open and need no
migrations.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Up()
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Down()
		})
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps <n>",
	Short: "Run n migration steps (positive = up, negative = down)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
		}
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Steps(n)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(*database.Migrator, zerolog.Logger) error { return nil })
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force the migration version after a failed migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("version must be a non-negative integer, got %q", args[0])
		}
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Force(v)
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStepsCmd, migrateVersionCmd, migrateForceCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (default: schema embedded in the binary)")
}

// withMigrator connects to postgres, runs fn and reports the resulting
// schema version.
func withMigrator(ctx context.Context, fn func(*database.Migrator, zerolog.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		return domain.NewConfigurationError("store.driver",
			fmt.Sprintf("migrations apply to the postgres store only, configured driver is %q", cfg.Store.Driver))
	}
	logger := newLogger(cfg, "migrate")

	dir := cfg.Database.MigrationPath
	if migrationsPath != "" {
		dir = migrationsPath
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, logger, database.WithMigrationsDir(dir))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := fn(migrator, logger); err != nil {
		return err
	}

	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return nil
	}
	latest, err := migrator.Latest()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine latest migration")
	}
	result := MigrationVersion{Version: v, Latest: latest, Dirty: dirty, Source: migrator.Origin()}
	if humanOutput {
		outputHuman("schema version %d of %d (dirty: %t, migrations: %s)\n", result.Version, result.Latest, result.Dirty, result.Source)
		return nil
	}
	return outputJSON(result)
}

// MigrationVersion is the JSON output of the migrate commands.
type MigrationVersion struct {
	Version uint   `json:"version"`
	Latest  uint   `json:"latest"`
	Dirty   bool   `json:"dirty"`
	Source  string `json:"source"`
}
