package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/literature-harvester/internal/dedup"
	"github.com/helixir/literature-harvester/internal/events"
	"github.com/helixir/literature-harvester/internal/harvest"
	"github.com/helixir/literature-harvester/internal/observability"
	"github.com/helixir/literature-harvester/internal/papersources"
	"github.com/helixir/literature-harvester/internal/store"
)

var (
	harvestQuery      string
	harvestCheckpoint string
	harvestMaxRounds  int
	harvestRoundDelay time.Duration
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run a resumable harvest across every enabled source",
	Long: `Run harvest rounds until every source is exhausted, the round cap is
reached or the process is interrupted. Offsets and seen titles are
checkpointed after every round; rerunning the command resumes from the
checkpoint.

Examples:
  harvester harvest
  harvester harvest --query "microbial electrolysis cell" --max-rounds 5
  harvester harvest --checkpoint /var/lib/harvester/cp.json --human`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	harvestCmd.Flags().StringVarP(&harvestQuery, "query", "q", "", "Search query (overrides harvest.query)")
	harvestCmd.Flags().StringVar(&harvestCheckpoint, "checkpoint", "", "Checkpoint file (overrides harvest.checkpoint_path)")
	harvestCmd.Flags().IntVar(&harvestMaxRounds, "max-rounds", 0, "Round cap for this run (overrides harvest.max_rounds)")
	harvestCmd.Flags().DurationVar(&harvestRoundDelay, "round-delay", -1, "Pause between rounds (overrides harvest.round_delay)")
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if harvestQuery != "" {
		cfg.Harvest.Query = harvestQuery
	}
	if harvestCheckpoint != "" {
		cfg.Harvest.CheckpointPath = harvestCheckpoint
	}
	if harvestMaxRounds > 0 {
		cfg.Harvest.MaxRounds = harvestMaxRounds
	}
	if harvestRoundDelay >= 0 {
		cfg.Harvest.RoundDelay = harvestRoundDelay
	}

	logger := newLogger(cfg, "harvest")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close record store")
		}
	}()

	// Two harvesters sharing one database would interleave offsets.
	if pg, ok := st.(*store.PostgresStore); ok {
		release, err := pg.AcquireHarvestLock(ctx)
		if err != nil {
			return err
		}
		defer release()
	}

	filter, err := buildFilter(cfg.Relevance)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("literature_harvester")
	}

	opts := []harvest.Option{
		harvest.WithLogger(logger),
		harvest.WithMetrics(metrics),
	}
	if cfg.Harvest.ResolveLinks {
		opts = append(opts, harvest.WithLinkValidator(papersources.NewLinkResolver(papersources.HTTPClientConfig{
			Timeout: cfg.Harvest.FetchTimeout,
		})))
	}
	if cfg.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Kafka, logger)
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close event publisher")
			}
		}()
		opts = append(opts, harvest.WithEventPublisher(publisher))
	}

	coordinator, err := harvest.NewCoordinator(
		harvest.Config{
			Query:        cfg.Harvest.Query,
			PageSizes:    pageSizes(cfg),
			RoundDelay:   cfg.Harvest.RoundDelay,
			MaxRounds:    cfg.Harvest.MaxRounds,
			StoreWorkers: cfg.Harvest.StoreWorkers,
			Dedup: dedup.Config{
				Threshold:         cfg.Dedup.Threshold,
				FingerprintLength: cfg.Dedup.FingerprintLength,
			},
		},
		buildRegistry(cfg, logger),
		st,
		filter,
		harvest.NewFileCheckpointStore(cfg.Harvest.CheckpointPath),
		opts...,
	)
	if err != nil {
		return err
	}

	summary, runErr := coordinator.Run(ctx)
	if summary != nil {
		if err := printSummary(summary); err != nil {
			return err
		}
	}
	if runErr != nil && summary != nil && summary.State == harvest.StateCancelled {
		// Interruption after a saved checkpoint is a clean stop.
		return nil
	}
	return runErr
}
