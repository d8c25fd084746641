package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/helixir/literature-harvester/internal/harvest"
)

var checkpointFile string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset the harvest checkpoint",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointShow,
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the checkpoint so the next harvest starts from offset zero",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointReset,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd, checkpointResetCmd)
	checkpointCmd.PersistentFlags().StringVar(&checkpointFile, "checkpoint", "", "Checkpoint file (overrides harvest.checkpoint_path)")
}

func checkpointStore() (*harvest.FileCheckpointStore, error) {
	path := checkpointFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Harvest.CheckpointPath
	}
	return harvest.NewFileCheckpointStore(path), nil
}

// CheckpointResult is the JSON output for checkpoint show.
type CheckpointResult struct {
	Path       string              `json:"path"`
	Checkpoint *harvest.Checkpoint `json:"checkpoint"`
}

func runCheckpointShow(cmd *cobra.Command, _ []string) error {
	cs, err := checkpointStore()
	if err != nil {
		return err
	}
	cp, err := cs.Load(cmd.Context())
	if err != nil {
		return err
	}

	if humanOutput {
		outputHuman("Checkpoint: %s\n", cs.Location())
		if cp.LastRun.IsZero() {
			outputHuman("Last run:   never\n")
		} else {
			outputHuman("Last run:   %s\n", cp.LastRun.Format("2006-01-02 15:04:05 MST"))
		}
		outputHuman("Collected:  %d\n", cp.TotalCollected)
		outputHuman("Imported:   %d\n", cp.TotalImported)
		outputHuman("Seen:       %d titles\n", len(cp.ProcessedFingerprints))
		offsets := cp.Offsets()
		for _, source := range slices.Sorted(maps.Keys(offsets)) {
			outputHuman("  %-18s offset %d\n", source, offsets[source])
		}
		return nil
	}
	return outputJSON(CheckpointResult{Path: cs.Location(), Checkpoint: cp})
}

func runCheckpointReset(_ *cobra.Command, _ []string) error {
	cs, err := checkpointStore()
	if err != nil {
		return err
	}
	if err := cs.Reset(); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	if humanOutput {
		outputHuman("checkpoint %s removed\n", cs.Location())
		return nil
	}
	return outputJSON(StatusResponse{Status: "reset", Path: cs.Location()})
}
