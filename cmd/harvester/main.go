// Package main provides the harvester CLI: resumable literature harvests and
// citation graph queries against the record store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath  string
	envFiles    []string
	humanOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvest microbial fuel cell literature and query its citation graph",
	Long: `harvester collects papers from PubMed, arXiv, OpenAlex and Semantic
Scholar in resumable rounds, drops irrelevant and near-duplicate records,
and stores the rest. A checkpoint file written after every round lets an
interrupted harvest continue where it stopped.

Configuration is read from config.yaml and LITHARVEST_* environment
variables. A .env file in the working directory is loaded first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default: search ., ./config, /etc/literature-harvester)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Environment files to load before reading configuration")
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
