package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-harvester/internal/config"
	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/observability"
	"github.com/helixir/literature-harvester/internal/papersources"
	"github.com/helixir/literature-harvester/internal/papersources/arxiv"
	"github.com/helixir/literature-harvester/internal/papersources/openalex"
	"github.com/helixir/literature-harvester/internal/papersources/pubmed"
	"github.com/helixir/literature-harvester/internal/papersources/semanticscholar"
	"github.com/helixir/literature-harvester/internal/relevance"
	"github.com/helixir/literature-harvester/internal/store"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitConfiguration = 2
	ExitCheckpoint    = 3
	ExitLocked        = 4
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, domain.ErrCheckpoint):
		return ExitCheckpoint
	case errors.Is(err, store.ErrHarvestLocked):
		return ExitLocked
	default:
		return ExitError
	}
}

// loadEnv loads explicit env files, or .env when none are given. A missing
// default .env is not an error.
func loadEnv(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// loadConfig loads env files and configuration.
func loadConfig() (*config.Config, error) {
	if err := loadEnv(envFiles); err != nil {
		return nil, err
	}
	return config.LoadFile(configPath)
}

func newLogger(cfg *config.Config, command string) zerolog.Logger {
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	return logger.With().Str("command", command).Logger()
}

// buildRegistry registers every catalog adapter. Disabled adapters are kept
// in the registry but skipped by EnabledSources.
func buildRegistry(cfg *config.Config, logger zerolog.Logger) *papersources.Registry {
	registry := papersources.NewRegistry(cfg.Harvest.FetchTimeout, logger)

	src := cfg.Sources
	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:   src.PubMed.BaseURL,
		APIKey:    src.PubMed.APIKey,
		Timeout:   src.PubMed.Timeout,
		RateLimit: src.PubMed.RateLimit,
		Enabled:   src.PubMed.Enabled,
	}))
	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:   src.ArXiv.BaseURL,
		Timeout:   src.ArXiv.Timeout,
		RateLimit: src.ArXiv.RateLimit,
		Enabled:   src.ArXiv.Enabled,
	}))
	registry.Register(openalex.New(openalex.Config{
		BaseURL:   src.OpenAlex.BaseURL,
		Email:     src.OpenAlex.Mailto,
		Timeout:   src.OpenAlex.Timeout,
		RateLimit: src.OpenAlex.RateLimit,
		Enabled:   src.OpenAlex.Enabled,
	}))
	registry.Register(semanticscholar.New(semanticscholar.Config{
		BaseURL:   src.SemanticScholar.BaseURL,
		APIKey:    src.SemanticScholar.APIKey,
		Timeout:   src.SemanticScholar.Timeout,
		RateLimit: src.SemanticScholar.RateLimit,
		Enabled:   src.SemanticScholar.Enabled,
	}))

	return registry
}

// pageSizes maps each catalog to its configured page size.
func pageSizes(cfg *config.Config) map[domain.SourceType]int {
	return map[domain.SourceType]int{
		domain.SourceTypePubMed:          cfg.Sources.PubMed.PageSize,
		domain.SourceTypeArXiv:           cfg.Sources.ArXiv.PageSize,
		domain.SourceTypeOpenAlex:        cfg.Sources.OpenAlex.PageSize,
		domain.SourceTypeSemanticScholar: cfg.Sources.SemanticScholar.PageSize,
	}
}

// buildFilter combines the built-in vocabulary, configured lists and an
// optional vocabulary file, in increasing precedence.
func buildFilter(cfg config.RelevanceConfig) (*relevance.Filter, error) {
	vocab := relevance.DefaultVocabulary().Merge(relevance.Vocabulary{
		Indicators: cfg.Indicators,
		Units:      cfg.Units,
	})
	if cfg.VocabularyFile != "" {
		fromFile, err := relevance.LoadVocabularyFile(cfg.VocabularyFile)
		if err != nil {
			return nil, domain.NewConfigurationError("relevance.vocabulary_file", err.Error())
		}
		vocab = vocab.Merge(fromFile)
	}
	return relevance.NewFilter(vocab)
}
