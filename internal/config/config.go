// Package config provides configuration management for the literature harvester.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/papersources/arxiv"
	"github.com/helixir/literature-harvester/internal/papersources/openalex"
	"github.com/helixir/literature-harvester/internal/papersources/pubmed"
	"github.com/helixir/literature-harvester/internal/papersources/semanticscholar"
)

// maxPageSizes holds the largest page each catalog serves in one request.
var maxPageSizes = map[string]int{
	"pubmed":           pubmed.MaxPageSize,
	"arxiv":            arxiv.MaxPageSize,
	"openalex":         openalex.MaxPageSize,
	"semantic_scholar": semanticscholar.MaxPageSize,
}

// EnvPrefix is the prefix for every environment variable override.
const EnvPrefix = "LITHARVEST"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Record store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config holds all configuration for the literature harvester.
type Config struct {
	// Harvest contains the run parameters of the harvest coordinator.
	Harvest HarvestConfig `mapstructure:"harvest"`
	// Sources contains per-catalog adapter settings.
	Sources SourcesConfig `mapstructure:"sources"`
	// Relevance contains the indicator and unit vocabulary.
	Relevance RelevanceConfig `mapstructure:"relevance"`
	// Dedup contains fuzzy title matching settings.
	Dedup DedupConfig `mapstructure:"dedup"`
	// Citation contains citation engine settings.
	Citation CitationConfig `mapstructure:"citation"`
	// Store selects the record store backend.
	Store StoreConfig `mapstructure:"store"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Server contains HTTP query API settings.
	Server ServerConfig `mapstructure:"server"`
	// Kafka contains paper-imported event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// HarvestConfig holds the operator run parameters.
type HarvestConfig struct {
	// Query is the search string sent to every catalog.
	Query string `mapstructure:"query"`
	// CheckpointPath is the JSON file the coordinator resumes from.
	CheckpointPath string `mapstructure:"checkpoint_path"`
	// RoundDelay is the pause between rounds.
	RoundDelay time.Duration `mapstructure:"round_delay"`
	// MaxRounds caps the number of rounds executed in one run.
	MaxRounds int `mapstructure:"max_rounds"`
	// StoreWorkers bounds concurrent record store writes.
	StoreWorkers int `mapstructure:"store_workers"`
	// FetchTimeout bounds a single adapter fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// ResolveLinks enables external URL resolution before storing.
	ResolveLinks bool `mapstructure:"resolve_links"`
}

// SourcesConfig holds per-catalog adapter settings.
type SourcesConfig struct {
	PubMed          SourceConfig `mapstructure:"pubmed"`
	ArXiv           SourceConfig `mapstructure:"arxiv"`
	OpenAlex        SourceConfig `mapstructure:"openalex"`
	SemanticScholar SourceConfig `mapstructure:"semantic_scholar"`
}

// SourceConfig holds configuration for a single catalog adapter.
type SourceConfig struct {
	// Enabled controls whether the adapter takes part in harvests.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is loaded from the environment only.
	APIKey string `mapstructure:"-"`
	// BaseURL is the catalog API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// PageSize is the number of records requested per round.
	PageSize int `mapstructure:"page_size"`
	// Mailto is sent to catalogs with a polite pool (OpenAlex).
	Mailto string `mapstructure:"mailto"`
}

// RelevanceConfig holds the relevance vocabulary.
type RelevanceConfig struct {
	// Indicators are performance indicator phrases. Empty uses the built-in list.
	Indicators []string `mapstructure:"indicators"`
	// Units are measurement unit tokens. Empty uses the built-in list.
	Units []string `mapstructure:"units"`
	// VocabularyFile is an optional YAML file merged over the lists above.
	VocabularyFile string `mapstructure:"vocabulary_file"`
}

// DedupConfig holds fuzzy title matching settings.
type DedupConfig struct {
	// Threshold is the similarity a title must exceed to be a duplicate.
	Threshold float64 `mapstructure:"threshold"`
	// FingerprintLength truncates normalized titles.
	FingerprintLength int `mapstructure:"fingerprint_length"`
}

// CitationConfig holds citation engine settings.
type CitationConfig struct {
	// SelfCitation is "allow" or "reject".
	SelfCitation string `mapstructure:"self_citation"`
	// MaxDepth caps network depth and path length accepted from callers.
	MaxDepth int `mapstructure:"max_depth"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	// Driver is postgres, sqlite or memory.
	Driver string `mapstructure:"driver"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath overrides the embedded schema with a directory of
	// migration files. Empty uses the migrations compiled into the binary.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to.
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port.
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KafkaConfig holds paper-imported event publisher settings.
type KafkaConfig struct {
	// Enabled turns on event publishing.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the destination topic.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages per batch.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait before flushing a batch.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// DSN returns the PostgreSQL connection string.
// User and password are URL-encoded to handle special characters safely.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load reads configuration from defaults, an optional config.yaml and
// LITHARVEST_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/literature-harvester")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadSecrets loads API keys from the environment only, never from files.
func loadSecrets(cfg *Config) {
	cfg.Sources.PubMed.APIKey = os.Getenv(EnvPrefix + "_SOURCES_PUBMED_API_KEY")
	cfg.Sources.ArXiv.APIKey = os.Getenv(EnvPrefix + "_SOURCES_ARXIV_API_KEY")
	cfg.Sources.OpenAlex.APIKey = os.Getenv(EnvPrefix + "_SOURCES_OPENALEX_API_KEY")
	cfg.Sources.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.query", "microbial fuel cell")
	v.SetDefault("harvest.checkpoint_path", "harvest_checkpoint.json")
	v.SetDefault("harvest.round_delay", "2s")
	v.SetDefault("harvest.max_rounds", 1000)
	v.SetDefault("harvest.store_workers", 4)
	v.SetDefault("harvest.fetch_timeout", "30s")
	v.SetDefault("harvest.resolve_links", false)

	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("sources.pubmed.timeout", "30s")
	v.SetDefault("sources.pubmed.rate_limit", 3.0) // NCBI allows 3 req/sec without an API key
	v.SetDefault("sources.pubmed.page_size", 100)

	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 0.33) // arXiv asks for one request every 3 seconds
	v.SetDefault("sources.arxiv.page_size", 100)

	v.SetDefault("sources.openalex.enabled", true)
	v.SetDefault("sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("sources.openalex.timeout", "30s")
	v.SetDefault("sources.openalex.rate_limit", 10.0)
	v.SetDefault("sources.openalex.page_size", 100)
	v.SetDefault("sources.openalex.mailto", "")

	v.SetDefault("sources.semantic_scholar.enabled", true)
	v.SetDefault("sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("sources.semantic_scholar.page_size", 100)

	v.SetDefault("relevance.indicators", []string{})
	v.SetDefault("relevance.units", []string{})
	v.SetDefault("relevance.vocabulary_file", "")

	v.SetDefault("dedup.threshold", 0.85)
	v.SetDefault("dedup.fingerprint_length", 50)

	v.SetDefault("citation.self_citation", string(domain.SelfCitationAllow))
	v.SetDefault("citation.max_depth", 10)

	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.sqlite_path", "literature.db")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "litharvest")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "literature_harvester")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "")
	v.SetDefault("database.migration_auto_run", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.literature_harvester.papers")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate validates the configuration. Every failure is a
// *domain.ConfigurationError naming the offending key.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Harvest.Query) == "" {
		return domain.NewConfigurationError("harvest.query", "query is required")
	}
	if c.Harvest.CheckpointPath == "" {
		return domain.NewConfigurationError("harvest.checkpoint_path", "checkpoint path is required")
	}
	if c.Harvest.MaxRounds <= 0 {
		return domain.NewConfigurationError("harvest.max_rounds", "must be positive")
	}
	if c.Harvest.StoreWorkers <= 0 {
		return domain.NewConfigurationError("harvest.store_workers", "must be positive")
	}
	if c.Harvest.RoundDelay < 0 {
		return domain.NewConfigurationError("harvest.round_delay", "must not be negative")
	}
	if c.Harvest.FetchTimeout <= 0 {
		return domain.NewConfigurationError("harvest.fetch_timeout", "must be positive")
	}

	sources := map[string]SourceConfig{
		"pubmed":           c.Sources.PubMed,
		"arxiv":            c.Sources.ArXiv,
		"openalex":         c.Sources.OpenAlex,
		"semantic_scholar": c.Sources.SemanticScholar,
	}
	enabled := 0
	for name, src := range sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if src.PageSize <= 0 {
			return domain.NewConfigurationError("sources."+name+".page_size", "must be positive")
		}
		if limit := maxPageSizes[name]; src.PageSize > limit {
			return domain.NewConfigurationError("sources."+name+".page_size",
				fmt.Sprintf("must not exceed %d", limit))
		}
		if src.RateLimit <= 0 {
			return domain.NewConfigurationError("sources."+name+".rate_limit", "must be positive")
		}
	}
	if enabled == 0 {
		return domain.NewConfigurationError("sources", "at least one source must be enabled")
	}

	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold >= 1 {
		return domain.NewConfigurationError("dedup.threshold", "must be between 0 and 1 exclusive")
	}
	if c.Dedup.FingerprintLength <= 0 {
		return domain.NewConfigurationError("dedup.fingerprint_length", "must be positive")
	}

	if _, err := domain.ParseSelfCitationPolicy(c.Citation.SelfCitation); err != nil {
		return err
	}
	if c.Citation.MaxDepth <= 0 {
		return domain.NewConfigurationError("citation.max_depth", "must be positive")
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.Host == "" {
			return domain.NewConfigurationError("database.host", "database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return domain.NewConfigurationError("database.port", fmt.Sprintf("invalid database port: %d", c.Database.Port))
		}
		if c.Database.Name == "" {
			return domain.NewConfigurationError("database.name", "database name is required")
		}
		if c.Database.MaxConns < 0 || c.Database.MinConns < 0 {
			return domain.NewConfigurationError("database.max_conns", "connection limits must not be negative")
		}
		if c.Database.MaxConnLifetime < 0 || c.Database.MaxConnIdleTime < 0 ||
			c.Database.HealthCheckPeriod < 0 || c.Database.ConnectTimeout < 0 {
			return domain.NewConfigurationError("database", "pool durations must not be negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return domain.NewConfigurationError("database.max_conns",
				fmt.Sprintf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns))
		}
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			return domain.NewConfigurationError("store.sqlite_path", "sqlite path is required")
		}
	case StoreDriverMemory:
	default:
		return domain.NewConfigurationError("store.driver", fmt.Sprintf("unknown driver %q", c.Store.Driver))
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return domain.NewConfigurationError("server.http_port", fmt.Sprintf("invalid HTTP port: %d", c.Server.HTTPPort))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return domain.NewConfigurationError("kafka.brokers", "at least one broker is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return domain.NewConfigurationError("kafka.topic", "topic is required when kafka is enabled")
		}
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return domain.NewConfigurationError("logging.level", fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}

	return nil
}
