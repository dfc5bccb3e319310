// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Redis, Kafka, Index, Search, Logging,
// Metrics).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the record store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for the transcript
// ingestion pipeline.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	TranscriptIngest string `yaml:"transcriptIngest"`
	IndexRebuilt     string `yaml:"indexRebuilt"`
}

// IndexConfig controls how the token index is built.
type IndexConfig struct {
	// Weighting selects the token weighting mode: "count" or "importance".
	Weighting string `yaml:"weighting"`
	// MinTokenLen discards tokens shorter than this many characters.
	MinTokenLen int `yaml:"minTokenLen"`
	// Keys restricts indexing to these record attributes. Empty means
	// every attribute except the identifier.
	Keys []string `yaml:"keys"`
	// Masks maps attribute names to regular expressions whose matches are
	// deleted from the attribute value before indexing.
	Masks map[string]string `yaml:"masks"`
	// DataDir is where index files are written.
	DataDir string `yaml:"dataDir"`
	// BuildWorkers bounds per-record tokenization parallelism during index
	// construction. Zero means GOMAXPROCS.
	BuildWorkers int `yaml:"buildWorkers"`
}

// SearchConfig holds query-side defaults.
type SearchConfig struct {
	// Scoring is the default scoring mode: "weighted", "levenshtein" or
	// "combined".
	Scoring        string        `yaml:"scoring"`
	ScoreThreshold float64       `yaml:"scoreThreshold"`
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxResults     int           `yaml:"maxResults"`
	QueryTimeout   time.Duration `yaml:"queryTimeout"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// Load reads the YAML file at path, applies environment overrides, fills
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Index.Weighting == "" {
		cfg.Index.Weighting = "importance"
	}
	if cfg.Index.MinTokenLen == 0 {
		cfg.Index.MinTokenLen = 3
	}
	if cfg.Index.DataDir == "" {
		cfg.Index.DataDir = "data/index"
	}
	if cfg.Search.Scoring == "" {
		cfg.Search.Scoring = "weighted"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 100
	}
	if cfg.Search.QueryTimeout == 0 {
		cfg.Search.QueryTimeout = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate rejects configurations that would otherwise fail on first use:
// unknown weighting or scoring modes and malformed mask patterns are caught
// here rather than at index build or query time.
func (cfg *Config) Validate() error {
	switch cfg.Index.Weighting {
	case "count", "importance":
	default:
		return fmt.Errorf("index.weighting must be %q or %q, got %q",
			"count", "importance", cfg.Index.Weighting)
	}
	if cfg.Index.MinTokenLen < 1 {
		return fmt.Errorf("index.minTokenLen must be >= 1, got %d", cfg.Index.MinTokenLen)
	}
	for attr, expr := range cfg.Index.Masks {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("index.masks[%s]: invalid pattern %q: %w", attr, expr, err)
		}
	}
	switch cfg.Search.Scoring {
	case "weighted", "levenshtein", "combined":
	default:
		return fmt.Errorf("search.scoring must be %q, %q or %q, got %q",
			"weighted", "levenshtein", "combined", cfg.Search.Scoring)
	}
	if cfg.Search.ScoreThreshold < 0 || cfg.Search.ScoreThreshold > 1 {
		return fmt.Errorf("search.scoreThreshold must be in [0,1], got %g", cfg.Search.ScoreThreshold)
	}
	return nil
}

// applyEnvOverrides applies LS_* environment variables on top of the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("LS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("LS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("LS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("LS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LS_INDEX_WEIGHTING"); v != "" {
		cfg.Index.Weighting = v
	}
	if v := os.Getenv("LS_INDEX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("LS_SEARCH_SCORING"); v != "" {
		cfg.Search.Scoring = v
	}
	if v := os.Getenv("LS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
