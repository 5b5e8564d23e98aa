// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, RPC, Corpus, Postgres, Redis, Kafka, Search, Ranking, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RPC       RPCConfig       `yaml:"rpc"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Search    SearchConfig    `yaml:"search"`
	Ranking   RankingConfig   `yaml:"ranking"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	// APIKeys maps caller names to keys. Empty disables authentication.
	APIKeys map[string]string `yaml:"apiKeys"`
}

// RPCConfig controls the JSON-over-TCP tool server.
type RPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// CorpusConfig selects where the content records come from.
type CorpusConfig struct {
	Source string `yaml:"source"` // files | postgres
	Dir    string `yaml:"dir"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ToolEvents string `yaml:"toolEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls result-count limits for the tools.
type SearchConfig struct {
	DefaultTopK int `yaml:"defaultTopK"`
	MaxTopK     int `yaml:"maxTopK"`
}

// RankingConfig holds the behaviour-defining weights and thresholds of the
// index, the attribute matcher and the term resolver.
type RankingConfig struct {
	TitleWeight     int     `yaml:"titleWeight"`
	MinSimilarity   float64 `yaml:"minSimilarity"`
	FuzzyThreshold  float64 `yaml:"fuzzyThreshold"`
	SuggestionFloor float64 `yaml:"suggestionFloor"`
	FilterWeight    float64 `yaml:"filterWeight"`
	ExcerptMaxRunes int     `yaml:"excerptMaxRunes"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for tool calls.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AnalyticsConfig controls the analytics aggregator service.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	PersistSnapshots bool          `yaml:"persistSnapshots"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects settings the retrieval core cannot work with.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case "files":
		if c.Corpus.Dir == "" {
			return fmt.Errorf("corpus.dir is required when corpus.source is \"files\"")
		}
	case "postgres":
	default:
		return fmt.Errorf("corpus.source must be \"files\" or \"postgres\", got %q", c.Corpus.Source)
	}
	if c.Search.MaxTopK < 1 {
		return fmt.Errorf("search.maxTopK must be positive, got %d", c.Search.MaxTopK)
	}
	if c.Search.DefaultTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.defaultTopK must be within [1, %d], got %d", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	r := c.Ranking
	if r.TitleWeight < 1 {
		return fmt.Errorf("ranking.titleWeight must be at least 1, got %d", r.TitleWeight)
	}
	if r.MinSimilarity < 0 || r.MinSimilarity >= 1 {
		return fmt.Errorf("ranking.minSimilarity must be within [0, 1), got %g", r.MinSimilarity)
	}
	if r.FuzzyThreshold <= 0 || r.FuzzyThreshold > 1 {
		return fmt.Errorf("ranking.fuzzyThreshold must be within (0, 1], got %g", r.FuzzyThreshold)
	}
	if r.SuggestionFloor < 0 || r.SuggestionFloor > r.FuzzyThreshold {
		return fmt.Errorf("ranking.suggestionFloor must be within [0, fuzzyThreshold], got %g", r.SuggestionFloor)
	}
	if r.FilterWeight <= 0 {
		return fmt.Errorf("ranking.filterWeight must be positive, got %g", r.FilterWeight)
	}
	if r.ExcerptMaxRunes < 20 {
		return fmt.Errorf("ranking.excerptMaxRunes must be at least 20, got %d", r.ExcerptMaxRunes)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8787,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		RPC: RPCConfig{
			Enabled: true,
			Port:    8788,
		},
		Corpus: CorpusConfig{
			Source: "files",
			Dir:    "content",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "contenthub",
			User:            "contenthub",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "contenthub-analytics",
			Topics: KafkaTopics{
				ToolEvents: "contenthub.tool-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Search: SearchConfig{
			DefaultTopK: 5,
			MaxTopK:     20,
		},
		Ranking: RankingConfig{
			TitleWeight:     3,
			MinSimilarity:   0.01,
			FuzzyThreshold:  0.75,
			SuggestionFloor: 0.5,
			FilterWeight:    1.0,
			ExcerptMaxRunes: 320,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			Port:             8789,
			BufferSize:       10000,
			SnapshotInterval: time.Minute,
			PersistSnapshots: false,
		},
	}
}

// applyEnvOverrides reads CH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	// PORT is what most container platforms inject.
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CH_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	// CH_API_KEYS is a comma-separated list of name:key pairs.
	if v := os.Getenv("CH_API_KEYS"); v != "" {
		cfg.Server.APIKeys = make(map[string]string)
		for _, pair := range strings.Split(v, ",") {
			if name, key, ok := strings.Cut(strings.TrimSpace(pair), ":"); ok && key != "" {
				cfg.Server.APIKeys[name] = key
			}
		}
	}
	if v := os.Getenv("CH_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RPC.Port = port
		}
	}
	if v := os.Getenv("CH_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("CH_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("CH_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CH_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CH_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CH_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CH_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CH_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("CH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("CH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("CH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CH_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CH_RANKING_FUZZY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranking.FuzzyThreshold = f
		}
	}
	if v := os.Getenv("CH_RANKING_MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranking.MinSimilarity = f
		}
	}
}
