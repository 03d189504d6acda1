// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Search, Source, Redis, Kafka, Postgres, MCP, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Search   SearchConfig   `yaml:"search"`
	Source   SourceConfig   `yaml:"source"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	MCP      MCPConfig      `yaml:"mcp"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// ToolRateLimit caps tool calls per client in requests per second.
	// Zero disables the limit.
	ToolRateLimit float64 `yaml:"toolRateLimit"`
	ToolRateBurst int     `yaml:"toolRateBurst"`
}

// SearchConfig describes how documents are indexed and how many results a
// query may return.
type SearchConfig struct {
	TextFields    []string           `yaml:"textFields"`
	KeywordFields []string           `yaml:"keywordFields"`
	Boosts        map[string]float64 `yaml:"boosts"`
	DefaultLimit  int                `yaml:"defaultLimit"`
	MaxResults    int                `yaml:"maxResults"`
	// ReloadInterval rebuilds and republishes the index periodically when
	// positive.
	ReloadInterval time.Duration `yaml:"reloadInterval"`
}

// SourceConfig controls where the corpus comes from and how remote pages
// are fetched.
type SourceConfig struct {
	ArchiveURL   string        `yaml:"archiveUrl"`
	ArchivePath  string        `yaml:"archivePath"`
	Extensions   []string      `yaml:"extensions"`
	FetchMode    string        `yaml:"fetchMode"`
	ProxyBaseURL string        `yaml:"proxyBaseUrl"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
	Retry        RetryConfig   `yaml:"retry"`
	// FromStore loads the corpus from PostgreSQL instead of the archive.
	FromStore bool `yaml:"fromStore"`
	// SaveToStore writes an archive-loaded corpus to PostgreSQL.
	SaveToStore bool `yaml:"saveToStore"`
}

// RetryConfig mirrors resilience.RetryConfig for YAML.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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
	AnalyticsEvents string `yaml:"analyticsEvents"`
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

// MCPConfig names the tool server advertised to MCP clients. ToolTimeout
// bounds each tool call, over MCP and HTTP alike; zero disables it.
type MCPConfig struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	ToolTimeout time.Duration `yaml:"toolTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
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
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if len(c.Search.TextFields) == 0 {
		return apperrors.E("config", apperrors.ErrConfiguration, "search.textFields must name at least one field")
	}
	if c.Search.DefaultLimit <= 0 {
		return apperrors.E("config", apperrors.ErrConfiguration, "search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Server.ToolRateLimit < 0 {
		return apperrors.E("config", apperrors.ErrConfiguration, "server.toolRateLimit must not be negative")
	}
	if c.MCP.ToolTimeout < 0 {
		return apperrors.E("config", apperrors.ErrConfiguration, "mcp.toolTimeout must not be negative")
	}
	if c.Search.ReloadInterval < 0 {
		return apperrors.E("config", apperrors.ErrConfiguration, "search.reloadInterval must not be negative")
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return apperrors.E("config", apperrors.ErrConfiguration, "search.maxResults (%d) is below defaultLimit (%d)", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	for field, w := range c.Search.Boosts {
		if w < 0 {
			return apperrors.E("config", apperrors.ErrConfiguration, "search.boosts[%s] must not be negative, got %v", field, w)
		}
	}
	switch c.Source.FetchMode {
	case "proxy", "direct":
	default:
		return apperrors.E("config", apperrors.ErrConfiguration, "source.fetchMode must be proxy or direct, got %q", c.Source.FetchMode)
	}
	if (c.Source.FromStore || c.Source.SaveToStore) && !c.Postgres.Enabled {
		return apperrors.E("config", apperrors.ErrConfiguration, "source store options require postgres.enabled")
	}
	return nil
}

// Default returns a Config with defaults for local development: the
// FastMCP documentation corpus, indexed by content and filename.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ToolRateLimit:   2,
			ToolRateBurst:   10,
		},
		Search: SearchConfig{
			TextFields:    []string{"content", "filename"},
			KeywordFields: []string{"filename"},
			DefaultLimit:  5,
			MaxResults:    100,
		},
		Source: SourceConfig{
			ArchiveURL:   "https://github.com/jlowin/fastmcp/archive/refs/heads/main.zip",
			ArchivePath:  "fastmcp-main.zip",
			Extensions:   []string{".md", ".mdx"},
			FetchMode:    "proxy",
			ProxyBaseURL: "https://r.jina.ai",
			FetchTimeout: 30 * time.Second,
			MaxBodyBytes: 20 << 20,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docsearch-group",
			Topics: KafkaTopics{
				AnalyticsEvents: "docsearch-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		MCP: MCPConfig{
			Name:        "docsearch",
			Version:     "1.0.0",
			ToolTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads DS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DS_SERVER_TOOL_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.ToolRateLimit = f
		}
	}
	if v := os.Getenv("DS_MCP_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MCP.ToolTimeout = d
		}
	}
	if v := os.Getenv("DS_SEARCH_TEXT_FIELDS"); v != "" {
		cfg.Search.TextFields = splitList(v)
	}
	if v := os.Getenv("DS_SEARCH_KEYWORD_FIELDS"); v != "" {
		cfg.Search.KeywordFields = splitList(v)
	}
	if v := os.Getenv("DS_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("DS_SOURCE_ARCHIVE_URL"); v != "" {
		cfg.Source.ArchiveURL = v
	}
	if v := os.Getenv("DS_SOURCE_ARCHIVE_PATH"); v != "" {
		cfg.Source.ArchivePath = v
	}
	if v := os.Getenv("DS_SOURCE_FETCH_MODE"); v != "" {
		cfg.Source.FetchMode = v
	}
	if v := os.Getenv("DS_SOURCE_PROXY_BASE_URL"); v != "" {
		cfg.Source.ProxyBaseURL = v
	}
	if v := os.Getenv("DS_SOURCE_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.FetchTimeout = d
		}
	}
	if v := os.Getenv("DS_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v)
	}
	if v := os.Getenv("DS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DS_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v)
	}
	if v := os.Getenv("DS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("DS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("DS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
