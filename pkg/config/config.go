// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Database, Redis, Kafka, Search, Directory, etc.).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Search    SearchConfig    `yaml:"search"`
	Directory DirectoryConfig `yaml:"directory"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RequestTimeout bounds a single API request.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DatabaseConfig holds directory database connection parameters. Driver
// selects between PostgreSQL (production) and SQLite (local development).
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	SQLitePath      string        `yaml:"sqlitePath"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a data source name for the configured driver. For postgres a
// non-empty URL wins over the discrete fields; heroku-style "postgres://"
// URLs are accepted as-is by lib/pq.
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case DriverSQLite:
		path := d.SQLitePath
		if path == "" {
			path = "ppam.db"
		}
		return fmt.Sprintf("file:%s?_foreign_keys=on", path)
	default:
		if d.URL != "" {
			return d.URL
		}
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
		)
	}
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
	SearchEvents     string `yaml:"searchEvents"`
	DirectoryChanged string `yaml:"directoryChanged"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	// LocalCacheSize bounds the in-process fallback cache used when Redis
	// is unreachable.
	LocalCacheSize int `yaml:"localCacheSize"`
}

// SearchConfig controls term interpretation and query execution.
type SearchConfig struct {
	FuzzyThreshold     int           `yaml:"fuzzyThreshold"`
	MinFuzzyLength     int           `yaml:"minFuzzyLength"`
	PrefixLength       int           `yaml:"prefixLength"`
	ExcludeNumeric     bool          `yaml:"excludeNumeric"`
	ResultLimit        int           `yaml:"resultLimit"`
	MaxParallelClauses int           `yaml:"maxParallelClauses"`
	StoreTimeout       time.Duration `yaml:"storeTimeout"`
}

// DirectoryConfig controls the CSV seed importer.
type DirectoryConfig struct {
	SeedFile     string `yaml:"seedFile"`
	CSVDelimiter string `yaml:"csvDelimiter"`
	CSVEncoding  string `yaml:"csvEncoding"`
}

// RateLimitConfig bounds search requests per client.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	// TrustedProxies lists the addresses or CIDR ranges of reverse proxies
	// whose X-Forwarded-For header names the client. Empty trusts none.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// AnalyticsConfig controls search event collection. Events go through
// Kafka when it is enabled and straight to the in-process aggregator
// otherwise.
type AnalyticsConfig struct {
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// SnapshotInterval persists aggregated stats to the database; zero
	// disables snapshots.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
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

// Default returns a Config with defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            5432,
			Database:        "ppam",
			User:            "ppam",
			Password:        "localdev",
			SSLMode:         "disable",
			SQLitePath:      "ppam.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "ppam-search",
			Topics: KafkaTopics{
				SearchEvents:     "contact-search-events",
				DirectoryChanged: "directory.changed",
			},
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       10,
			CacheTTL:       60 * time.Second,
			LocalCacheSize: 1024,
		},
		Search: SearchConfig{
			FuzzyThreshold:     75,
			MinFuzzyLength:     3,
			PrefixLength:       3,
			ExcludeNumeric:     true,
			ResultLimit:        100,
			MaxParallelClauses: 4,
			StoreTimeout:       2 * time.Second,
		},
		Directory: DirectoryConfig{
			SeedFile:     "contactos.csv",
			CSVDelimiter: ";",
			CSVEncoding:  "latin1",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    time.Second,
			SnapshotInterval: 5 * time.Minute,
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

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 100 {
		return fmt.Errorf("search.fuzzyThreshold must be within 0..100, got %d", c.Search.FuzzyThreshold)
	}
	if c.Search.PrefixLength < 1 {
		return fmt.Errorf("search.prefixLength must be positive, got %d", c.Search.PrefixLength)
	}
	if len([]rune(c.Directory.CSVDelimiter)) != 1 {
		return fmt.Errorf("directory.csvDelimiter must be a single character, got %q", c.Directory.CSVDelimiter)
	}
	return nil
}

// applyEnvOverrides reads PPAM_* environment variables (and the conventional
// DATABASE_URL) and overrides the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PPAM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		if u, err := url.Parse(v); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
			cfg.Database.Driver = DriverPostgres
		}
	}
	if v := os.Getenv("PPAM_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PPAM_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PPAM_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PPAM_DATABASE_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("PPAM_DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PPAM_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PPAM_DATABASE_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("PPAM_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PPAM_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("PPAM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PPAM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PPAM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PPAM_SEARCH_FUZZY_THRESHOLD"); v != "" {
		if threshold, err := strconv.Atoi(v); err == nil {
			cfg.Search.FuzzyThreshold = threshold
		}
	}
	if v := os.Getenv("PPAM_SEARCH_RESULT_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Search.ResultLimit = limit
		}
	}
	if v := os.Getenv("PPAM_SEED_FILE"); v != "" {
		cfg.Directory.SeedFile = v
	}
	if v := os.Getenv("PPAM_CSV_DELIMITER"); v != "" {
		cfg.Directory.CSVDelimiter = v
	}
	if v := os.Getenv("PPAM_CSV_ENCODING"); v != "" {
		cfg.Directory.CSVEncoding = v
	}
	if v := os.Getenv("PPAM_TRUSTED_PROXIES"); v != "" {
		cfg.RateLimit.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("PPAM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PPAM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
