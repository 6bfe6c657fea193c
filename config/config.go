package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stockstream/pkg/format"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Universe   UniverseConfig   `mapstructure:"universe"`
	Yahoo      YahooConfig      `mapstructure:"yahoo"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Storage    StorageConfig    `mapstructure:"storage"`
	GraphCache GraphCacheConfig `mapstructure:"graph_cache"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"` // gin mode: "debug" or "release"
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UniverseConfig is the static set of tracked instruments.
type UniverseConfig struct {
	Stocks  []string          `mapstructure:"stocks"`
	Crypto  []string          `mapstructure:"crypto"`
	Indices []string          `mapstructure:"indices"`
	Names   map[string]string `mapstructure:"names"` // display names by symbol
}

type YahooConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	UserAgent  string        `mapstructure:"user_agent"`
}

type CollectorConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"` // per-symbol fetch+insert budget
}

type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	HourlyMinute int           `mapstructure:"hourly_minute"`
	DailyAt      string        `mapstructure:"daily_at"` // "HH:MM" UTC
	Retention    time.Duration `mapstructure:"retention"`
	RecentLimit  int           `mapstructure:"recent_limit"` // dashboard "latest N" per asset type
}

// DailyClock parses DailyAt into hour and minute.
func (s SchedulerConfig) DailyClock() (hour, minute int, err error) {
	return ParseClock(s.DailyAt)
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // "postgres", "sqlite", "mongo" or "memory"
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type GraphCacheConfig struct {
	Driver string        `mapstructure:"driver"` // "memory" or "redis"
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Load loads application configuration using Viper.
// It reads .env (if present), then config.yaml, and overrides with
// STOCKSTREAM_* environment variables. An empty path searches the default
// locations next to the executable.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")

		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
		v.AddConfigPath("./config")
	}

	// Support environment variables with dot notation (e.g., STOCKSTREAM_STORAGE_DRIVER)
	v.SetEnvPrefix("STOCKSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// MONGODB_URI is honoured for compatibility with existing .env files.
	if uri := os.Getenv("MONGODB_URI"); uri != "" && cfg.Storage.Mongo.URI == "" {
		cfg.Storage.Mongo.URI = uri
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockstream")
	v.SetDefault("app.environment", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("universe.stocks", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"})
	v.SetDefault("universe.crypto", []string{"BTC-USD", "ETH-USD", "BNB-USD", "SOL-USD", "XRP-USD"})
	v.SetDefault("universe.indices", []string{"^GSPC", "^DJI", "^IXIC"})

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.timeout", 10*time.Second)
	v.SetDefault("yahoo.max_retries", 2)
	v.SetDefault("yahoo.user_agent", "Mozilla/5.0 (compatible; stockstream/1.0)")

	v.SetDefault("collector.concurrency", 4)
	v.SetDefault("collector.timeout", 15*time.Second)

	v.SetDefault("scheduler.poll_interval", time.Minute)
	v.SetDefault("scheduler.hourly_minute", 0)
	v.SetDefault("scheduler.daily_at", "00:00")
	v.SetDefault("scheduler.retention", 24*time.Hour)
	v.SetDefault("scheduler.recent_limit", 10)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "stockstream.db")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.dbname", "stockstream")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timezone", "UTC")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("storage.postgres.max_idle_conns", 5)
	v.SetDefault("storage.postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("storage.mongo.database", "stockstream")
	v.SetDefault("storage.mongo.collection", "stock_crypto_prices")
	v.SetDefault("storage.mongo.timeout", 10*time.Second)

	v.SetDefault("graph_cache.driver", "memory")
	v.SetDefault("graph_cache.ttl", 2*time.Hour)
	v.SetDefault("graph_cache.redis.addr", "127.0.0.1:6379")
	v.SetDefault("graph_cache.redis.key_prefix", "stockstream:graphs:")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate performs basic configuration validation.
func (c *Config) Validate() error {
	if len(c.Universe.Stocks) == 0 && len(c.Universe.Crypto) == 0 {
		return fmt.Errorf("symbol universe is empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d", c.Server.Port)
	}
	if c.Collector.Concurrency <= 0 {
		return fmt.Errorf("collector concurrency must be greater than 0")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll interval must be greater than 0")
	}
	if c.Scheduler.HourlyMinute < 0 || c.Scheduler.HourlyMinute > 59 {
		return fmt.Errorf("scheduler hourly minute out of range: %d", c.Scheduler.HourlyMinute)
	}
	if _, _, err := c.Scheduler.DailyClock(); err != nil {
		return err
	}
	if c.Scheduler.Retention <= 0 {
		return fmt.Errorf("retention must be greater than 0")
	}

	switch c.Storage.Driver {
	case "postgres", "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
	case "mongo":
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("mongo uri cannot be empty")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}

	switch c.GraphCache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported graph cache driver: %q", c.GraphCache.Driver)
	}
	return nil
}

// ParseClock parses a wall-clock time such as "0:5" or "00:05" into hour
// and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hh, mm := format.PadNumber(&parts[0]), format.PadNumber(&parts[1])
	if len(*hh) != 2 || len(*mm) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	if hour, err = strconv.Atoi(*hh); err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in clock %q", s)
	}
	if minute, err = strconv.Atoi(*mm); err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in clock %q", s)
	}
	return hour, minute, nil
}
