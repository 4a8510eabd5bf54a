package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/shawty/internal/repository"
	"github.com/mmeshcher/shawty/internal/slug"
)

type Config struct {
	ServerAddress   string        `env:"SERVER_ADDRESS" yaml:"server_address"`
	BaseURL         string        `env:"BASE_URL" yaml:"base_url"`
	FileStoragePath string        `env:"FILE_STORAGE_PATH" yaml:"file_storage_path"`
	DatabaseDSN     string        `env:"DATABASE_DSN" yaml:"database_dsn"`
	RedisAddr       string        `env:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPassword   string        `env:"REDIS_PASSWORD" yaml:"redis_password"`
	RedisDB         int           `env:"REDIS_DB" yaml:"redis_db"`
	SQLiteURL       string        `env:"SQLITE_URL" yaml:"sqlite_url"`
	SlugLength      int           `env:"SLUG_LENGTH" yaml:"slug_length"`
	LinkTTL         time.Duration `env:"LINK_TTL" yaml:"link_ttl"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" yaml:"store_timeout"`
	LogLevel        string        `env:"LOG_LEVEL" yaml:"log_level"`
	ConfigFile      string        `env:"CONFIG_FILE" yaml:"-"`
}

// ParseFlags reads the process arguments. See Parse.
func ParseFlags() (*Config, error) {
	return Parse(os.Args[1:])
}

// Parse builds the configuration from, in increasing priority: defaults, the
// YAML file named by -c or CONFIG_FILE, command-line flags and environment
// variables. A .env file in the working directory is loaded first and never
// overrides variables already set.
func Parse(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	envCfg := &Config{}
	if err := env.Parse(envCfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// First pass only locates the config file.
	scratch := defaultConfig()
	if err := newFlagSet(scratch).Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg := defaultConfig()
	cfg.ConfigFile = scratch.ConfigFile
	if envCfg.ConfigFile != "" {
		cfg.ConfigFile = envCfg.ConfigFile
	}

	if cfg.ConfigFile != "" {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := newFlagSet(cfg).Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.override(envCfg)
	cfg.applyDefaultValues()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newFlagSet binds flags to cfg with its current values as defaults, so
// flags that are not passed keep whatever the file set.
func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("shortener", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddress, "a", cfg.ServerAddress, "Address of the server")
	fs.StringVar(&cfg.BaseURL, "b", cfg.BaseURL, "Base URL for short URLs")
	fs.StringVar(&cfg.FileStoragePath, "f", cfg.FileStoragePath, "Path to the JSON snapshot of the in-memory store")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL connection string")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "Redis address")
	fs.StringVar(&cfg.SQLiteURL, "s", cfg.SQLiteURL, "SQLite file, :memory: or libsql:// URL")
	fs.IntVar(&cfg.SlugLength, "l", cfg.SlugLength, "Length of generated slugs")
	fs.DurationVar(&cfg.LinkTTL, "ttl", cfg.LinkTTL, "Link lifetime, 0 keeps links forever")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", cfg.StoreTimeout, "Timeout of a single storage call")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.ConfigFile, "c", cfg.ConfigFile, "Path to a YAML config file")

	return fs
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// override copies every field set in the environment.
func (c *Config) override(e *Config) {
	if e.ServerAddress != "" {
		c.ServerAddress = e.ServerAddress
	}
	if e.BaseURL != "" {
		c.BaseURL = e.BaseURL
	}
	if e.FileStoragePath != "" {
		c.FileStoragePath = e.FileStoragePath
	}
	if e.DatabaseDSN != "" {
		c.DatabaseDSN = e.DatabaseDSN
	}
	if e.RedisAddr != "" {
		c.RedisAddr = e.RedisAddr
	}
	if e.RedisPassword != "" {
		c.RedisPassword = e.RedisPassword
	}
	if e.RedisDB != 0 {
		c.RedisDB = e.RedisDB
	}
	if e.SQLiteURL != "" {
		c.SQLiteURL = e.SQLiteURL
	}
	if e.SlugLength != 0 {
		c.SlugLength = e.SlugLength
	}
	if e.LinkTTL != 0 {
		c.LinkTTL = e.LinkTTL
	}
	if e.StoreTimeout != 0 {
		c.StoreTimeout = e.StoreTimeout
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("base URL must be absolute: %q", c.BaseURL)
	}

	if c.SlugLength < slug.MinLength || c.SlugLength > slug.MaxLength {
		return fmt.Errorf("slug length must be between %d and %d, got %d", slug.MinLength, slug.MaxLength, c.SlugLength)
	}
	if c.LinkTTL < 0 {
		return fmt.Errorf("link TTL cannot be negative")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	return nil
}

// StoreOptions picks the storage settings out of the config.
func (c *Config) StoreOptions() repository.Options {
	return repository.Options{
		DatabaseDSN: c.DatabaseDSN,
		Redis: repository.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		},
		SQLiteURL:       c.SQLiteURL,
		FileStoragePath: c.FileStoragePath,
	}
}

func defaultConfig() *Config {
	return &Config{
		ServerAddress: getDefaultServerAddress(),
		BaseURL:       getDefaultBaseURL(),
		SlugLength:    slug.DefaultLength,
		StoreTimeout:  3 * time.Second,
		LogLevel:      "info",
	}
}

func (c *Config) applyDefaultValues() {
	if c.ServerAddress == "" {
		c.ServerAddress = getDefaultServerAddress()
	}

	if c.BaseURL == "" {
		c.BaseURL = getDefaultBaseURL()
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func getDefaultServerAddress() string {
	return "localhost:8080"
}

func getDefaultBaseURL() string {
	return "http://localhost:8080"
}
