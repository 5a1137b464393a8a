package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for contest-client
type Config struct {
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Templates TemplatesConfig `yaml:"templates"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig holds the judge API connection settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Storage backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StorageConfig selects where local state (identity, drafts) is persisted
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// TemplatesConfig holds the code template overrides location
type TemplatesConfig struct {
	Dir string `yaml:"dir"`
}

// BridgeConfig holds the local UI bridge listener
type BridgeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    defaultStatePath(),
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Prefix:  "contest-client:",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 4,
		},
		Templates: TemplatesConfig{
			Dir: "",
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
			Port: 7070,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from .env, an optional YAML file and environment variables.
// Environment variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return load(os.Getenv("CONTEST_CLIENT_CONFIG"))
}

func load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.API.BaseURL = getEnv("CONTEST_API_URL", cfg.API.BaseURL)
	cfg.API.Timeout = getEnvAsDuration("CONTEST_API_TIMEOUT", cfg.API.Timeout)
	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Path = getEnv("STORAGE_PATH", cfg.Storage.Path)
	cfg.Redis.Address = getEnv("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = getEnv("REDIS_PREFIX", cfg.Redis.Prefix)
	cfg.Database.DSN = getEnv("DATABASE_DSN", cfg.Database.DSN)
	cfg.Database.MaxOpenConns = getEnvAsInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Templates.Dir = getEnv("TEMPLATES_DIR", cfg.Templates.Dir)
	cfg.Bridge.Host = getEnv("BRIDGE_HOST", cfg.Bridge.Host)
	cfg.Bridge.Port = getEnvAsInt("BRIDGE_PORT", cfg.Bridge.Port)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url: %q", c.API.BaseURL)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	switch c.Log.Format {
	case "", "auto", "json", "text":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}

	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		return fmt.Errorf("invalid bridge port: %d", c.Bridge.Port)
	}

	return nil
}

// Addr returns the bridge listen address
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

func defaultStatePath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".contest-client", "state.json")
	}
	return filepath.Join(dir, ".contest-client", "state.json")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
