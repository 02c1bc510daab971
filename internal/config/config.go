package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/services/badges"
)

// Backends selectable with BREACHX_BACKEND.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Env             string        `yaml:"env"`
	ListenAddr      string        `yaml:"listen_addr"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`

	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`
	BoltPath    string `yaml:"bolt_path"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`

	ProgramID            string `yaml:"program_id"`
	MaxRepositoryIDLen   int    `yaml:"max_repository_id_len"`
	MaxReportLocationLen int    `yaml:"max_report_location_len"`

	BadgeSymbol   string `yaml:"badge_symbol"`
	PublicBaseURL string `yaml:"public_base_url"`
	BadgeImageURL string `yaml:"badge_image_url"`
}

func Default() Config {
	return Config{
		Env:                  "development",
		ListenAddr:           ":8080",
		LogLevel:             "info",
		ShutdownTimeout:      10 * time.Second,
		MetricsInterval:      time.Minute,
		Backend:              BackendMemory,
		BoltPath:             "breachx.db",
		SQLitePath:           "breachx.sqlite",
		RedisURL:             "redis://localhost:6379/0",
		RedisPrefix:          "breachx",
		ProgramID:            address.DefaultRegistryProgramID,
		MaxRepositoryIDLen:   200,
		MaxReportLocationLen: 1000,
		BadgeSymbol:          "BXSB",
		PublicBaseURL:        "http://localhost:8080",
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load builds the configuration from defaults, then the YAML file named by
// BREACHX_CONFIG, then the environment. A .env file in the working directory
// is read first and never overrides variables already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("BREACHX_CONFIG"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Env = getenv("APP_ENV", cfg.Env)
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.Backend = strings.ToLower(getenv("BREACHX_BACKEND", cfg.Backend))
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.BoltPath = getenv("BOLT_PATH", cfg.BoltPath)
	cfg.SQLitePath = getenv("SQLITE_PATH", cfg.SQLitePath)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.RedisPrefix = getenv("REDIS_PREFIX", cfg.RedisPrefix)
	cfg.ProgramID = getenv("PROGRAM_ID", cfg.ProgramID)
	cfg.BadgeSymbol = getenv("BADGE_SYMBOL", cfg.BadgeSymbol)
	cfg.PublicBaseURL = getenv("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.BadgeImageURL = getenv("BADGE_IMAGE_URL", cfg.BadgeImageURL)

	var err error
	if cfg.MaxRepositoryIDLen, err = getenvInt("MAX_REPOSITORY_ID_LEN", cfg.MaxRepositoryIDLen); err != nil {
		return Config{}, err
	}
	if cfg.MaxReportLocationLen, err = getenvInt("MAX_REPORT_LOCATION_LEN", cfg.MaxReportLocationLen); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MetricsInterval, err = getenvDuration("METRICS_INTERVAL", cfg.MetricsInterval); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory, BackendBolt, BackendSQLite, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.MaxRepositoryIDLen <= 0 {
		errs = append(errs, fmt.Errorf("max repository id length must be positive, got %d", c.MaxRepositoryIDLen))
	}
	if c.MaxReportLocationLen <= 0 {
		errs = append(errs, fmt.Errorf("max report location length must be positive, got %d", c.MaxReportLocationLen))
	}
	if c.MetricsInterval <= 0 {
		errs = append(errs, fmt.Errorf("metrics interval must be positive, got %s", c.MetricsInterval))
	}
	if _, err := domain.ParseAddress(c.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("program id: %w", err))
	}
	if err := (badges.Defaults{Symbol: c.BadgeSymbol, BaseURL: c.PublicBaseURL}).Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
