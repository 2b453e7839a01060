package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port      string
	OutputDir string
	JobStore  string
	DBPath    string

	MaxConcurrentJobs int
	JobTimeout        time.Duration

	Exchange   ExchangeConfig
	Pagination PaginationConfig
	Auth       AuthConfig
	Log        LogConfig
}

type ExchangeConfig struct {
	BaseURL         string
	HTTPTimeout     time.Duration
	RateLimitPerSec float64
	Retries         int
}

type PaginationConfig struct {
	PageSize  int
	PageDelay time.Duration
}

type AuthConfig struct {
	Password   string
	SecretKey  string
	SessionTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

var defaults = map[string]any{
	"port":                "8080",
	"output_dir":          "downloads",
	"job_store":           StoreMemory,
	"db_path":             "candles.db",
	"max_concurrent_jobs": 4,
	"job_timeout":         "30m",
	"binance_base_url":    "https://api.binance.com",
	"http_timeout":        "15s",
	"rate_limit_per_sec":  20,
	"fetch_retries":       2,
	"page_size":           1000,
	"page_delay":          "50ms",
	"app_password":        "",
	"secret_key":          "",
	"session_ttl":         "24h",
	"log_level":           "info",
	"log_format":          "text",
}

// Load reads configuration from, in order of precedence: environment
// variables, a .env file in dir, config.yaml in dir or dir/config, and
// built-in defaults. Missing files are skipped.
func Load(dir string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(filepath.Join(dir, "config"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	}

	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Port:              v.GetString("port"),
		OutputDir:         v.GetString("output_dir"),
		JobStore:          strings.ToLower(v.GetString("job_store")),
		DBPath:            v.GetString("db_path"),
		MaxConcurrentJobs: v.GetInt("max_concurrent_jobs"),
		JobTimeout:        v.GetDuration("job_timeout"),
		Exchange: ExchangeConfig{
			BaseURL:         v.GetString("binance_base_url"),
			HTTPTimeout:     v.GetDuration("http_timeout"),
			RateLimitPerSec: v.GetFloat64("rate_limit_per_sec"),
			Retries:         v.GetInt("fetch_retries"),
		},
		Pagination: PaginationConfig{
			PageSize:  v.GetInt("page_size"),
			PageDelay: v.GetDuration("page_delay"),
		},
		Auth: AuthConfig{
			Password:   v.GetString("app_password"),
			SecretKey:  v.GetString("secret_key"),
			SessionTTL: v.GetDuration("session_ttl"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("OUTPUT_DIR is required"))
	}
	switch c.JobStore {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite job store"))
		}
	default:
		errs = append(errs, fmt.Errorf("JOB_STORE must be %s or %s, got %q", StoreMemory, StoreSQLite, c.JobStore))
	}
	if c.MaxConcurrentJobs <= 0 {
		errs = append(errs, errors.New("MAX_CONCURRENT_JOBS must be positive"))
	}
	if c.Pagination.PageSize <= 0 || c.Pagination.PageSize > 1000 {
		errs = append(errs, errors.New("PAGE_SIZE must be between 1 and 1000"))
	}
	if c.Exchange.Retries < 0 {
		errs = append(errs, errors.New("FETCH_RETRIES must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
