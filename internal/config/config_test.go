package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" || cfg.OutputDir != "downloads" || cfg.JobStore != StoreMemory {
		t.Errorf("unexpected basics: %+v", cfg)
	}
	if cfg.MaxConcurrentJobs != 4 || cfg.JobTimeout != 30*time.Minute {
		t.Errorf("jobs: %d, %v", cfg.MaxConcurrentJobs, cfg.JobTimeout)
	}
	if cfg.Exchange.BaseURL != "https://api.binance.com" || cfg.Exchange.HTTPTimeout != 15*time.Second ||
		cfg.Exchange.RateLimitPerSec != 20 || cfg.Exchange.Retries != 2 {
		t.Errorf("exchange: %+v", cfg.Exchange)
	}
	if cfg.Pagination.PageSize != 1000 || cfg.Pagination.PageDelay != 50*time.Millisecond {
		t.Errorf("pagination: %+v", cfg.Pagination)
	}
	if cfg.Auth.Password != "" || cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("auth: %+v", cfg.Auth)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yaml := "port: \"9000\"\npage_size: 500\noutput_dir: from-yaml\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	env := "PAGE_SIZE=200\nJOB_STORE=sqlite\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAGE_SIZE", "100")
	t.Setenv("PAGE_DELAY", "0s")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("port = %q, want 9000 from yaml", cfg.Port)
	}
	if cfg.OutputDir != "from-yaml" {
		t.Errorf("output dir = %q, want from-yaml", cfg.OutputDir)
	}
	if cfg.JobStore != StoreSQLite {
		t.Errorf("job store = %q, want sqlite from .env", cfg.JobStore)
	}
	if cfg.Pagination.PageSize != 100 {
		t.Errorf("page size = %d, want 100 from environment", cfg.Pagination.PageSize)
	}
	if cfg.Pagination.PageDelay != 0 {
		t.Errorf("page delay = %v, want 0", cfg.Pagination.PageDelay)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
		want       string
	}{
		{"JOB_STORE", "redis", "JOB_STORE"},
		{"PAGE_SIZE", "5000", "PAGE_SIZE"},
		{"MAX_CONCURRENT_JOBS", "0", "MAX_CONCURRENT_JOBS"},
		{"LOG_LEVEL", "loud", "LOG_LEVEL"},
		{"LOG_FORMAT", "xml", "LOG_FORMAT"},
		{"FETCH_RETRIES", "-1", "FETCH_RETRIES"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(t.TempDir())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	lvl, err := LogConfig{Level: "debug"}.SlogLevel()
	if err != nil {
		t.Fatal(err)
	}
	if lvl.String() != "DEBUG" {
		t.Errorf("level = %v, want DEBUG", lvl)
	}
}
