package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DEFAULT_CURRENCY", "RATE_FRESHNESS", "RATE_CACHE_PATH", "STORE_PAGE_SIZE"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.DefaultCurrency != "USD" {
		t.Errorf("expected USD, got %s", cfg.DefaultCurrency)
	}
	if cfg.RateFreshness != time.Hour {
		t.Errorf("expected 1h freshness, got %s", cfg.RateFreshness)
	}
	if cfg.RateCachePath != "" {
		t.Errorf("expected in-memory cache by default, got %q", cfg.RateCachePath)
	}
	if cfg.StorePageSize != 1000 {
		t.Errorf("expected page size 1000, got %d", cfg.StorePageSize)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_FRESHNESS", "30m")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.RateFreshness != 30*time.Minute {
		t.Errorf("expected 30m, got %s", cfg.RateFreshness)
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Errorf("expected 0.5 rps, got %v", cfg.RateLimitRPS)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("invalid value must fall back to default, got %d", cfg.MaxRetries)
	}
}

func TestLoadDotEnv_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "DEFAULT_CURRENCY=AUD\nRATES_API_URL=\"http://rates.local\"\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DEFAULT_CURRENCY", "EUR")
	t.Setenv("RATES_API_URL", "")
	os.Unsetenv("RATES_API_URL")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg := config.Load()
	if cfg.DefaultCurrency != "EUR" {
		t.Errorf("environment must win over .env, got %s", cfg.DefaultCurrency)
	}
	if cfg.RatesAPIURL != "http://rates.local" {
		t.Errorf("expected .env value, got %s", cfg.RatesAPIURL)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
