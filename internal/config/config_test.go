package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_WRITE_COST", "5")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("Capacity = %d, want 1", cfg.Capacity)
	}
	if cfg.RefillTokens != 1 {
		t.Errorf("RefillTokens = %d, want 1", cfg.RefillTokens)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("TTL = %s, want 10s", cfg.TTL)
	}
	if cfg.WriteCost != 1 {
		t.Errorf("WriteCost = %d, want 1 (clamped to capacity)", cfg.WriteCost)
	}
}

func TestLoadCacheConfig_Methods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || len(cfg.Methods) != 2 {
		t.Errorf("Methods = %v", cfg.Methods)
	}
}

func TestLoadSyncConfig_Defaults(t *testing.T) {
	cfg := LoadSyncConfig()
	if cfg.Debounce != 800*time.Millisecond {
		t.Errorf("Debounce = %s, want 800ms", cfg.Debounce)
	}
	if cfg.BeerMarker != "piv" {
		t.Errorf("BeerMarker = %q, want %q", cfg.BeerMarker, "piv")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("LP_DOTENV_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LP_DOTENV_VALUE", "")
	os.Unsetenv("LP_DOTENV_VALUE")

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	if got := os.Getenv("LP_DOTENV_VALUE"); got != "from-file" {
		t.Errorf("LP_DOTENV_VALUE = %q, want from-file", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("LP_FLAG", "off")
	if envBool("LP_FLAG", true) {
		t.Error("off should be false")
	}
	t.Setenv("LP_FLAG", "garbage")
	if !envBool("LP_FLAG", true) {
		t.Error("unparseable value should fall back to default")
	}
}
