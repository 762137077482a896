package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.EnrichConcurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.SeedFile)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ONTANI_DATA_DIR", "/tmp/test-ontani")
	t.Setenv("ONTANI_SEED_FILE", "/tmp/catalog.yaml")
	t.Setenv("ONTANI_CACHE_MAX_ITEMS", "500")
	t.Setenv("ONTANI_CACHE_TTL", "12h")
	t.Setenv("ONTANI_ENRICH_CONCURRENCY", "2")
	t.Setenv("ONTANI_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-ontani", cfg.DataDir)
	assert.Equal(t, "/tmp/catalog.yaml", cfg.SeedFile)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 2, cfg.EnrichConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("ONTANI_CACHE_MAX_ITEMS", "-3")
	t.Setenv("ONTANI_CACHE_TTL", "soon")
	t.Setenv("ONTANI_ENRICH_CONCURRENCY", "zero")

	cfg := LoadLiteConfig()

	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.EnrichConcurrency)
}

func TestLiteConfig_CatalogDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.ontani"}

	assert.Equal(t, "/home/user/.ontani/catalog.db", cfg.CatalogDBPath())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "ontani")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)
}

func TestLiteConfig_Adapters(t *testing.T) {
	cfg := &LiteConfig{CacheMaxItems: 10, CacheTTL: time.Minute, LogLevel: "warn", LogFormat: "text"}

	logCfg := cfg.LoggingConfig()
	assert.Equal(t, "stderr", logCfg.Output)
	assert.Equal(t, "warn", logCfg.Level)

	cacheCfg := cfg.CacheConfig()
	assert.True(t, cacheCfg.Enabled)
	assert.Empty(t, cacheCfg.RedisURL)
	assert.Equal(t, 10, cacheCfg.MemorySize)
}
