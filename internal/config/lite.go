package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ontani-server/internal/domain"
)

// LiteConfig is the environment-only configuration of the standalone MCP
// server. The catalog lives in a local SQLite file; no Postgres or Redis.
type LiteConfig struct {
	DataDir  string // Base directory for the catalog database
	SeedFile string // Optional YAML catalog applied at startup

	CacheMaxItems int
	CacheTTL      time.Duration

	EnrichConcurrency int

	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:           filepath.Join(homeDir, ".ontani"),
		CacheMaxItems:     256,
		CacheTTL:          time.Hour,
		EnrichConcurrency: domain.MaxCandidates,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadLiteConfig loads configuration from ONTANI_* environment variables,
// falling back to defaults for anything unset or malformed.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("ONTANI_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.SeedFile = os.Getenv("ONTANI_SEED_FILE")

	if v := os.Getenv("ONTANI_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ONTANI_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	if v := os.Getenv("ONTANI_ENRICH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EnrichConcurrency = n
		}
	}

	if v := os.Getenv("ONTANI_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ONTANI_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// CatalogDBPath returns the path to the SQLite catalog database.
func (c *LiteConfig) CatalogDBPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// LoggingConfig adapts the lite settings for logging.New.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	// stdout carries the MCP stdio protocol
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// CacheConfig adapts the lite settings for the in-memory catalog cache.
func (c *LiteConfig) CacheConfig() domain.CacheConfig {
	return domain.CacheConfig{Enabled: true, MemorySize: c.CacheMaxItems, TTL: c.CacheTTL}
}
