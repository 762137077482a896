// Package main provides the standalone MCP server. It keeps the catalog in a
// local SQLite file and needs no Postgres or Redis.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/cache"
	"github.com/ontani-server/internal/config"
	"github.com/ontani-server/internal/database"
	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/logging"
	"github.com/ontani-server/internal/mcp"
	"github.com/ontani-server/internal/seed"
	"github.com/ontani-server/internal/service"
	"github.com/ontani-server/internal/sqlstore"
)

func main() {
	cfg := config.LoadLiteConfig()

	logger, logCloser, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("MCP server (lite) failed")
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("MCP server (lite) stopped")
}

func run(ctx context.Context, cfg *config.LiteConfig, logger *logrus.Logger) error {
	logger.WithField("data_dir", cfg.DataDir).Info("Starting MCP server (lite)")

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	runner, err := database.NewMigrationRunner(database.SQLiteURL(cfg.CatalogDBPath()), "", logger)
	if err != nil {
		return err
	}
	if err := runner.Up(ctx); err != nil {
		runner.Close()
		return err
	}
	if err := runner.Close(); err != nil {
		return err
	}

	store, err := sqlstore.Open(ctx, domain.DatabaseConfig{
		Driver:   string(sqlstore.SQLite),
		Path:     cfg.CatalogDBPath(),
		MaxConns: 4,
	}, "", logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.SeedFile != "" {
		catalog, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(ctx, store, catalog, logger); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
	}

	catalogCache := cache.NewCatalogCacheWithClient(cfg.CacheConfig(), nil, logger)

	server := mcp.NewServer(
		domain.MCPConfig{ServerName: "ontani-mcp-server-lite"},
		service.NewPredictor(store, domain.MatchingConfig{EnrichConcurrency: cfg.EnrichConcurrency}, logger),
		service.NewCatalogService(store, catalogCache, logger),
		logger,
	)

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
