package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/app"
	"github.com/ontani-server/internal/cache"
	"github.com/ontani-server/internal/config"
	"github.com/ontani-server/internal/logging"
	"github.com/ontani-server/internal/mcp"
	"github.com/ontani-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// stdout carries the protocol
	logCfg := configManager.GetConfig().Logging
	if logCfg.Output == "stdout" || logCfg.Output == "" {
		logCfg.Output = "stderr"
	}
	logger, logCloser, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = run(ctx, configManager, logger)
	stop()
	if err != nil {
		logger.WithError(err).Error("MCP server failed")
	} else {
		logger.Info("MCP server stopped")
	}

	if cerr := logCloser.Close(); cerr != nil {
		log.Printf("Failed to close log output: %v", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	if cfg.Database.AutoMigrate {
		if err := app.MigrateUp(ctx, configManager, logger); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
	}

	store, closeStore, err := app.OpenStore(ctx, configManager, logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}
	defer closeStore()

	var catalogCache service.Cache
	if cfg.Cache.Enabled {
		c, err := cache.NewCatalogCache(cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("failed to create catalog cache: %w", err)
		}
		defer c.Close()
		catalogCache = c
	}

	server := mcp.NewServer(
		cfg.MCP,
		service.NewPredictor(store, cfg.Matching, logger),
		service.NewCatalogService(store, catalogCache, logger),
		logger,
	)

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
