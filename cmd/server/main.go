package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/api"
	"github.com/ontani-server/internal/app"
	"github.com/ontani-server/internal/cache"
	"github.com/ontani-server/internal/config"
	"github.com/ontani-server/internal/logging"
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

	logger, logCloser, err := logging.New(configManager.GetConfig().Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = run(ctx, configManager, logger)
	stop()
	if err != nil {
		logger.WithError(err).Error("Server failed")
	} else {
		logger.Info("Server stopped")
	}

	// os.Exit skips deferred calls, so the log file is closed here
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

	// Refuse to serve without a reachable store
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("catalog store unreachable: %w", err)
	}

	deps := api.Dependencies{
		Predictor: service.NewPredictor(store, cfg.Matching, logger),
	}

	var catalogCache service.Cache
	if cfg.Cache.Enabled {
		c, err := cache.NewCatalogCache(cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("failed to create catalog cache: %w", err)
		}
		defer c.Close()
		catalogCache = c
		if c.Distributed() {
			deps.Cache = c
		}
	}
	deps.Catalog = service.NewCatalogService(store, catalogCache, logger)

	server := api.NewServer(configManager, deps, logger)

	logger.WithFields(logrus.Fields{
		"host":   cfg.Server.Host,
		"port":   cfg.Server.Port,
		"driver": cfg.Database.Driver,
	}).Info("Starting ontani diagnosis server")

	return server.Start(ctx)
}
