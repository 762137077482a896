// Package app assembles the catalog store and migration runner from
// configuration for the command binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/database"
	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/repository"
	"github.com/ontani-server/internal/sqlstore"
)

// OpenStore opens the configured catalog store: a pgx pool for postgres or
// a database/sql handle for sqlite, wrapped in the circuit breaker when it is
// enabled. The returned func releases the connections.
func OpenStore(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) (domain.CatalogStore, func(), error) {
	cfg := cm.GetDatabaseConfig()

	var (
		store   domain.CatalogStore
		closeFn func()
	)

	switch cfg.Driver {
	case string(sqlstore.SQLite):
		s, err := sqlstore.Open(ctx, *cfg, "", logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite catalog: %w", err)
		}
		store = s
		closeFn = func() {
			if err := s.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close catalog database")
			}
		}
	case string(sqlstore.Postgres):
		db, err := database.NewConnection(ctx, database.ConfigFrom(*cfg), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store = repository.NewCatalogRepository(db.Pool, cfg.QueryTimeout, logger)
		closeFn = db.Close
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	if breaker := cm.GetConfig().Breaker; breaker.Enabled {
		store = repository.NewBreakerStore(store, breaker, logger)
	}
	return store, closeFn, nil
}

// OpenSQLStore opens the configured database through database/sql, which the
// seeding writer needs for both drivers.
func OpenSQLStore(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) (*sqlstore.Store, error) {
	cfg := cm.GetDatabaseConfig()
	return sqlstore.Open(ctx, *cfg, cm.GetDatabaseConnectionString(), logger)
}

// MigrationURL returns the golang-migrate database URL for the configuration.
func MigrationURL(cm domain.ConfigManager) string {
	cfg := cm.GetDatabaseConfig()
	if cfg.Driver == string(sqlstore.SQLite) {
		return database.SQLiteURL(cfg.Path)
	}
	return cm.GetDatabaseURL()
}

// MigrationsSource returns path when it is an existing directory and ""
// otherwise, which selects the migrations compiled into the binary.
func MigrationsSource(path string) string {
	if path == "" {
		return ""
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return ""
}

// NewMigrationRunner creates a runner for the configured database.
func NewMigrationRunner(cm domain.ConfigManager, logger *logrus.Logger) (*database.MigrationRunner, error) {
	cfg := cm.GetDatabaseConfig()
	if cfg.Driver == string(sqlstore.SQLite) {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return database.NewMigrationRunner(MigrationURL(cm), MigrationsSource(cfg.MigrationsPath), logger)
}

// MigrateUp applies pending migrations and closes the runner.
func MigrateUp(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) error {
	runner, err := NewMigrationRunner(cm, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up(ctx)
}
