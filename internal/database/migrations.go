package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/ontani-server/migrations"
)

// MigrationRunner applies the catalog schema migrations. The same migration
// set serves postgres:// and sqlite:// database URLs.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner creates a runner reading migrations from migrationsPath,
// or from the migrations compiled into the binary when the path is empty.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	var (
		m   *migrate.Migrate
		err error
	)
	if migrationsPath == "" {
		src, srcErr := iofs.New(migrations.FS, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("opening embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, databaseURL)
	} else {
		m, err = migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	m.Log = migrateLogger{logger}

	return &MigrationRunner{
		migrate: m,
		log:     logger,
	}, nil
}

// migrateLogger forwards golang-migrate output at debug level.
type migrateLogger struct {
	log *logrus.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(strings.TrimRight(format, "\n"), v...)
}

func (l migrateLogger) Verbose() bool {
	return l.log.IsLevelEnabled(logrus.DebugLevel)
}

// SQLiteURL returns the golang-migrate URL of a SQLite database file.
func SQLiteURL(path string) string {
	return "sqlite://" + path
}

// Up applies every pending migration. Cancelling ctx stops after the
// migration in progress.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	return mr.apply(ctx, "up", mr.migrate.Up)
}

// Down rolls back the most recent migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	return mr.apply(ctx, "down", func() error { return mr.migrate.Steps(-1) })
}

func (mr *MigrationRunner) apply(ctx context.Context, direction string, step func() error) error {
	entry := mr.log.WithField("direction", direction)
	entry.Info("Applying catalog migrations")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// buffered channel, never blocks
			mr.migrate.GracefulStop <- true
		case <-done:
		}
	}()

	err := step()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("migrating %s: %w", direction, ctxErr)
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			entry.Info("Catalog schema already current")
			return nil
		}
		return fmt.Errorf("migrating %s: %w", direction, err)
	}

	mr.logVersion("Catalog migrations applied")
	return nil
}

func (mr *MigrationRunner) logVersion(msg string) {
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read migration version")
		return
	}
	mr.log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info(msg)
}

// Version returns the current migration version. A database that has never
// been migrated reports version 0 without error.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the migration source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
