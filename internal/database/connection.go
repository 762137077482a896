package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/metrics"
)

// ApplicationName identifies catalog connections in pg_stat_activity.
const ApplicationName = "ontani"

// Config holds the pool settings of the catalog database.
type Config struct {
	Host        string
	Port        int
	Database    string
	Username    string
	Password    string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	// HealthCheck is how often idle connections are probed; 0 keeps the pgx default.
	HealthCheck time.Duration
}

// ConfigFrom maps the application database section to pool settings.
func ConfigFrom(cfg domain.DatabaseConfig) Config {
	return Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Database:    cfg.Database,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SSLMode:     cfg.SSLMode,
		MaxConns:    cfg.MaxConns,
		MinConns:    cfg.MinConns,
		MaxConnLife: cfg.ConnMaxLifetime,
		MaxConnIdle: cfg.ConnMaxIdleTime,
	}
}

// DSN returns the libpq keyword/value connection string. Empty values are
// omitted and the rest are quoted when needed.
func (c Config) DSN() string {
	pairs := []struct{ key, value string }{
		{"host", c.Host},
		{"port", portString(c.Port)},
		{"dbname", c.Database},
		{"user", c.Username},
		{"password", c.Password},
		{"sslmode", c.SSLMode},
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteDSNValue(p.value))
	}
	return strings.Join(parts, " ")
}

func portString(port int) string {
	if port <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", port)
}

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// DB owns the catalog connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewConnection creates the bounded connection pool and verifies the server
// answers before returning it. The pool is published to the metrics registry
// until Close.
func NewConnection(ctx context.Context, config Config, logger *logrus.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolConfig.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLife
	}
	if config.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdle
	}
	if config.HealthCheck > 0 {
		poolConfig.HealthCheckPeriod = config.HealthCheck
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{Pool: pool, log: logger}
	metrics.SetPoolSource(db.PoolStats)

	logger.WithFields(logrus.Fields{
		"host":      config.Host,
		"database":  config.Database,
		"max_conns": poolConfig.MaxConns,
		"min_conns": poolConfig.MinConns,
	}).Info("Catalog database pool ready")

	return db, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	if db.Pool == nil {
		return
	}
	metrics.SetPoolSource(nil)
	db.Pool.Close()
	db.log.Info("Catalog database pool closed")
}

// PoolStats reports current pool usage.
func (db *DB) PoolStats() metrics.PoolStats {
	stat := db.Pool.Stat()
	return metrics.PoolStats{
		Acquired: stat.AcquiredConns(),
		Idle:     stat.IdleConns(),
		Total:    stat.TotalConns(),
		Max:      stat.MaxConns(),
	}
}
