// Package sqlstore implements the catalog store on database/sql, for
// PostgreSQL through lib/pq and for an embedded SQLite file through
// modernc.org/sqlite. It backs the standalone MCP server and the admin CLI.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ontani-server/internal/domain"
)

// Dialect selects placeholder syntax and driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store implements domain.CatalogStore on a *sql.DB.
type Store struct {
	db           *sql.DB
	dialect      Dialect
	queryTimeout time.Duration
	log          *logrus.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, queryTimeout time.Duration, logger *logrus.Logger) *Store {
	return &Store{db: db, dialect: dialect, queryTimeout: queryTimeout, log: logger}
}

// Open opens the database described by cfg. For PostgreSQL dsn is the libpq
// connection string; for SQLite cfg.Path is used and its directory created.
func Open(ctx context.Context, cfg domain.DatabaseConfig, dsn string, logger *logrus.Logger) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)

	switch Dialect(cfg.Driver) {
	case SQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		// pragmas in the DSN apply to every pooled connection
		db, err = sql.Open("sqlite", SQLiteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	case Postgres:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
		db.SetMaxIdleConns(int(cfg.MaxConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"driver":    cfg.Driver,
		"max_conns": cfg.MaxConns,
	}).Info("Catalog database opened")

	return New(db, Dialect(cfg.Driver), cfg.QueryTimeout, logger), nil
}

// SQLiteDSN builds a modernc.org/sqlite DSN with WAL, foreign keys and a busy
// timeout enabled.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Store) fail(op string, err error) error {
	s.log.WithFields(logrus.Fields{
		"operation": op,
		"dialect":   s.dialect,
		"error":     err,
	}).Error("Catalog query failed")
	return domain.NewStoreError(op, err)
}

// query runs a read query and hands every row to scan.
func (s *Store) query(ctx context.Context, op, query string, args []interface{}, scan func(*sql.Rows) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return s.fail(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return s.fail(op, err)
		}
	}
	if err := rows.Err(); err != nil {
		return s.fail(op, err)
	}
	return nil
}

// FindCandidateRows returns the diagnosis x matched symptom x clinic rows for
// the given symptom ids in a single query.
func (s *Store) FindCandidateRows(ctx context.Context, symptomIDs []int64) ([]domain.MatchRow, error) {
	if len(symptomIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symptomIDs)), ",")
	query := `
		SELECT d.diagnosis_id, d.diagnosis_name, COALESCE(d.diagnosis_description, ''),
			   s.symptom_name, c.clinic_id, c.clinic_name
		FROM diagnosis_symptoms ds
		JOIN diagnoses d ON d.diagnosis_id = ds.diagnosis_id
		JOIN symptoms s ON s.symptom_id = ds.symptom_id
		LEFT JOIN diagnosis_clinics dc ON dc.diagnosis_id = d.diagnosis_id
		LEFT JOIN clinics c ON c.clinic_id = dc.clinic_id
		WHERE ds.symptom_id IN (` + placeholders + `)
		ORDER BY d.diagnosis_id, s.symptom_id, c.clinic_id`

	args := make([]interface{}, len(symptomIDs))
	for i, id := range symptomIDs {
		args[i] = id
	}

	s.log.WithField("params", symptomIDs).Debug("Executing candidate query")

	var result []domain.MatchRow
	err := s.query(ctx, "find candidate rows", query, args, func(rows *sql.Rows) error {
		var (
			row        domain.MatchRow
			clinicID   sql.NullInt64
			clinicName sql.NullString
		)
		if err := rows.Scan(&row.DiagnosisID, &row.DiagnosisName, &row.DiagnosisDescription,
			&row.MatchedSymptomName, &clinicID, &clinicName); err != nil {
			return err
		}
		if clinicID.Valid {
			id := clinicID.Int64
			row.ClinicID = &id
		}
		if clinicName.Valid {
			name := clinicName.String
			row.ClinicName = &name
		}
		result = append(result, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SymptomNamesByDiagnosis returns every symptom name linked to a diagnosis.
func (s *Store) SymptomNamesByDiagnosis(ctx context.Context, diagnosisID int64) ([]string, error) {
	names := []string{}
	err := s.query(ctx, "symptoms by diagnosis", `
		SELECT s.symptom_name
		FROM diagnosis_symptoms ds
		JOIN symptoms s ON s.symptom_id = ds.symptom_id
		WHERE ds.diagnosis_id = ?
		ORDER BY s.symptom_id`, []interface{}{diagnosisID}, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ClinicsByDiagnosis returns every clinic linked to a diagnosis.
func (s *Store) ClinicsByDiagnosis(ctx context.Context, diagnosisID int64) ([]domain.Clinic, error) {
	return s.clinics(ctx, "clinics by diagnosis", `
		SELECT c.clinic_id, c.clinic_name
		FROM diagnosis_clinics dc
		JOIN clinics c ON c.clinic_id = dc.clinic_id
		WHERE dc.diagnosis_id = ?
		ORDER BY c.clinic_id`, diagnosisID)
}

// ListClinics returns all clinics ordered by id.
func (s *Store) ListClinics(ctx context.Context) ([]domain.Clinic, error) {
	return s.clinics(ctx, "list clinics", `SELECT clinic_id, clinic_name FROM clinics ORDER BY clinic_id`)
}

func (s *Store) clinics(ctx context.Context, op, query string, args ...interface{}) ([]domain.Clinic, error) {
	clinics := []domain.Clinic{}
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		var c domain.Clinic
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return err
		}
		clinics = append(clinics, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clinics, nil
}

// ListSymptoms returns all symptoms ordered by id.
func (s *Store) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	symptoms := []domain.Symptom{}
	err := s.query(ctx, "list symptoms", `SELECT symptom_id, symptom_name FROM symptoms ORDER BY symptom_id`, nil,
		func(rows *sql.Rows) error {
			var sym domain.Symptom
			if err := rows.Scan(&sym.ID, &sym.Name); err != nil {
				return err
			}
			symptoms = append(symptoms, sym)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return symptoms, nil
}

// ListDiagnoses returns all diagnoses ordered by id.
func (s *Store) ListDiagnoses(ctx context.Context) ([]domain.Diagnosis, error) {
	return s.diagnoses(ctx, "list diagnoses", `
		SELECT diagnosis_id, diagnosis_name, COALESCE(diagnosis_description, '')
		FROM diagnoses ORDER BY diagnosis_id`)
}

// DiagnosesByClinic returns every diagnosis treated by a clinic.
func (s *Store) DiagnosesByClinic(ctx context.Context, clinicID int64) ([]domain.Diagnosis, error) {
	return s.diagnoses(ctx, "diagnoses by clinic", `
		SELECT d.diagnosis_id, d.diagnosis_name, COALESCE(d.diagnosis_description, '')
		FROM diagnosis_clinics dc
		JOIN diagnoses d ON d.diagnosis_id = dc.diagnosis_id
		WHERE dc.clinic_id = ?
		ORDER BY d.diagnosis_id`, clinicID)
}

func (s *Store) diagnoses(ctx context.Context, op, query string, args ...interface{}) ([]domain.Diagnosis, error) {
	diagnoses := []domain.Diagnosis{}
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		var d domain.Diagnosis
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return err
		}
		diagnoses = append(diagnoses, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diagnoses, nil
}

// GetDiagnosis retrieves a diagnosis by its ID
func (s *Store) GetDiagnosis(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var d domain.Diagnosis
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT diagnosis_id, diagnosis_name, COALESCE(diagnosis_description, '')
		FROM diagnoses WHERE diagnosis_id = ?`), id).Scan(&d.ID, &d.Name, &d.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
		}
		return nil, s.fail("get diagnosis", err)
	}
	return &d, nil
}

// GetClinic retrieves a clinic by its ID
func (s *Store) GetClinic(ctx context.Context, id int64) (*domain.Clinic, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var c domain.Clinic
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT clinic_id, clinic_name FROM clinics WHERE clinic_id = ?`), id).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("clinic %d: %w", id, domain.ErrNotFound)
		}
		return nil, s.fail("get clinic", err)
	}
	return &c, nil
}

// Ping verifies the database answers.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return domain.NewStoreError("ping", err)
	}
	return nil
}
