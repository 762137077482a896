package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
)

const (
	candidateRowsQuery = `
		SELECT d.diagnosis_id, d.diagnosis_name, COALESCE(d.diagnosis_description, ''),
			   s.symptom_name, c.clinic_id, c.clinic_name
		FROM diagnosis_symptoms ds
		JOIN diagnoses d ON d.diagnosis_id = ds.diagnosis_id
		JOIN symptoms s ON s.symptom_id = ds.symptom_id
		LEFT JOIN diagnosis_clinics dc ON dc.diagnosis_id = d.diagnosis_id
		LEFT JOIN clinics c ON c.clinic_id = dc.clinic_id
		WHERE ds.symptom_id = ANY($1)
		ORDER BY d.diagnosis_id, s.symptom_id, c.clinic_id`

	symptomNamesQuery = `
		SELECT s.symptom_name
		FROM diagnosis_symptoms ds
		JOIN symptoms s ON s.symptom_id = ds.symptom_id
		WHERE ds.diagnosis_id = $1
		ORDER BY s.symptom_id`

	clinicsByDiagnosisQuery = `
		SELECT c.clinic_id, c.clinic_name
		FROM diagnosis_clinics dc
		JOIN clinics c ON c.clinic_id = dc.clinic_id
		WHERE dc.diagnosis_id = $1
		ORDER BY c.clinic_id`

	diagnosesByClinicQuery = `
		SELECT d.diagnosis_id, d.diagnosis_name, COALESCE(d.diagnosis_description, '')
		FROM diagnosis_clinics dc
		JOIN diagnoses d ON d.diagnosis_id = dc.diagnosis_id
		WHERE dc.clinic_id = $1
		ORDER BY d.diagnosis_id`
)

// CatalogRepository answers matching and catalog queries from PostgreSQL
// through the shared pgx pool. Every call is bounded by queryTimeout, which
// also bounds the wait for a free pool connection.
type CatalogRepository struct {
	db           *pgxpool.Pool
	queryTimeout time.Duration
	log          *logrus.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *pgxpool.Pool, queryTimeout time.Duration, logger *logrus.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:           db,
		queryTimeout: queryTimeout,
		log:          logger,
	}
}

func (r *CatalogRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *CatalogRepository) fail(op string, err error, fields logrus.Fields) error {
	fields["operation"] = op
	fields["error"] = err
	r.log.WithFields(fields).Error("Catalog query failed")
	return domain.NewStoreError(op, err)
}

// FindCandidateRows returns the diagnosis x matched symptom x clinic rows for
// the given symptom ids in a single query.
func (r *CatalogRepository) FindCandidateRows(ctx context.Context, symptomIDs []int64) ([]domain.MatchRow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.log.WithField("params", symptomIDs).Debug("Executing candidate query")

	rows, err := r.db.Query(ctx, candidateRowsQuery, symptomIDs)
	if err != nil {
		return nil, r.fail("find candidate rows", err, logrus.Fields{"symptoms": len(symptomIDs)})
	}
	defer rows.Close()

	var result []domain.MatchRow
	for rows.Next() {
		var row domain.MatchRow
		if err := rows.Scan(
			&row.DiagnosisID,
			&row.DiagnosisName,
			&row.DiagnosisDescription,
			&row.MatchedSymptomName,
			&row.ClinicID,
			&row.ClinicName,
		); err != nil {
			return nil, r.fail("scan candidate row", err, logrus.Fields{})
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("iterate candidate rows", err, logrus.Fields{})
	}

	return result, nil
}

// SymptomNamesByDiagnosis returns every symptom name linked to a diagnosis.
func (r *CatalogRepository) SymptomNamesByDiagnosis(ctx context.Context, diagnosisID int64) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, symptomNamesQuery, diagnosisID)
	if err != nil {
		return nil, r.fail("symptoms by diagnosis", err, logrus.Fields{"diagnosis_id": diagnosisID})
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, r.fail("symptoms by diagnosis", err, logrus.Fields{"diagnosis_id": diagnosisID})
	}
	return names, nil
}

// ClinicsByDiagnosis returns every clinic linked to a diagnosis.
func (r *CatalogRepository) ClinicsByDiagnosis(ctx context.Context, diagnosisID int64) ([]domain.Clinic, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, clinicsByDiagnosisQuery, diagnosisID)
	if err != nil {
		return nil, r.fail("clinics by diagnosis", err, logrus.Fields{"diagnosis_id": diagnosisID})
	}
	clinics, err := pgx.CollectRows(rows, scanClinic)
	if err != nil {
		return nil, r.fail("clinics by diagnosis", err, logrus.Fields{"diagnosis_id": diagnosisID})
	}
	return clinics, nil
}

// ListSymptoms returns all symptoms ordered by id.
func (r *CatalogRepository) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT symptom_id, symptom_name FROM symptoms ORDER BY symptom_id`)
	if err != nil {
		return nil, r.fail("list symptoms", err, logrus.Fields{})
	}
	symptoms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Symptom, error) {
		var s domain.Symptom
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	})
	if err != nil {
		return nil, r.fail("list symptoms", err, logrus.Fields{})
	}
	return symptoms, nil
}

// ListDiagnoses returns all diagnoses ordered by id.
func (r *CatalogRepository) ListDiagnoses(ctx context.Context) ([]domain.Diagnosis, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT diagnosis_id, diagnosis_name, COALESCE(diagnosis_description, '')
		FROM diagnoses ORDER BY diagnosis_id`)
	if err != nil {
		return nil, r.fail("list diagnoses", err, logrus.Fields{})
	}
	diagnoses, err := pgx.CollectRows(rows, scanDiagnosis)
	if err != nil {
		return nil, r.fail("list diagnoses", err, logrus.Fields{})
	}
	return diagnoses, nil
}

// ListClinics returns all clinics ordered by id.
func (r *CatalogRepository) ListClinics(ctx context.Context) ([]domain.Clinic, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT clinic_id, clinic_name FROM clinics ORDER BY clinic_id`)
	if err != nil {
		return nil, r.fail("list clinics", err, logrus.Fields{})
	}
	clinics, err := pgx.CollectRows(rows, scanClinic)
	if err != nil {
		return nil, r.fail("list clinics", err, logrus.Fields{})
	}
	return clinics, nil
}

// GetDiagnosis retrieves a diagnosis by its ID
func (r *CatalogRepository) GetDiagnosis(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var d domain.Diagnosis
	err := r.db.QueryRow(ctx, `
		SELECT diagnosis_id, diagnosis_name, COALESCE(diagnosis_description, '')
		FROM diagnoses WHERE diagnosis_id = $1`, id).Scan(&d.ID, &d.Name, &d.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
		}
		return nil, r.fail("get diagnosis", err, logrus.Fields{"diagnosis_id": id})
	}
	return &d, nil
}

// GetClinic retrieves a clinic by its ID
func (r *CatalogRepository) GetClinic(ctx context.Context, id int64) (*domain.Clinic, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var c domain.Clinic
	err := r.db.QueryRow(ctx, `SELECT clinic_id, clinic_name FROM clinics WHERE clinic_id = $1`, id).
		Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("clinic %d: %w", id, domain.ErrNotFound)
		}
		return nil, r.fail("get clinic", err, logrus.Fields{"clinic_id": id})
	}
	return &c, nil
}

// DiagnosesByClinic returns every diagnosis treated by a clinic.
func (r *CatalogRepository) DiagnosesByClinic(ctx context.Context, clinicID int64) ([]domain.Diagnosis, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, diagnosesByClinicQuery, clinicID)
	if err != nil {
		return nil, r.fail("diagnoses by clinic", err, logrus.Fields{"clinic_id": clinicID})
	}
	diagnoses, err := pgx.CollectRows(rows, scanDiagnosis)
	if err != nil {
		return nil, r.fail("diagnoses by clinic", err, logrus.Fields{"clinic_id": clinicID})
	}
	return diagnoses, nil
}

// Ping verifies a pool connection can be acquired and used.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.db.Ping(ctx); err != nil {
		return domain.NewStoreError("ping", err)
	}
	return nil
}

func scanClinic(row pgx.CollectableRow) (domain.Clinic, error) {
	var c domain.Clinic
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}

func scanDiagnosis(row pgx.CollectableRow) (domain.Diagnosis, error) {
	var d domain.Diagnosis
	err := row.Scan(&d.ID, &d.Name, &d.Description)
	return d, err
}
