package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ontani-server/internal/domain"
)

// Tx writes reference data inside one transaction. Every write is an upsert
// so a seed file can be applied repeatedly.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

// WithTx runs fn in a transaction, committing when it returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("begin transaction", err)
	}

	if err := fn(&Tx{tx: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("Rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.fail("commit transaction", err)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := t.tx.ExecContext(ctx, t.dialect.rebind(query), args...); err != nil {
		return domain.NewStoreError(op, err)
	}
	return nil
}

// UpsertSymptom inserts or renames a symptom.
func (t *Tx) UpsertSymptom(ctx context.Context, s domain.Symptom) error {
	return t.exec(ctx, "upsert symptom", `
		INSERT INTO symptoms (symptom_id, symptom_name) VALUES (?, ?)
		ON CONFLICT (symptom_id) DO UPDATE SET symptom_name = excluded.symptom_name`,
		s.ID, s.Name)
}

// UpsertClinic inserts or renames a clinic.
func (t *Tx) UpsertClinic(ctx context.Context, c domain.Clinic) error {
	return t.exec(ctx, "upsert clinic", `
		INSERT INTO clinics (clinic_id, clinic_name) VALUES (?, ?)
		ON CONFLICT (clinic_id) DO UPDATE SET clinic_name = excluded.clinic_name`,
		c.ID, c.Name)
}

// UpsertDiagnosis inserts or updates a diagnosis. An empty description is
// stored as NULL.
func (t *Tx) UpsertDiagnosis(ctx context.Context, d domain.Diagnosis) error {
	var description interface{}
	if d.Description != "" {
		description = d.Description
	}
	return t.exec(ctx, "upsert diagnosis", `
		INSERT INTO diagnoses (diagnosis_id, diagnosis_name, diagnosis_description) VALUES (?, ?, ?)
		ON CONFLICT (diagnosis_id) DO UPDATE
		SET diagnosis_name = excluded.diagnosis_name,
			diagnosis_description = excluded.diagnosis_description`,
		d.ID, d.Name, description)
}

// ReplaceLinks sets the exact symptom and clinic links of a diagnosis.
func (t *Tx) ReplaceLinks(ctx context.Context, diagnosisID int64, symptomIDs, clinicIDs []int64) error {
	if err := t.exec(ctx, "clear symptom links",
		`DELETE FROM diagnosis_symptoms WHERE diagnosis_id = ?`, diagnosisID); err != nil {
		return err
	}
	if err := t.exec(ctx, "clear clinic links",
		`DELETE FROM diagnosis_clinics WHERE diagnosis_id = ?`, diagnosisID); err != nil {
		return err
	}

	for _, sid := range symptomIDs {
		if err := t.exec(ctx, "link symptom", `
			INSERT INTO diagnosis_symptoms (diagnosis_id, symptom_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, diagnosisID, sid); err != nil {
			return fmt.Errorf("diagnosis %d symptom %d: %w", diagnosisID, sid, err)
		}
	}
	for _, cid := range clinicIDs {
		if err := t.exec(ctx, "link clinic", `
			INSERT INTO diagnosis_clinics (diagnosis_id, clinic_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, diagnosisID, cid); err != nil {
			return fmt.Errorf("diagnosis %d clinic %d: %w", diagnosisID, cid, err)
		}
	}
	return nil
}
