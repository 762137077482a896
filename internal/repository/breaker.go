package repository

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/metrics"
)

// BreakerStore guards a CatalogStore with a circuit breaker. While the
// breaker is open every call fails fast with a *domain.StoreError instead of
// waiting on an unhealthy database.
type BreakerStore struct {
	next domain.CatalogStore
	cb   *gobreaker.CircuitBreaker
	log  *logrus.Logger
}

// NewBreakerStore wraps next with a breaker configured from cfg.
func NewBreakerStore(next domain.CatalogStore, cfg domain.BreakerConfig, logger *logrus.Logger) *BreakerStore {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        "catalog-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= cfg.FailureRatio
		},
		// Missing rows and callers giving up say nothing about database health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
			metrics.SetBreakerState(name, int(to))
		},
	}

	return &BreakerStore{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
		log:  logger,
	}
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

// guard runs fn through the breaker. Rejections by an open or half-open
// breaker become StoreErrors; errors from fn pass through unchanged.
func guard[T any](b *BreakerStore, op string, fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, domain.NewStoreError(op, err)
		}
		return zero, err
	}
	return result.(T), nil
}

// FindCandidateRows runs the candidate join through the breaker.
func (b *BreakerStore) FindCandidateRows(ctx context.Context, symptomIDs []int64) ([]domain.MatchRow, error) {
	return guard(b, "find candidate rows", func() ([]domain.MatchRow, error) {
		return b.next.FindCandidateRows(ctx, symptomIDs)
	})
}

// SymptomNamesByDiagnosis loads the complete symptom list of a diagnosis through the breaker.
func (b *BreakerStore) SymptomNamesByDiagnosis(ctx context.Context, diagnosisID int64) ([]string, error) {
	return guard(b, "symptoms by diagnosis", func() ([]string, error) {
		return b.next.SymptomNamesByDiagnosis(ctx, diagnosisID)
	})
}

// ClinicsByDiagnosis loads every clinic of a diagnosis through the breaker.
func (b *BreakerStore) ClinicsByDiagnosis(ctx context.Context, diagnosisID int64) ([]domain.Clinic, error) {
	return guard(b, "clinics by diagnosis", func() ([]domain.Clinic, error) {
		return b.next.ClinicsByDiagnosis(ctx, diagnosisID)
	})
}

// ListSymptoms lists symptoms through the breaker.
func (b *BreakerStore) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	return guard(b, "list symptoms", func() ([]domain.Symptom, error) {
		return b.next.ListSymptoms(ctx)
	})
}

// ListDiagnoses lists diagnoses through the breaker.
func (b *BreakerStore) ListDiagnoses(ctx context.Context) ([]domain.Diagnosis, error) {
	return guard(b, "list diagnoses", func() ([]domain.Diagnosis, error) {
		return b.next.ListDiagnoses(ctx)
	})
}

// ListClinics lists clinics through the breaker.
func (b *BreakerStore) ListClinics(ctx context.Context) ([]domain.Clinic, error) {
	return guard(b, "list clinics", func() ([]domain.Clinic, error) {
		return b.next.ListClinics(ctx)
	})
}

// GetDiagnosis loads one diagnosis through the breaker. A missing id is
// reported as not found and does not count as a failure.
func (b *BreakerStore) GetDiagnosis(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	return guard(b, "get diagnosis", func() (*domain.Diagnosis, error) {
		return b.next.GetDiagnosis(ctx, id)
	})
}

// GetClinic loads one clinic through the breaker. A missing id is reported
// as not found and does not count as a failure.
func (b *BreakerStore) GetClinic(ctx context.Context, id int64) (*domain.Clinic, error) {
	return guard(b, "get clinic", func() (*domain.Clinic, error) {
		return b.next.GetClinic(ctx, id)
	})
}

// DiagnosesByClinic lists the diagnoses a clinic treats through the breaker.
func (b *BreakerStore) DiagnosesByClinic(ctx context.Context, clinicID int64) ([]domain.Diagnosis, error) {
	return guard(b, "diagnoses by clinic", func() ([]domain.Diagnosis, error) {
		return b.next.DiagnosesByClinic(ctx, clinicID)
	})
}

// Ping bypasses the breaker so health checks observe the real database.
func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
