package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
)

// Cache stores JSON-serialisable catalog responses.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{})
}

// CatalogService serves the reference data listings. Results may come from
// the cache since the catalog is only changed by seeding.
type CatalogService struct {
	store  domain.CatalogStore
	cache  Cache
	logger *logrus.Logger
}

// NewCatalogService creates a catalog service. cache may be nil.
func NewCatalogService(store domain.CatalogStore, cache Cache, logger *logrus.Logger) *CatalogService {
	return &CatalogService{store: store, cache: cache, logger: logger}
}

// cached returns the cached value for key or loads, stores and returns it.
func cached[T any](ctx context.Context, s *CatalogService, key string, load func(context.Context) (T, error)) (T, error) {
	var value T
	if s.cache != nil && s.cache.Get(ctx, key, &value) {
		return value, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, value)
	}
	return value, nil
}

// ListSymptoms returns every symptom ordered by id.
func (s *CatalogService) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	return cached(ctx, s, "symptoms", func(ctx context.Context) ([]domain.Symptom, error) {
		list, err := s.store.ListSymptoms(ctx)
		if err != nil {
			return nil, domain.NewStoreError("list symptoms", err)
		}
		if list == nil {
			list = []domain.Symptom{}
		}
		return list, nil
	})
}

// ListDiagnoses returns every diagnosis ordered by id.
func (s *CatalogService) ListDiagnoses(ctx context.Context) ([]domain.Diagnosis, error) {
	return cached(ctx, s, "diagnoses", func(ctx context.Context) ([]domain.Diagnosis, error) {
		list, err := s.store.ListDiagnoses(ctx)
		if err != nil {
			return nil, domain.NewStoreError("list diagnoses", err)
		}
		if list == nil {
			list = []domain.Diagnosis{}
		}
		return list, nil
	})
}

// ListClinics returns every clinic ordered by id.
func (s *CatalogService) ListClinics(ctx context.Context) ([]domain.Clinic, error) {
	return cached(ctx, s, "clinics", func(ctx context.Context) ([]domain.Clinic, error) {
		list, err := s.store.ListClinics(ctx)
		if err != nil {
			return nil, domain.NewStoreError("list clinics", err)
		}
		if list == nil {
			list = []domain.Clinic{}
		}
		return list, nil
	})
}

// DiagnosisDetail returns a diagnosis with its clinics and complete symptom
// list. A missing id yields an error matching domain.ErrNotFound.
func (s *CatalogService) DiagnosisDetail(ctx context.Context, id int64) (*domain.DiagnosisDetail, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("id", "must be a positive integer", id)
	}

	return cached(ctx, s, fmt.Sprintf("diagnosis:%d", id), func(ctx context.Context) (*domain.DiagnosisDetail, error) {
		diagnosis, err := s.store.GetDiagnosis(ctx, id)
		if err != nil {
			return nil, classifyLookup("get diagnosis", err)
		}

		clinics, err := s.store.ClinicsByDiagnosis(ctx, id)
		if err != nil {
			return nil, domain.NewStoreError("clinics by diagnosis", err)
		}
		names, err := s.store.SymptomNamesByDiagnosis(ctx, id)
		if err != nil {
			return nil, domain.NewStoreError("symptoms by diagnosis", err)
		}

		symptoms := make([]domain.SymptomName, 0, len(names))
		for _, n := range names {
			symptoms = append(symptoms, domain.SymptomName{Name: n})
		}

		return &domain.DiagnosisDetail{
			Diagnosis: domain.DiagnosisSummary{Name: diagnosis.Name},
			Clinics:   dedupClinics(clinics),
			Symptoms:  symptoms,
		}, nil
	})
}

// ClinicDetail returns a clinic with every diagnosis it treats. A missing id
// yields an error matching domain.ErrNotFound.
func (s *CatalogService) ClinicDetail(ctx context.Context, id int64) (*domain.ClinicDetail, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("id", "must be a positive integer", id)
	}

	return cached(ctx, s, fmt.Sprintf("clinic:%d", id), func(ctx context.Context) (*domain.ClinicDetail, error) {
		clinic, err := s.store.GetClinic(ctx, id)
		if err != nil {
			return nil, classifyLookup("get clinic", err)
		}

		diagnoses, err := s.store.DiagnosesByClinic(ctx, id)
		if err != nil {
			return nil, domain.NewStoreError("diagnoses by clinic", err)
		}

		refs := make([]domain.DiagnosisRef, 0, len(diagnoses))
		for _, d := range diagnoses {
			refs = append(refs, domain.DiagnosisRef{ID: d.ID, Name: d.Name})
		}

		return &domain.ClinicDetail{ID: clinic.ID, Name: clinic.Name, Diagnoses: refs}, nil
	})
}

// Ping reports whether the store answers.
func (s *CatalogService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return domain.NewStoreError("ping", err)
	}
	return nil
}

// classifyLookup keeps not-found errors as they are and wraps anything else
// as a store failure.
func classifyLookup(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.NewStoreError(op, err)
}
