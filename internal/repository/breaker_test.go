package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontani-server/internal/domain"
)

// stubStore fails every call with err and counts how many reached it.
type stubStore struct {
	err   error
	calls int
}

func (s *stubStore) FindCandidateRows(ctx context.Context, ids []int64) ([]domain.MatchRow, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []domain.MatchRow{{DiagnosisID: 1, DiagnosisName: "Grip", MatchedSymptomName: "Ateş"}}, nil
}

func (s *stubStore) SymptomNamesByDiagnosis(ctx context.Context, id int64) ([]string, error) {
	s.calls++
	return []string{"Ateş"}, s.err
}

func (s *stubStore) ClinicsByDiagnosis(ctx context.Context, id int64) ([]domain.Clinic, error) {
	s.calls++
	return nil, s.err
}

func (s *stubStore) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	s.calls++
	return nil, s.err
}

func (s *stubStore) ListDiagnoses(ctx context.Context) ([]domain.Diagnosis, error) {
	s.calls++
	return nil, s.err
}

func (s *stubStore) ListClinics(ctx context.Context) ([]domain.Clinic, error) {
	s.calls++
	return nil, s.err
}

func (s *stubStore) GetDiagnosis(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	s.calls++
	return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
}

func (s *stubStore) GetClinic(ctx context.Context, id int64) (*domain.Clinic, error) {
	s.calls++
	return &domain.Clinic{ID: id, Name: "Dahiliye"}, s.err
}

func (s *stubStore) DiagnosesByClinic(ctx context.Context, id int64) ([]domain.Diagnosis, error) {
	s.calls++
	return nil, s.err
}

func (s *stubStore) Ping(ctx context.Context) error {
	s.calls++
	return s.err
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func breakerConfig() domain.BreakerConfig {
	return domain.BreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	stub := &stubStore{}
	store := NewBreakerStore(stub, breakerConfig(), silentLogger())

	rows, err := store.FindCandidateRows(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	clinics, err := store.ClinicsByDiagnosis(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, clinics)

	assert.Equal(t, gobreaker.StateClosed, store.State())
}

func TestBreakerStore_OpensAndFailsFast(t *testing.T) {
	stub := &stubStore{err: domain.NewStoreError("query", errors.New("connection refused"))}
	store := NewBreakerStore(stub, breakerConfig(), silentLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.FindCandidateRows(ctx, []int64{1})
		assert.ErrorIs(t, err, domain.ErrStore)
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	callsBefore := stub.calls
	_, err := store.SymptomNamesByDiagnosis(ctx, 1)

	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, callsBefore, stub.calls, "open breaker must not reach the store")

	// health checks still observe the database
	assert.Error(t, store.Ping(ctx))
	assert.Equal(t, callsBefore+1, stub.calls)
}

func TestBreakerStore_NotFoundDoesNotTrip(t *testing.T) {
	stub := &stubStore{}
	store := NewBreakerStore(stub, breakerConfig(), silentLogger())

	for i := 0; i < 10; i++ {
		_, err := store.GetDiagnosis(context.Background(), 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, errors.Is(err, domain.ErrStore))
	}
	assert.Equal(t, gobreaker.StateClosed, store.State())
}

func TestBreakerStore_ReturnsTypedValues(t *testing.T) {
	store := NewBreakerStore(&stubStore{}, breakerConfig(), silentLogger())

	clinic, err := store.GetClinic(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Dahiliye", clinic.Name)

	names, err := store.SymptomNamesByDiagnosis(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ateş"}, names)
}
