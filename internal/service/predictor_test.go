package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontani-server/internal/domain"
)

// sampleStore: symptoms 1..3, clinics 10 and 11.
//
//	D1 Grip          {1, 2, 3}  clinics {10, 11}
//	D2 Soğuk algınlığı {1}      clinics {10}
//	D3 Migren        {3}        no clinic
func sampleStore() *fakeStore {
	return newFakeStore().
		addSymptom(1, "Ateş").
		addSymptom(2, "Öksürük").
		addSymptom(3, "Baş ağrısı").
		addClinic(10, "Dahiliye").
		addClinic(11, "Kulak Burun Boğaz").
		addDiagnosis(1, "Grip", []int64{1, 2, 3}, []int64{10, 11}).
		addDiagnosis(2, "Soğuk algınlığı", []int64{1}, []int64{10}).
		addDiagnosis(3, "Migren", []int64{3}, nil)
}

func newTestPredictor(store domain.MatchStore, concurrency int) *Predictor {
	return NewPredictor(store, domain.MatchingConfig{EnrichConcurrency: concurrency}, testLogger())
}

func TestPredict_RanksByMatchCount(t *testing.T) {
	store := sampleStore()
	p := newTestPredictor(store, 5)

	got, err := p.Predict(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Grip", got[0].Name)
	assert.Equal(t, "Grip açıklaması", got[0].Description)
	assert.ElementsMatch(t, []string{"Ateş", "Öksürük"}, got[0].Matched)
	assert.Equal(t, []string{"Ateş", "Öksürük", "Baş ağrısı"}, got[0].AllSymptoms)
	assert.Equal(t, []domain.Clinic{{ID: 10, Name: "Dahiliye"}, {ID: 11, Name: "Kulak Burun Boğaz"}}, got[0].Clinics)

	assert.Equal(t, int64(2), got[1].ID)
	assert.Len(t, got[1].Matched, 1)
}

func TestPredict_NoMatch(t *testing.T) {
	store := sampleStore()
	p := newTestPredictor(store, 5)

	got, err := p.Predict(context.Background(), []int64{99})

	assert.ErrorIs(t, err, domain.ErrNoMatch)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), store.enrichCalls.Load())
}

func TestPredict_CapsAtFive(t *testing.T) {
	store := newFakeStore()
	ids := []int64{}
	for i := int64(1); i <= 7; i++ {
		store.addSymptom(i, "belirti")
		store.addDiagnosis(i, "hastalık", []int64{i}, nil)
		ids = append(ids, i)
	}
	p := newTestPredictor(store, 5)

	got, err := p.Predict(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, got, 5)

	for i, pred := range got {
		assert.Equal(t, int64(i+1), pred.ID)
		assert.Len(t, pred.Matched, 1)
	}
	// only surviving candidates are enriched
	assert.Equal(t, int32(10), store.enrichCalls.Load())
}

func TestPredict_DiagnosisWithoutClinicEncodesEmptyArray(t *testing.T) {
	p := newTestPredictor(sampleStore(), 5)

	got, err := p.Predict(context.Background(), []int64{3})
	require.NoError(t, err)

	var migraine *domain.Prediction
	for i := range got {
		if got[i].ID == 3 {
			migraine = &got[i]
		}
	}
	require.NotNil(t, migraine)

	body, err := json.Marshal(migraine)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"poliklinikler":[]`)
}

func TestPredict_MatchedSubsetOfAll(t *testing.T) {
	p := newTestPredictor(sampleStore(), 1)

	got, err := p.Predict(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)

	for _, pred := range got {
		all := map[string]bool{}
		for _, s := range pred.AllSymptoms {
			assert.False(t, all[s], "duplicate in tumBelirtiler: %s", s)
			all[s] = true
		}
		seen := map[string]bool{}
		for _, s := range pred.Matched {
			assert.True(t, all[s], "%s missing from tumBelirtiler", s)
			assert.False(t, seen[s], "duplicate in belirtiler: %s", s)
			seen[s] = true
		}
	}
}

func TestPredict_Idempotent(t *testing.T) {
	p := newTestPredictor(sampleStore(), 5)
	ctx := context.Background()

	first, err := p.Predict(ctx, []int64{1, 3})
	require.NoError(t, err)
	second, err := p.Predict(ctx, []int64{1, 3})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPredictRaw_ValidationNeverTouchesStore(t *testing.T) {
	inputs := []string{``, `[]`, `"3"`, `["abc"]`, `[0]`, `{"a":1}`}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			store := sampleStore()
			p := newTestPredictor(store, 5)

			_, err := p.PredictRaw(context.Background(), json.RawMessage(in))

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, int32(0), store.findCalls.Load())
			assert.Equal(t, int32(0), store.enrichCalls.Load())
		})
	}
}

func TestPredictRaw_CoercesNumericStrings(t *testing.T) {
	p := newTestPredictor(sampleStore(), 5)

	got, err := p.PredictRaw(context.Background(), json.RawMessage(`["1", "2"]`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestPredict_RetrievalFailureIsStoreError(t *testing.T) {
	store := sampleStore()
	store.findErr = errors.New("dial tcp: connection refused")
	p := newTestPredictor(store, 5)

	got, err := p.Predict(context.Background(), []int64{1})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.False(t, errors.Is(err, domain.ErrNoMatch))
}

func TestPredict_EnrichmentFailureAbortsRequest(t *testing.T) {
	store := sampleStore()
	store.clinicsErr = errors.New("too many connections")
	p := newTestPredictor(store, 5)

	got, err := p.Predict(context.Background(), []int64{1, 2})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestEnricher_BoundedConcurrencyKeepsOrder(t *testing.T) {
	store := newFakeStore()
	var candidates []domain.Candidate
	for i := int64(1); i <= 5; i++ {
		store.addSymptom(i, "s")
		store.addDiagnosis(i, "d", []int64{i}, nil)
		candidates = append(candidates, domain.Candidate{DiagnosisID: 6 - i, MatchedSymptoms: []string{"s"}})
	}

	e := NewEnricher(store, 2, testLogger())
	got, err := e.Enrich(context.Background(), candidates)
	require.NoError(t, err)

	require.Len(t, got, 5)
	for i, c := range got {
		assert.Equal(t, candidates[i].DiagnosisID, c.DiagnosisID)
	}
	assert.LessOrEqual(t, store.peak, 2)
}

func TestNewEnricher_ClampsConcurrency(t *testing.T) {
	assert.Equal(t, 1, NewEnricher(nil, 0, testLogger()).concurrency)
	assert.Equal(t, 10, NewEnricher(nil, 64, testLogger()).concurrency)
}

func TestEnricher_AddsMatchedNamesMissingFromFullList(t *testing.T) {
	store := newFakeStore().addDiagnosis(1, "d", nil, nil)
	e := NewEnricher(store, 1, testLogger())

	got, err := e.Enrich(context.Background(), []domain.Candidate{{DiagnosisID: 1, MatchedSymptoms: []string{"Ateş"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ateş"}, got[0].AllSymptoms)
}

func TestPredict_HonorsCancelledContext(t *testing.T) {
	store := &blockingStore{fakeStore: sampleStore()}
	p := newTestPredictor(store, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Predict(ctx, []int64{1})
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// blockingStore waits for the context on enrichment lookups, as a pool
// with no free connection would.
type blockingStore struct {
	*fakeStore
}

func (b *blockingStore) SymptomNamesByDiagnosis(ctx context.Context, id int64) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingStore) ClinicsByDiagnosis(ctx context.Context, id int64) ([]domain.Clinic, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
