package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontani-server/internal/domain"
)

type fakePredictor struct {
	raw json.RawMessage
	err error
}

func (f *fakePredictor) PredictRaw(ctx context.Context, raw json.RawMessage) ([]domain.Prediction, error) {
	f.raw = raw
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Prediction{{
		ID:          1,
		Name:        "Grip",
		Matched:     []string{"Ateş"},
		AllSymptoms: []string{"Ateş", "Öksürük"},
		Clinics:     []domain.Clinic{},
	}}, nil
}

type fakeCatalog struct {
	err error
}

func (f *fakeCatalog) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	return []domain.Symptom{{ID: 1, Name: "Ateş"}}, f.err
}

func (f *fakeCatalog) DiagnosisDetail(ctx context.Context, id int64) (*domain.DiagnosisDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	if id != 1 {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	return &domain.DiagnosisDetail{
		Diagnosis: domain.DiagnosisSummary{Name: "Grip"},
		Clinics:   []domain.Clinic{},
		Symptoms:  []domain.SymptomName{{Name: "Ateş"}},
	}, nil
}

func (f *fakeCatalog) ClinicDetail(ctx context.Context, id int64) (*domain.ClinicDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ClinicDetail{ID: id, Name: "Dahiliye", Diagnoses: []domain.DiagnosisRef{}}, nil
}

func newTestServer(p Predictor, c Catalog) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewServer(domain.MCPConfig{ServerName: "ontani-test", ServerVersion: "v0.0.1"}, p, c, logger)
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := newTestServer(&fakePredictor{}, &fakeCatalog{})

	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, s.logger)
}

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(domain.MCPConfig{}, &fakePredictor{}, &fakeCatalog{}, logrus.New())
	assert.NotNil(t, s.MCPServer())
}

func TestHandlePredict(t *testing.T) {
	predictor := &fakePredictor{}
	s := newTestServer(predictor, &fakeCatalog{})

	res, out, err := s.handlePredict(context.Background(), nil, PredictParams{Symptoms: []any{1.0, "2"}})

	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `[1,"2"]`, string(predictor.raw))

	result, ok := out.(PredictResult)
	require.True(t, ok)
	require.Len(t, result.Predictions, 1)
	assert.Equal(t, "Grip", result.Predictions[0].Name)
	assert.Contains(t, textOf(t, res), `"tumBelirtiler":["Ateş","Öksürük"]`)
	assert.Contains(t, textOf(t, res), `"poliklinikler":[]`)
}

func TestHandlePredict_MissingSymptoms(t *testing.T) {
	predictor := &fakePredictor{err: domain.NewValidationError("belirtiler", "is required", nil)}
	s := newTestServer(predictor, &fakeCatalog{})

	res, out, err := s.handlePredict(context.Background(), nil, PredictParams{})

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.True(t, res.IsError)
	assert.Nil(t, predictor.raw)
	assert.Contains(t, textOf(t, res), domain.ErrCodeValidation)
}

func TestHandlePredict_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no match", domain.ErrNoMatch, domain.ErrCodeNoMatch},
		{"store", domain.NewStoreError("find candidate rows", errors.New("dial tcp 10.1.1.1:5432: refused")), domain.ErrCodeStore},
		{"unexpected", errors.New("boom"), domain.ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakePredictor{err: tt.err}, &fakeCatalog{})

			res, _, err := s.handlePredict(context.Background(), nil, PredictParams{Symptoms: []any{1}})

			require.NoError(t, err)
			assert.True(t, res.IsError)
			text := textOf(t, res)
			assert.Contains(t, text, tt.code)
			assert.NotContains(t, text, "10.1.1.1")
		})
	}
}

func TestHandleListSymptoms(t *testing.T) {
	s := newTestServer(&fakePredictor{}, &fakeCatalog{})

	res, out, err := s.handleListSymptoms(context.Background(), nil, ListSymptomsParams{})

	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, ListSymptomsResult{Symptoms: []domain.Symptom{{ID: 1, Name: "Ateş"}}}, out)
	assert.JSONEq(t, `{"symptoms":[{"belirtiID":1,"belirtiAdi":"Ateş"}]}`, textOf(t, res))
}

func TestHandleGetDiagnosis(t *testing.T) {
	s := newTestServer(&fakePredictor{}, &fakeCatalog{})

	res, _, err := s.handleGetDiagnosis(context.Background(), nil, LookupParams{ID: 1})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"hastalik":{"hastalikAdi":"Grip"},"poliklinikler":[],"belirtiler":[{"belirtiAdi":"Ateş"}]}`, textOf(t, res))

	res, _, err = s.handleGetDiagnosis(context.Background(), nil, LookupParams{ID: 7})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), domain.ErrCodeNotFound)
}

func TestHandleGetClinic(t *testing.T) {
	s := newTestServer(&fakePredictor{}, &fakeCatalog{})

	res, out, err := s.handleGetClinic(context.Background(), nil, LookupParams{ID: 10})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	detail, ok := out.(*domain.ClinicDetail)
	require.True(t, ok)
	assert.Equal(t, "Dahiliye", detail.Name)

	failing := newTestServer(&fakePredictor{}, &fakeCatalog{err: domain.NewStoreError("get clinic", errors.New("timeout"))})
	res, _, err = failing.handleGetClinic(context.Background(), nil, LookupParams{ID: 10})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), domain.ErrCodeStore)
}
