package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
)

// fakeStore is an in-memory catalog answering the same queries as the SQL stores.
type fakeStore struct {
	symptoms  map[int64]string
	diagnoses map[int64]domain.Diagnosis
	clinics   map[int64]string
	links     map[int64][]int64 // diagnosis -> symptom ids
	clinicsOf map[int64][]int64 // diagnosis -> clinic ids

	findErr     error
	symptomsErr error
	clinicsErr  error

	findCalls   atomic.Int32
	enrichCalls atomic.Int32

	mu       sync.Mutex
	inFlight int
	peak     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		symptoms:  map[int64]string{},
		diagnoses: map[int64]domain.Diagnosis{},
		clinics:   map[int64]string{},
		links:     map[int64][]int64{},
		clinicsOf: map[int64][]int64{},
	}
}

func (f *fakeStore) addSymptom(id int64, name string) *fakeStore {
	f.symptoms[id] = name
	return f
}

func (f *fakeStore) addClinic(id int64, name string) *fakeStore {
	f.clinics[id] = name
	return f
}

func (f *fakeStore) addDiagnosis(id int64, name string, symptomIDs []int64, clinicIDs []int64) *fakeStore {
	f.diagnoses[id] = domain.Diagnosis{ID: id, Name: name, Description: name + " açıklaması"}
	f.links[id] = symptomIDs
	f.clinicsOf[id] = clinicIDs
	return f
}

func (f *fakeStore) track() func() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}
}

func (f *fakeStore) sortedDiagnosisIDs() []int64 {
	ids := make([]int64, 0, len(f.diagnoses))
	for id := range f.diagnoses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeStore) FindCandidateRows(ctx context.Context, symptomIDs []int64) ([]domain.MatchRow, error) {
	f.findCalls.Add(1)
	if f.findErr != nil {
		return nil, f.findErr
	}

	wanted := map[int64]bool{}
	for _, id := range symptomIDs {
		wanted[id] = true
	}

	var rows []domain.MatchRow
	for _, did := range f.sortedDiagnosisIDs() {
		d := f.diagnoses[did]
		for _, sid := range f.links[did] {
			if !wanted[sid] {
				continue
			}
			if len(f.clinicsOf[did]) == 0 {
				rows = append(rows, domain.MatchRow{
					DiagnosisID: did, DiagnosisName: d.Name, DiagnosisDescription: d.Description,
					MatchedSymptomName: f.symptoms[sid],
				})
				continue
			}
			for _, cid := range f.clinicsOf[did] {
				cid := cid
				name := f.clinics[cid]
				rows = append(rows, domain.MatchRow{
					DiagnosisID: did, DiagnosisName: d.Name, DiagnosisDescription: d.Description,
					MatchedSymptomName: f.symptoms[sid], ClinicID: &cid, ClinicName: &name,
				})
			}
		}
	}
	return rows, nil
}

func (f *fakeStore) SymptomNamesByDiagnosis(ctx context.Context, diagnosisID int64) ([]string, error) {
	defer f.track()()
	f.enrichCalls.Add(1)
	if f.symptomsErr != nil {
		return nil, f.symptomsErr
	}
	names := []string{}
	for _, sid := range f.links[diagnosisID] {
		names = append(names, f.symptoms[sid])
	}
	return names, nil
}

func (f *fakeStore) ClinicsByDiagnosis(ctx context.Context, diagnosisID int64) ([]domain.Clinic, error) {
	defer f.track()()
	f.enrichCalls.Add(1)
	if f.clinicsErr != nil {
		return nil, f.clinicsErr
	}
	clinics := []domain.Clinic{}
	for _, cid := range f.clinicsOf[diagnosisID] {
		clinics = append(clinics, domain.Clinic{ID: cid, Name: f.clinics[cid]})
	}
	return clinics, nil
}

func (f *fakeStore) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	var out []domain.Symptom
	for id, name := range f.symptoms {
		out = append(out, domain.Symptom{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListDiagnoses(ctx context.Context) ([]domain.Diagnosis, error) {
	var out []domain.Diagnosis
	for _, id := range f.sortedDiagnosisIDs() {
		out = append(out, f.diagnoses[id])
	}
	return out, nil
}

func (f *fakeStore) ListClinics(ctx context.Context) ([]domain.Clinic, error) {
	var out []domain.Clinic
	for id, name := range f.clinics {
		out = append(out, domain.Clinic{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetDiagnosis(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	d, ok := f.diagnoses[id]
	if !ok {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	return &d, nil
}

func (f *fakeStore) GetClinic(ctx context.Context, id int64) (*domain.Clinic, error) {
	name, ok := f.clinics[id]
	if !ok {
		return nil, fmt.Errorf("clinic %d: %w", id, domain.ErrNotFound)
	}
	return &domain.Clinic{ID: id, Name: name}, nil
}

func (f *fakeStore) DiagnosesByClinic(ctx context.Context, clinicID int64) ([]domain.Diagnosis, error) {
	var out []domain.Diagnosis
	for _, did := range f.sortedDiagnosisIDs() {
		for _, cid := range f.clinicsOf[did] {
			if cid == clinicID {
				out = append(out, f.diagnoses[did])
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.findErr
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
