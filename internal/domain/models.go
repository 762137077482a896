package domain

import "encoding/json"

// MaxCandidates is the fixed number of ranked diagnoses returned by a prediction.
const MaxCandidates = 5

// MaxSymptomIDs bounds the distinct symptom ids of one prediction request so
// the candidate query stays within driver bind parameter limits.
const MaxSymptomIDs = 256

// Symptom is a reportable sign a user can select.
type Symptom struct {
	ID   int64  `json:"belirtiID"`
	Name string `json:"belirtiAdi"`
}

// Diagnosis is a named medical condition record.
type Diagnosis struct {
	ID          int64  `json:"hastalikID"`
	Name        string `json:"hastalikAdi"`
	Description string `json:"hastalikAciklama"`
}

// Clinic is a medical specialty or department that treats diagnoses.
type Clinic struct {
	ID   int64  `json:"poliklinikID"`
	Name string `json:"poliklinikAdi"`
}

// MatchRow is one row of the candidate retrieval join: a diagnosis, one of the
// submitted symptoms it is linked to, and optionally one linked clinic.
// A diagnosis with k matched symptoms and m clinics yields up to k*max(m,1) rows.
type MatchRow struct {
	DiagnosisID          int64
	DiagnosisName        string
	DiagnosisDescription string
	MatchedSymptomName   string
	ClinicID             *int64
	ClinicName           *string
}

// Candidate is a request-scoped ranked diagnosis.
type Candidate struct {
	DiagnosisID     int64
	Name            string
	Description     string
	MatchedSymptoms []string
	AllSymptoms     []string
	Clinics         []Clinic
}

// MatchCount is the number of distinct submitted symptoms shared with the diagnosis.
func (c *Candidate) MatchCount() int {
	return len(c.MatchedSymptoms)
}

// Prediction is the wire representation of a ranked candidate.
type Prediction struct {
	ID          int64    `json:"id"`
	Name        string   `json:"adi"`
	Description string   `json:"aciklama"`
	Matched     []string `json:"belirtiler"`
	AllSymptoms []string `json:"tumBelirtiler"`
	Clinics     []Clinic `json:"poliklinikler"`
}

// PredictionRequest is the body of a prediction call. Symptoms is decoded
// lazily so that malformed payloads can be reported as validation failures.
type PredictionRequest struct {
	Symptoms json.RawMessage `json:"belirtiler"`
}

// DiagnosisSummary is the diagnosis block of a diagnosis detail response.
type DiagnosisSummary struct {
	Name string `json:"hastalikAdi"`
}

// SymptomName is a symptom entry of a diagnosis detail response.
type SymptomName struct {
	Name string `json:"belirtiAdi"`
}

// DiagnosisDetail describes one diagnosis with all its clinics and symptoms.
type DiagnosisDetail struct {
	Diagnosis DiagnosisSummary `json:"hastalik"`
	Clinics   []Clinic         `json:"poliklinikler"`
	Symptoms  []SymptomName    `json:"belirtiler"`
}

// DiagnosisRef is a diagnosis entry of a clinic detail response.
type DiagnosisRef struct {
	ID   int64  `json:"hastalikID"`
	Name string `json:"hastalikAdi"`
}

// ClinicDetail describes one clinic with the diagnoses it treats.
type ClinicDetail struct {
	ID        int64          `json:"poliklinikID"`
	Name      string         `json:"poliklinikAdi"`
	Diagnoses []DiagnosisRef `json:"hastaliklar"`
}
