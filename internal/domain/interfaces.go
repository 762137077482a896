package domain

import (
	"context"
)

// MatchStore answers the queries of the matching engine. Implementations must
// return *StoreError for every infrastructure failure.
type MatchStore interface {
	// FindCandidateRows returns one row per diagnosis x matched symptom x clinic
	// for every diagnosis linked to at least one of symptomIDs, ordered by
	// diagnosis id.
	FindCandidateRows(ctx context.Context, symptomIDs []int64) ([]MatchRow, error)

	// SymptomNamesByDiagnosis returns the complete symptom name list of a diagnosis.
	SymptomNamesByDiagnosis(ctx context.Context, diagnosisID int64) ([]string, error)

	// ClinicsByDiagnosis returns every clinic linked to a diagnosis.
	ClinicsByDiagnosis(ctx context.Context, diagnosisID int64) ([]Clinic, error)
}

// CatalogStore serves the reference data listings in addition to matching.
type CatalogStore interface {
	MatchStore

	ListSymptoms(ctx context.Context) ([]Symptom, error)
	ListDiagnoses(ctx context.Context) ([]Diagnosis, error)
	ListClinics(ctx context.Context) ([]Clinic, error)

	// GetDiagnosis returns ErrNotFound (wrapped) when the id does not exist.
	GetDiagnosis(ctx context.Context, id int64) (*Diagnosis, error)
	// GetClinic returns ErrNotFound (wrapped) when the id does not exist.
	GetClinic(ctx context.Context, id int64) (*Clinic, error)
	DiagnosesByClinic(ctx context.Context, clinicID int64) ([]Diagnosis, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
