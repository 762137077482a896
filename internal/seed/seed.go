// Package seed loads reference data (symptoms, clinics, diagnoses and their
// links) from a YAML file and writes it into a catalog store.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/sqlstore"
)

// Catalog is the YAML document layout.
type Catalog struct {
	Symptoms  []Symptom   `yaml:"symptoms"`
	Clinics   []Clinic    `yaml:"clinics"`
	Diagnoses []Diagnosis `yaml:"diagnoses"`
}

type Symptom struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type Clinic struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Diagnosis carries its links as id lists.
type Diagnosis struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Symptoms    []int64 `yaml:"symptoms"`
	Clinics     []int64 `yaml:"clinics"`
}

// Result summarises an applied catalog.
type Result struct {
	Symptoms  int
	Clinics   int
	Diagnoses int
	Links     int
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	catalog, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// Load decodes and validates a catalog. Unknown keys are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var catalog Catalog
	if err := dec.Decode(&catalog); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("seed file is empty")
		}
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks ids are positive and unique, names are present and every
// link points at a declared symptom or clinic.
func (c *Catalog) Validate() error {
	symptoms := make(map[int64]struct{}, len(c.Symptoms))
	for i, s := range c.Symptoms {
		if err := checkEntry("symptoms", i, s.ID, s.Name, symptoms); err != nil {
			return err
		}
	}

	clinics := make(map[int64]struct{}, len(c.Clinics))
	for i, cl := range c.Clinics {
		if err := checkEntry("clinics", i, cl.ID, cl.Name, clinics); err != nil {
			return err
		}
	}

	diagnoses := make(map[int64]struct{}, len(c.Diagnoses))
	for i, d := range c.Diagnoses {
		if err := checkEntry("diagnoses", i, d.ID, d.Name, diagnoses); err != nil {
			return err
		}
		for _, sid := range d.Symptoms {
			if _, ok := symptoms[sid]; !ok {
				return domain.NewValidationError(fmt.Sprintf("diagnoses[%d].symptoms", i),
					fmt.Sprintf("unknown symptom id %d", sid), sid)
			}
		}
		for _, cid := range d.Clinics {
			if _, ok := clinics[cid]; !ok {
				return domain.NewValidationError(fmt.Sprintf("diagnoses[%d].clinics", i),
					fmt.Sprintf("unknown clinic id %d", cid), cid)
			}
		}
	}
	return nil
}

func checkEntry(section string, i int, id int64, name string, seen map[int64]struct{}) error {
	field := fmt.Sprintf("%s[%d]", section, i)
	if id <= 0 {
		return domain.NewValidationError(field+".id", "must be a positive integer", id)
	}
	if name == "" {
		return domain.NewValidationError(field+".name", "is required", nil)
	}
	if _, dup := seen[id]; dup {
		return domain.NewValidationError(field+".id", "duplicate id", id)
	}
	seen[id] = struct{}{}
	return nil
}

// Apply upserts the whole catalog in one transaction. Links of every listed
// diagnosis are replaced, so re-applying an edited file converges.
func Apply(ctx context.Context, store *sqlstore.Store, catalog *Catalog, logger *logrus.Logger) (Result, error) {
	var res Result

	err := store.WithTx(ctx, func(tx *sqlstore.Tx) error {
		for _, s := range catalog.Symptoms {
			if err := tx.UpsertSymptom(ctx, domain.Symptom{ID: s.ID, Name: s.Name}); err != nil {
				return err
			}
		}
		for _, c := range catalog.Clinics {
			if err := tx.UpsertClinic(ctx, domain.Clinic{ID: c.ID, Name: c.Name}); err != nil {
				return err
			}
		}
		for _, d := range catalog.Diagnoses {
			if err := tx.UpsertDiagnosis(ctx, domain.Diagnosis{ID: d.ID, Name: d.Name, Description: d.Description}); err != nil {
				return err
			}
			if err := tx.ReplaceLinks(ctx, d.ID, d.Symptoms, d.Clinics); err != nil {
				return err
			}
			res.Links += len(d.Symptoms) + len(d.Clinics)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res.Symptoms = len(catalog.Symptoms)
	res.Clinics = len(catalog.Clinics)
	res.Diagnoses = len(catalog.Diagnoses)

	logger.WithFields(logrus.Fields{
		"symptoms":  res.Symptoms,
		"clinics":   res.Clinics,
		"diagnoses": res.Diagnoses,
		"links":     res.Links,
	}).Info("Catalog seeded")

	return res, nil
}
