package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ontani-server/internal/domain"
)

// Enricher completes ranked candidates with their full symptom list and
// full clinic list.
type Enricher struct {
	store       domain.MatchStore
	concurrency int
	logger      *logrus.Logger
}

// NewEnricher creates an enricher running at most concurrency lookups at a
// time. A value below 1 runs them sequentially; there are never more than two
// lookups per candidate to run.
func NewEnricher(store domain.MatchStore, concurrency int, logger *logrus.Logger) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 2*domain.MaxCandidates {
		concurrency = 2 * domain.MaxCandidates
	}
	return &Enricher{store: store, concurrency: concurrency, logger: logger}
}

// Enrich returns new candidates in the same order as the input. Any failed
// lookup cancels the rest and fails the whole call.
func (e *Enricher) Enrich(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, len(candidates))
	symptoms := make([][]string, len(candidates))
	clinics := make([][]domain.Clinic, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range candidates {
		id := candidates[i].DiagnosisID

		g.Go(func() error {
			names, err := e.store.SymptomNamesByDiagnosis(gctx, id)
			if err != nil {
				return domain.NewStoreError("symptoms by diagnosis", err)
			}
			symptoms[i] = names
			return nil
		})
		g.Go(func() error {
			list, err := e.store.ClinicsByDiagnosis(gctx, id)
			if err != nil {
				return domain.NewStoreError("clinics by diagnosis", err)
			}
			clinics[i] = list
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.WithError(err).WithField("candidates", len(candidates)).Error("Candidate enrichment failed")
		return nil, err
	}

	for i, c := range candidates {
		c.AllSymptoms = mergeSymptoms(symptoms[i], c.MatchedSymptoms)
		c.Clinics = dedupClinics(clinics[i])
		out[i] = c
	}
	return out, nil
}

// mergeSymptoms deduplicates the complete list and appends any matched name
// missing from it, so the matched set always stays a subset.
func mergeSymptoms(all, matched []string) []string {
	seen := make(map[string]struct{}, len(all))
	merged := make([]string, 0, len(all))
	for _, name := range all {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, name)
	}
	for _, name := range matched {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			merged = append(merged, name)
		}
	}
	return merged
}

func dedupClinics(list []domain.Clinic) []domain.Clinic {
	seen := make(map[int64]struct{}, len(list))
	out := make([]domain.Clinic, 0, len(list))
	for _, c := range list {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
