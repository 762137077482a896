package service

import (
	"sort"

	"github.com/ontani-server/internal/domain"
)

// accumulator collects one diagnosis while rows are grouped.
type accumulator struct {
	candidate domain.Candidate
	symptoms  map[string]struct{}
	clinics   map[int64]struct{}
}

// Aggregate groups rows by diagnosis id in first-seen order, deduplicating
// matched symptom names and clinics by clinic id. Rows without a clinic
// (diagnosis with no clinic link) contribute no clinic entry.
func Aggregate(rows []domain.MatchRow) []domain.Candidate {
	index := make(map[int64]*accumulator)
	order := make([]int64, 0)

	for _, row := range rows {
		acc, ok := index[row.DiagnosisID]
		if !ok {
			acc = &accumulator{
				candidate: domain.Candidate{
					DiagnosisID:     row.DiagnosisID,
					Name:            row.DiagnosisName,
					Description:     row.DiagnosisDescription,
					MatchedSymptoms: []string{},
					Clinics:         []domain.Clinic{},
				},
				symptoms: make(map[string]struct{}),
				clinics:  make(map[int64]struct{}),
			}
			index[row.DiagnosisID] = acc
			order = append(order, row.DiagnosisID)
		}

		if _, seen := acc.symptoms[row.MatchedSymptomName]; !seen {
			acc.symptoms[row.MatchedSymptomName] = struct{}{}
			acc.candidate.MatchedSymptoms = append(acc.candidate.MatchedSymptoms, row.MatchedSymptomName)
		}

		if row.ClinicID != nil {
			if _, seen := acc.clinics[*row.ClinicID]; !seen {
				acc.clinics[*row.ClinicID] = struct{}{}
				name := ""
				if row.ClinicName != nil {
					name = *row.ClinicName
				}
				acc.candidate.Clinics = append(acc.candidate.Clinics, domain.Clinic{ID: *row.ClinicID, Name: name})
			}
		}
	}

	candidates := make([]domain.Candidate, 0, len(order))
	for _, id := range order {
		candidates = append(candidates, index[id].candidate)
	}
	return candidates
}

// Rank orders candidates by distinct matched symptom count descending, ties
// by diagnosis id ascending, and keeps at most limit entries.
func Rank(candidates []domain.Candidate, limit int) []domain.Candidate {
	ranked := make([]domain.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := ranked[i].MatchCount(), ranked[j].MatchCount()
		if ci != cj {
			return ci > cj
		}
		return ranked[i].DiagnosisID < ranked[j].DiagnosisID
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// AggregateAndRank is the full grouping step of a prediction. An empty
// grouping yields domain.ErrNoMatch.
func AggregateAndRank(rows []domain.MatchRow) ([]domain.Candidate, error) {
	candidates := Aggregate(rows)
	if len(candidates) == 0 {
		return nil, domain.ErrNoMatch
	}
	return Rank(candidates, domain.MaxCandidates), nil
}
