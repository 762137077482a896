package service

import "github.com/ontani-server/internal/domain"

// Assemble maps enriched candidates to the wire payload. Every slice is
// non-nil so that empty lists encode as [] rather than null.
func Assemble(candidates []domain.Candidate) []domain.Prediction {
	predictions := make([]domain.Prediction, 0, len(candidates))
	for _, c := range candidates {
		predictions = append(predictions, domain.Prediction{
			ID:          c.DiagnosisID,
			Name:        c.Name,
			Description: c.Description,
			Matched:     nonNilStrings(c.MatchedSymptoms),
			AllSymptoms: nonNilStrings(c.AllSymptoms),
			Clinics:     nonNilClinics(c.Clinics),
		})
	}
	return predictions
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilClinics(c []domain.Clinic) []domain.Clinic {
	if c == nil {
		return []domain.Clinic{}
	}
	return c
}
