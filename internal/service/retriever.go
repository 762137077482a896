package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
)

// Retriever turns a symptom id set into the flat row stream of every
// diagnosis linked to at least one of the symptoms.
type Retriever struct {
	store  domain.MatchStore
	logger *logrus.Logger
}

// NewRetriever creates a candidate retriever over store.
func NewRetriever(store domain.MatchStore, logger *logrus.Logger) *Retriever {
	return &Retriever{store: store, logger: logger}
}

// Retrieve issues the single candidate query. Validation happens before the
// store is touched; a store failure is returned as *domain.StoreError, never
// as an empty result.
func (r *Retriever) Retrieve(ctx context.Context, symptomIDs []int64) ([]domain.MatchRow, error) {
	ids, err := ValidateSymptomIDs(symptomIDs)
	if err != nil {
		return nil, err
	}

	r.logger.WithField("symptom_ids", ids).Debug("Retrieving candidate rows")

	rows, err := r.store.FindCandidateRows(ctx, ids)
	if err != nil {
		return nil, domain.NewStoreError("find candidate rows", err)
	}
	return rows, nil
}
