package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/metrics"
)

// Predictor runs the matching pipeline: retrieve, aggregate and rank,
// enrich, assemble. It holds no per-request state and is safe for
// concurrent use.
type Predictor struct {
	retriever *Retriever
	enricher  *Enricher
	logger    *logrus.Logger
}

// NewPredictor wires the pipeline over one store handle.
func NewPredictor(store domain.MatchStore, cfg domain.MatchingConfig, logger *logrus.Logger) *Predictor {
	return &Predictor{
		retriever: NewRetriever(store, logger),
		enricher:  NewEnricher(store, cfg.EnrichConcurrency, logger),
		logger:    logger,
	}
}

// PredictRaw validates the raw "belirtiler" JSON value and predicts. A
// malformed value never reaches the store.
func (p *Predictor) PredictRaw(ctx context.Context, raw json.RawMessage) ([]domain.Prediction, error) {
	start := time.Now()
	ids, err := ParseSymptomIDs(raw)
	if err != nil {
		metrics.RecordPrediction(metrics.OutcomeValidation, time.Since(start), 0)
		return nil, err
	}
	return p.predict(ctx, start, ids)
}

// Predict returns 1 to 5 ranked, enriched diagnoses for the symptom ids.
// Errors match domain.ErrInvalidInput, domain.ErrNoMatch or domain.ErrStore.
func (p *Predictor) Predict(ctx context.Context, symptomIDs []int64) ([]domain.Prediction, error) {
	return p.predict(ctx, time.Now(), symptomIDs)
}

func (p *Predictor) predict(ctx context.Context, start time.Time, symptomIDs []int64) ([]domain.Prediction, error) {
	predictions, err := p.run(ctx, symptomIDs)
	outcome := outcomeOf(err)
	metrics.RecordPrediction(outcome, time.Since(start), len(predictions))

	entry := p.logger.WithFields(logrus.Fields{
		"symptoms":    len(symptomIDs),
		"outcome":     outcome,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	switch outcome {
	case metrics.OutcomeSuccess:
		entry.WithField("returned", len(predictions)).Info("Prediction completed")
	case metrics.OutcomeStoreError:
		entry.WithError(err).Error("Prediction failed")
	default:
		entry.Info("Prediction rejected")
	}
	return predictions, err
}

func (p *Predictor) run(ctx context.Context, symptomIDs []int64) ([]domain.Prediction, error) {
	rows, err := p.retriever.Retrieve(ctx, symptomIDs)
	if err != nil {
		return nil, err
	}

	ranked, err := AggregateAndRank(rows)
	if err != nil {
		return nil, err
	}

	enriched, err := p.enricher.Enrich(ctx, ranked)
	if err != nil {
		return nil, fmt.Errorf("enriching candidates: %w", err)
	}

	return Assemble(enriched), nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrInvalidInput):
		return metrics.OutcomeValidation
	case errors.Is(err, domain.ErrNoMatch):
		return metrics.OutcomeNoMatch
	default:
		return metrics.OutcomeStoreError
	}
}
