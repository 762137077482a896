package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ontani-server/internal/domain"
)

// PredictParams defines parameters for the predict_diagnoses tool. Ids may be
// numbers or numeric strings.
type PredictParams struct {
	Symptoms []any `json:"belirtiler" jsonschema:"symptom ids, numbers or numeric strings"`
}

// PredictResult is the structured output of predict_diagnoses.
type PredictResult struct {
	Predictions []domain.Prediction `json:"predictions"`
}

// ListSymptomsParams takes no arguments.
type ListSymptomsParams struct{}

// ListSymptomsResult is the structured output of list_symptoms.
type ListSymptomsResult struct {
	Symptoms []domain.Symptom `json:"symptoms"`
}

// LookupParams identifies one catalog entry.
type LookupParams struct {
	ID int64 `json:"id" jsonschema:"positive numeric id"`
}

// handlePredict handles the predict_diagnoses tool invocation
func (s *Server) handlePredict(ctx context.Context, req *mcp.CallToolRequest, params PredictParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "predict_diagnoses").Debug("Tool invoked")

	var raw json.RawMessage
	if params.Symptoms != nil {
		encoded, err := json.Marshal(params.Symptoms)
		if err != nil {
			return s.createErrorResult(domain.NewValidationError("belirtiler", "must be an array", nil)), nil, nil
		}
		raw = encoded
	}

	predictions, err := s.predictor.PredictRaw(ctx, raw)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}

	result := PredictResult{Predictions: predictions}
	return s.jsonResult(result), result, nil
}

// handleListSymptoms handles the list_symptoms tool invocation
func (s *Server) handleListSymptoms(ctx context.Context, req *mcp.CallToolRequest, _ ListSymptomsParams) (*mcp.CallToolResult, any, error) {
	symptoms, err := s.catalog.ListSymptoms(ctx)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	result := ListSymptomsResult{Symptoms: symptoms}
	return s.jsonResult(result), result, nil
}

// handleGetDiagnosis handles the get_diagnosis tool invocation
func (s *Server) handleGetDiagnosis(ctx context.Context, req *mcp.CallToolRequest, params LookupParams) (*mcp.CallToolResult, any, error) {
	detail, err := s.catalog.DiagnosisDetail(ctx, params.ID)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	return s.jsonResult(detail), detail, nil
}

// handleGetClinic handles the get_clinic tool invocation
func (s *Server) handleGetClinic(ctx context.Context, req *mcp.CallToolRequest, params LookupParams) (*mcp.CallToolResult, any, error) {
	detail, err := s.catalog.ClinicDetail(ctx, params.ID)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	return s.jsonResult(detail), detail, nil
}

func (s *Server) jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return s.createErrorResult(err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// createErrorResult creates a standardized error result for tool calls.
// Store failures are reported without driver detail.
func (s *Server) createErrorResult(err error) *mcp.CallToolResult {
	var (
		code    string
		message string
		ve      *domain.ValidationError
	)
	switch {
	case errors.As(err, &ve):
		code, message = domain.ErrCodeValidation, ve.Error()
	case errors.Is(err, domain.ErrNoMatch):
		code, message = domain.ErrCodeNoMatch, "no diagnosis matches the given symptoms"
	case errors.Is(err, domain.ErrNotFound):
		code, message = domain.ErrCodeNotFound, err.Error()
	case errors.Is(err, domain.ErrStore):
		code, message = domain.ErrCodeStore, "catalog store unavailable"
		s.logger.WithError(err).Error("Tool call failed")
	default:
		code, message = domain.ErrCodeInternalServer, "internal error"
		s.logger.WithError(err).Error("Tool call failed")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Error: %s - %s", code, message)},
		},
		IsError: true,
	}
}
