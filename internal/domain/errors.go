package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors classifying every failure the prediction path can produce.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoMatch      = errors.New("no matching diagnosis")
	ErrNotFound     = errors.New("not found")
	ErrStore        = errors.New("store error")
)

// Error codes returned to clients
const (
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeNoMatch        = "NO_MATCH"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeStore          = "STORE_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout        = "REQUEST_TIMEOUT"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// APIError is the JSON error body returned to clients.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents a rejected request field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Is reports ValidationError as ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// StoreError wraps an infrastructure failure of the relational store:
// unreachable server, query failure, pool exhaustion or an open breaker.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store: %s failed", e.Op)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports StoreError as ErrStore.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// NewStoreError wraps err as a StoreError for operation op. A nil err yields nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
