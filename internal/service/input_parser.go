package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ontani-server/internal/domain"
)

const symptomsField = "belirtiler"

// ParseSymptomIDs decodes the raw "belirtiler" value of a prediction request.
// The value must be a non-empty JSON array whose elements are positive
// integers or strings holding one. Duplicates are dropped, first occurrence
// order is kept.
func ParseSymptomIDs(raw json.RawMessage) ([]int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.NewValidationError(symptomsField, "is required", nil)
	}
	if trimmed[0] != '[' {
		return nil, domain.NewValidationError(symptomsField, "must be an array", string(trimmed))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, domain.NewValidationError(symptomsField, "must be an array", string(trimmed))
	}
	if len(items) == 0 {
		return nil, domain.NewValidationError(symptomsField, "must not be empty", items)
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for i, item := range items {
		id, err := coerceSymptomID(item)
		if err != nil {
			return nil, domain.NewValidationError(
				fmt.Sprintf("%s[%d]", symptomsField, i), err.Error(), item)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if len(ids) == domain.MaxSymptomIDs {
			return nil, tooManySymptoms()
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ValidateSymptomIDs applies the same rules to already typed ids.
func ValidateSymptomIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError(symptomsField, "must not be empty", ids)
	}
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for i, id := range ids {
		if id <= 0 {
			return nil, domain.NewValidationError(
				fmt.Sprintf("%s[%d]", symptomsField, i), "must be a positive integer", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if len(out) == domain.MaxSymptomIDs {
			return nil, tooManySymptoms()
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func tooManySymptoms() error {
	return domain.NewValidationError(symptomsField,
		fmt.Sprintf("must not hold more than %d distinct ids", domain.MaxSymptomIDs), nil)
}

func coerceSymptomID(v interface{}) (int64, error) {
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return 0, fmt.Errorf("must be a number or numeric string")
	}

	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("must be a positive integer")
		}
		return id, nil
	}

	// 3.0 and "3e0" are accepted, 3.5 is not
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be a number or numeric string")
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f != math.Trunc(f) || f <= 0 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return int64(f), nil
}
