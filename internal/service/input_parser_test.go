package service

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ontani-server/internal/domain"
)

func TestParseSymptomIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int64
		wantErr bool
	}{
		{name: "Numbers", input: `[3, 7, 12]`, want: []int64{3, 7, 12}},
		{name: "Numeric strings", input: `["3", " 7 ", "12"]`, want: []int64{3, 7, 12}},
		{name: "Mixed", input: `[1, "2"]`, want: []int64{1, 2}},
		{name: "Integral float", input: `[4.0, 5e0]`, want: []int64{4, 5}},
		{name: "Duplicates dropped", input: `[2, "2", 1, 2]`, want: []int64{2, 1}},
		{name: "Missing", input: ``, wantErr: true},
		{name: "Null", input: `null`, wantErr: true},
		{name: "Empty array", input: `[]`, wantErr: true},
		{name: "Not an array", input: `"1,2"`, wantErr: true},
		{name: "Object", input: `{"id": 1}`, wantErr: true},
		{name: "Non-numeric string", input: `["ateş"]`, wantErr: true},
		{name: "Empty string", input: `[""]`, wantErr: true},
		{name: "Boolean", input: `[true]`, wantErr: true},
		{name: "Null element", input: `[1, null]`, wantErr: true},
		{name: "Fraction", input: `[1.5]`, wantErr: true},
		{name: "Zero", input: `[0]`, wantErr: true},
		{name: "Negative", input: `["-4"]`, wantErr: true},
		{name: "Truncated JSON", input: `[1, 2`, wantErr: true},
		{name: "Largest int64", input: `["9223372036854775807"]`, want: []int64{9223372036854775807}},
		{name: "Overflow string", input: `["9223372036854775808"]`, wantErr: true},
		{name: "Overflow number", input: `[9223372036854775808]`, wantErr: true},
		{name: "Overflow exponent", input: `[9.223372036854775807e18]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSymptomIDs(json.RawMessage(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSymptomIDs() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("ParseSymptomIDs() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSymptomIDs_ReportsElementIndex(t *testing.T) {
	_, err := ParseSymptomIDs(json.RawMessage(`[1, "x"]`))

	var ve *domain.ValidationError
	if assert.True(t, errors.As(err, &ve)) {
		assert.Equal(t, "belirtiler[1]", ve.Field)
	}
}

func TestValidateSymptomIDs(t *testing.T) {
	got, err := ValidateSymptomIDs([]int64{5, 5, 6})
	assert.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, got)

	_, err = ValidateSymptomIDs(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ValidateSymptomIDs([]int64{3, -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func symptomArray(n int) json.RawMessage {
	items := make([]string, n)
	for i := range items {
		items[i] = strconv.Itoa(i + 1)
	}
	return json.RawMessage("[" + strings.Join(items, ",") + "]")
}

func TestParseSymptomIDs_Limit(t *testing.T) {
	got, err := ParseSymptomIDs(symptomArray(domain.MaxSymptomIDs))
	assert.NoError(t, err)
	assert.Len(t, got, domain.MaxSymptomIDs)

	_, err = ParseSymptomIDs(symptomArray(domain.MaxSymptomIDs + 1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// duplicates do not count towards the limit
	dup := strings.TrimSuffix(string(symptomArray(domain.MaxSymptomIDs)), "]") + ",1,2,3]"
	got, err = ParseSymptomIDs(json.RawMessage(dup))
	assert.NoError(t, err)
	assert.Len(t, got, domain.MaxSymptomIDs)
}

func TestValidateSymptomIDs_Limit(t *testing.T) {
	ids := make([]int64, domain.MaxSymptomIDs+1)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	_, err := ValidateSymptomIDs(ids[:domain.MaxSymptomIDs])
	assert.NoError(t, err)

	_, err = ValidateSymptomIDs(ids)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
