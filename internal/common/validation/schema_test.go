package validation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		{Field: "gender", Checks: []Check{
			Required("Please select a gender."),
			OneOf("Please select a gender.", "Male", "Female"),
		}},
		{Field: "dependent_count", Checks: []Check{
			Minimum(0, "Cannot be negative"),
			Maximum(10, "Maximum 10 dependents"),
		}},
		{Field: "income", Checks: []Check{
			ExclusiveMinimum(0, "Income must be greater than 0"),
		}},
		{Field: "nationality", Checks: []Check{
			MinLength(1, "Nationality is required"),
		}},
	}
}

func TestSchema_ValidateField(t *testing.T) {
	s := testSchema()

	tests := []struct {
		name     string
		field    string
		value    interface{}
		wantCode string
		wantMsg  string
	}{
		{"valid enum", "gender", "Female", "", ""},
		{"missing enum", "gender", nil, CodeRequired, "Please select a gender."},
		{"blank enum", "gender", "  ", CodeRequired, "Please select a gender."},
		{"unknown enum", "gender", "Other", CodeInvalidEnum, "Please select a gender."},
		{"negative", "dependent_count", -1, CodeMinimum, "Cannot be negative"},
		{"too many", "dependent_count", 11, CodeMaximum, "Maximum 10 dependents"},
		{"upper bound inclusive", "dependent_count", 10, "", ""},
		{"zero income", "income", 0.0, CodeExclusiveMinimum, "Income must be greater than 0"},
		{"NaN income", "income", math.NaN(), CodeExclusiveMinimum, "Income must be greater than 0"},
		{"infinite income", "income", math.Inf(1), CodeExclusiveMinimum, "Income must be greater than 0"},
		{"negative infinite dependents", "dependent_count", math.Inf(-1), CodeMinimum, "Cannot be negative"},
		{"positive income", "income", 0.01, "", ""},
		{"wrong type", "income", "100", CodeExclusiveMinimum, "Income must be greater than 0"},
		{"empty string", "nationality", "", CodeMinLength, "Nationality is required"},
		{"unknown field passes", "unknown", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateField(tt.field, tt.value)
			if tt.wantCode == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.field, err.Field)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantMsg, err.Message)
		})
	}
}

func TestSchema_ValidateInTableOrder(t *testing.T) {
	values := map[string]interface{}{
		"gender":          "",
		"dependent_count": 3,
		"income":          -5.0,
		"nationality":     "Indian",
	}

	result := testSchema().Validate(func(field string) interface{} { return values[field] })

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "gender", result.Errors[0].Field)
	assert.Equal(t, "income", result.Errors[1].Field)
	assert.True(t, result.HasErrors("income"))
	assert.False(t, result.HasErrors("nationality"))
	assert.Equal(t, []string{
		"gender: Please select a gender.",
		"income: Income must be greater than 0",
	}, result.GetErrorMessages())
}

func TestBetween_ComparesCalendarDays(t *testing.T) {
	from := time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	check := Between(from, func() time.Time { return today }, "out of range")

	ist := time.FixedZone("IST", 5*3600+1800)

	assert.True(t, check.Valid(from))
	assert.True(t, check.Valid(time.Date(2024, 6, 1, 23, 59, 0, 0, ist)))
	assert.True(t, check.Valid(time.Date(1990, 5, 14, 0, 0, 0, 0, ist)))
	assert.False(t, check.Valid(time.Date(1939, 12, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, check.Valid(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)))
	assert.False(t, check.Valid("1990-05-14"))
}

func TestValidationResult_MergeAndByField(t *testing.T) {
	result := &ValidationResult{Valid: true}
	result.Merge(&ValidationResult{Errors: []ValidationError{
		{Field: "income", Message: "Expected number", Code: CodeInvalidType},
	}})
	result.Merge(&ValidationResult{Errors: []ValidationError{
		{Field: "income", Message: "Income must be greater than 0", Code: CodeExclusiveMinimum},
		{Field: "gender", Message: "Please select a gender.", Code: CodeRequired},
	}})
	result.Merge(nil)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, map[string]string{
		"income": "Expected number",
		"gender": "Please select a gender.",
	}, result.ByField())
}
