package applicant

import (
	"bytes"
	"encoding/json"

	"credisense/internal/common/validation"
)

// jsonRequired lists the keys whose zero value is a valid answer, so a JSON
// body must carry them explicitly. Missing string fields already fail the
// constraint table.
var jsonRequired = []struct {
	field   string
	message string
}{
	{FieldDependentCount, "Expected number"},
	{FieldCurrentJobYrs, "Expected number"},
	{FieldIncome, "Expected number"},
	{FieldLoanAmount, "Expected number"},
	{FieldTotalMonthlyEMI, "Expected number"},
	{FieldCarOwnership, "Expected boolean"},
}

// CheckJSONFields reports absent or null keys of a decoded JSON object as
// REQUIRED_FIELD_MISSING, in table order.
func CheckJSONFields(body map[string]json.RawMessage) *validation.ValidationResult {
	result := &validation.ValidationResult{Valid: true}
	for _, req := range jsonRequired {
		raw, ok := body[req.field]
		if ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		result.Errors = append(result.Errors, validation.ValidationError{
			Field:   req.field,
			Message: req.message,
			Code:    validation.CodeRequired,
		})
	}
	result.Valid = len(result.Errors) == 0
	sortByTable(result)
	return result
}
