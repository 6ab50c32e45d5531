package applicant

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"credisense/internal/common/validation"
	"credisense/internal/models"
)

// FromForm decodes a form post. Values that cannot be parsed are reported as
// INVALID_TYPE and leave the field at its zero value; constraint checks are
// the Validator's job.
func FromForm(values url.Values) (models.ApplicantRecord, *validation.ValidationResult) {
	var r models.ApplicantRecord
	result := &validation.ValidationResult{Valid: true}

	fail := func(field, message string) {
		result.Errors = append(result.Errors, validation.ValidationError{
			Field:   field,
			Message: message,
			Code:    validation.CodeInvalidType,
		})
	}

	if raw := strings.TrimSpace(values.Get(FieldDateOfBirth)); raw != "" {
		t, err := models.ParseDate(raw)
		if err != nil {
			fail(FieldDateOfBirth, "Invalid date")
		} else {
			r.DateOfBirth = t
		}
	}

	r.Gender = strings.TrimSpace(values.Get(FieldGender))
	r.MaritalStatus = strings.TrimSpace(values.Get(FieldMaritalStatus))
	r.Nationality = strings.TrimSpace(values.Get(FieldNationality))
	r.Profession = strings.TrimSpace(values.Get(FieldProfession))
	r.PurposeOfLoan = strings.TrimSpace(values.Get(FieldPurposeOfLoan))
	r.HouseOwnership = strings.TrimSpace(values.Get(FieldHouseOwnership))
	r.Education = strings.TrimSpace(values.Get(FieldEducation))
	r.DeviceType = strings.TrimSpace(values.Get(FieldDeviceType))
	r.CarOwnership = parseCheckbox(values.Get(FieldCarOwnership))

	for field, dst := range map[string]*int{
		FieldDependentCount: &r.DependentCount,
		FieldCurrentJobYrs:  &r.CurrentJobYrs,
	} {
		n, msg := parseInt(values.Get(field))
		if msg != "" {
			fail(field, msg)
			continue
		}
		*dst = n
	}

	for field, dst := range map[string]*float64{
		FieldIncome:          &r.Income,
		FieldLoanAmount:      &r.LoanAmount,
		FieldTotalMonthlyEMI: &r.TotalMonthlyEMI,
	} {
		f, msg := parseAmount(values.Get(field))
		if msg != "" {
			fail(field, msg)
			continue
		}
		*dst = f
	}

	result.Valid = len(result.Errors) == 0
	sortByTable(result)
	return r, result
}

// ToForm renders a record back into form values.
func ToForm(r models.ApplicantRecord) url.Values {
	values := url.Values{}
	if !r.DateOfBirth.IsZero() {
		values.Set(FieldDateOfBirth, r.DateOfBirth.Format(models.DateLayout))
	}
	values.Set(FieldGender, r.Gender)
	values.Set(FieldMaritalStatus, r.MaritalStatus)
	values.Set(FieldDependentCount, strconv.Itoa(r.DependentCount))
	values.Set(FieldNationality, r.Nationality)
	values.Set(FieldProfession, r.Profession)
	values.Set(FieldCurrentJobYrs, strconv.Itoa(r.CurrentJobYrs))
	values.Set(FieldIncome, formatAmount(r.Income))
	values.Set(FieldLoanAmount, formatAmount(r.LoanAmount))
	values.Set(FieldPurposeOfLoan, r.PurposeOfLoan)
	values.Set(FieldTotalMonthlyEMI, formatAmount(r.TotalMonthlyEMI))
	values.Set(FieldHouseOwnership, r.HouseOwnership)
	if r.CarOwnership {
		values.Set(FieldCarOwnership, "true")
	}
	values.Set(FieldEducation, r.Education)
	values.Set(FieldDeviceType, r.DeviceType)
	return values
}

func parseCheckbox(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func parseInt(raw string) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "Expected number"
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if _, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			return 0, "Expected integer"
		}
		return 0, "Expected number"
	}
	return n, ""
}

// parseAmount accepts grouped currency input such as "5,00,000".
func parseAmount(raw string) (float64, string) {
	cleaned := strings.NewReplacer(",", "", " ", "", "₹", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, "Expected number"
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "Expected number"
	}
	return f, ""
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var fieldOrder = func() map[string]int {
	order := map[string]int{}
	for i, f := range NewValidator().schema.Fields() {
		order[f] = i
	}
	return order
}()

// sortByTable orders errors the way the constraint table lists fields.
func sortByTable(result *validation.ValidationResult) {
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return fieldOrder[result.Errors[i].Field] < fieldOrder[result.Errors[j].Field]
	})
}

// Decode combines FromForm with the Validator. Parse failures take precedence
// over constraint messages for the same field.
func Decode(v *Validator, values url.Values) (models.ApplicantRecord, *validation.ValidationResult) {
	r, result := FromForm(values)
	result.Merge(v.Validate(r))
	sortByTable(result)
	return r, result
}
