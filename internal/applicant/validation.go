// Package applicant validates, decodes and encodes applicant records.
package applicant

import (
	"time"

	"credisense/internal/common/validation"
	"credisense/internal/models"
)

// Field names as they appear on the wire and in form posts.
const (
	FieldDateOfBirth     = "date_of_birth"
	FieldGender          = "gender"
	FieldMaritalStatus   = "marital_status"
	FieldDependentCount  = "dependent_count"
	FieldNationality     = "nationality"
	FieldProfession      = "profession"
	FieldCurrentJobYrs   = "current_job_yrs"
	FieldIncome          = "income"
	FieldLoanAmount      = "loan_amount"
	FieldPurposeOfLoan   = "purpose_of_loan"
	FieldTotalMonthlyEMI = "total_monthly_emi"
	FieldHouseOwnership  = "house_ownership"
	FieldCarOwnership    = "car_ownership"
	FieldEducation       = "education"
	FieldDeviceType      = "device_type"
)

// EarliestBirthDate is the lower bound for date_of_birth.
var EarliestBirthDate = time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)

// Validator applies the applicant constraint table. Every rule is field-local.
type Validator struct {
	schema validation.Schema
	now    func() time.Time
}

func NewValidator() *Validator {
	return NewValidatorAt(time.Now)
}

// NewValidatorAt pins "today" for the date_of_birth upper bound.
func NewValidatorAt(now func() time.Time) *Validator {
	v := &Validator{now: now}
	v.schema = v.buildSchema()
	return v
}

func (v *Validator) buildSchema() validation.Schema {
	return validation.Schema{
		{Field: FieldDateOfBirth, Checks: []validation.Check{
			validation.Required("Date of birth is required."),
			validation.Between(EarliestBirthDate, v.now, "Date of birth must be between 1940-01-01 and today."),
		}},
		{Field: FieldGender, Checks: []validation.Check{
			validation.Required("Please select a gender."),
			validation.OneOf("Please select a gender.", models.Genders...),
		}},
		{Field: FieldMaritalStatus, Checks: []validation.Check{
			validation.Required("Please select marital status."),
			validation.OneOf("Please select marital status.", models.MaritalStatuses...),
		}},
		{Field: FieldDependentCount, Checks: []validation.Check{
			validation.Minimum(0, "Cannot be negative"),
			validation.Maximum(10, "Maximum 10 dependents"),
		}},
		{Field: FieldNationality, Checks: []validation.Check{
			validation.MinLength(1, "Nationality is required"),
		}},
		{Field: FieldProfession, Checks: []validation.Check{
			validation.Required("Please select a profession."),
			validation.OneOf("Please select a profession.", models.Professions...),
		}},
		{Field: FieldCurrentJobYrs, Checks: []validation.Check{
			validation.Minimum(0, "Cannot be negative"),
			validation.Maximum(50, "Maximum 50 years"),
		}},
		{Field: FieldIncome, Checks: []validation.Check{
			validation.ExclusiveMinimum(0, "Income must be greater than 0"),
		}},
		{Field: FieldLoanAmount, Checks: []validation.Check{
			validation.ExclusiveMinimum(0, "Loan amount must be greater than 0"),
		}},
		{Field: FieldPurposeOfLoan, Checks: []validation.Check{
			validation.MinLength(1, "Purpose of loan is required"),
		}},
		{Field: FieldTotalMonthlyEMI, Checks: []validation.Check{
			validation.Minimum(0, "Cannot be negative"),
		}},
		{Field: FieldHouseOwnership, Checks: []validation.Check{
			validation.Required("Please select house ownership."),
			validation.OneOf("Please select house ownership.", models.HouseOwnerships...),
		}},
		{Field: FieldEducation, Checks: []validation.Check{
			validation.MinLength(1, "Education is required"),
		}},
		{Field: FieldDeviceType, Checks: []validation.Check{
			validation.Required("Please select device type."),
			validation.OneOf("Please select device type.", models.DeviceTypes...),
		}},
	}
}

// ValidateField returns the first violation for one field, or nil.
func (v *Validator) ValidateField(field string, r models.ApplicantRecord) *validation.ValidationError {
	return v.schema.ValidateField(field, FieldValue(r, field))
}

// Validate returns every field violation in table order.
func (v *Validator) Validate(r models.ApplicantRecord) *validation.ValidationResult {
	return v.schema.Validate(func(field string) interface{} {
		return FieldValue(r, field)
	})
}

// FieldValue exposes a record field by its wire name.
func FieldValue(r models.ApplicantRecord, field string) interface{} {
	switch field {
	case FieldDateOfBirth:
		return r.DateOfBirth
	case FieldGender:
		return r.Gender
	case FieldMaritalStatus:
		return r.MaritalStatus
	case FieldDependentCount:
		return r.DependentCount
	case FieldNationality:
		return r.Nationality
	case FieldProfession:
		return r.Profession
	case FieldCurrentJobYrs:
		return r.CurrentJobYrs
	case FieldIncome:
		return r.Income
	case FieldLoanAmount:
		return r.LoanAmount
	case FieldPurposeOfLoan:
		return r.PurposeOfLoan
	case FieldTotalMonthlyEMI:
		return r.TotalMonthlyEMI
	case FieldHouseOwnership:
		return r.HouseOwnership
	case FieldCarOwnership:
		return r.CarOwnership
	case FieldEducation:
		return r.Education
	case FieldDeviceType:
		return r.DeviceType
	}
	return nil
}
