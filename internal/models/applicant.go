// internal/models/applicant.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire format of date_of_birth.
const DateLayout = "2006-01-02"

const (
	GenderMale   = "Male"
	GenderFemale = "Female"

	MaritalSingle   = "Single"
	MaritalMarried  = "Married"
	MaritalDivorced = "Divorced"

	ProfessionSalaried     = "Salaried"
	ProfessionBusiness     = "Business"
	ProfessionSelfEmployed = "Self-Employed"
	ProfessionStudent      = "Student"
	ProfessionUnemployed   = "Unemployed"

	HouseRented    = "Rented"
	HouseOwned     = "Owned"
	HouseMortgaged = "Mortgaged"

	DeviceAndroid = "Android"
	DeviceIOS     = "iOS"
	DeviceOther   = "Other"
)

var (
	Genders         = []string{GenderMale, GenderFemale}
	MaritalStatuses = []string{MaritalSingle, MaritalMarried, MaritalDivorced}
	Professions     = []string{ProfessionSalaried, ProfessionBusiness, ProfessionSelfEmployed, ProfessionStudent, ProfessionUnemployed}
	HouseOwnerships = []string{HouseRented, HouseOwned, HouseMortgaged}
	DeviceTypes     = []string{DeviceAndroid, DeviceIOS, DeviceOther}

	// Suggestions only; any non-empty value is accepted.
	LoanPurposes = []string{
		"Personal Loan", "Home Loan", "Car Loan", "Education Loan", "Business Loan",
		"Medical Emergency", "Wedding", "Travel", "Debt Consolidation",
	}
	EducationLevels = []string{"High School", "Graduate", "Post Graduate", "Professional"}
)

// ApplicantRecord is the applicant data collected by the form.
type ApplicantRecord struct {
	DateOfBirth     time.Time `json:"date_of_birth"`
	Gender          string    `json:"gender"`
	MaritalStatus   string    `json:"marital_status"`
	DependentCount  int       `json:"dependent_count"`
	Nationality     string    `json:"nationality"`
	Profession      string    `json:"profession"`
	CurrentJobYrs   int       `json:"current_job_yrs"`
	Income          float64   `json:"income"`
	LoanAmount      float64   `json:"loan_amount"`
	PurposeOfLoan   string    `json:"purpose_of_loan"`
	TotalMonthlyEMI float64   `json:"total_monthly_emi"`
	HouseOwnership  string    `json:"house_ownership"`
	CarOwnership    bool      `json:"car_ownership"`
	Education       string    `json:"education"`
	DeviceType      string    `json:"device_type"`
}

// DefaultApplicant is the state of a freshly rendered form.
func DefaultApplicant() ApplicantRecord {
	return ApplicantRecord{
		Nationality:   "Indian",
		PurposeOfLoan: "Personal Loan",
		Education:     "Graduate",
	}
}

type applicantAlias ApplicantRecord

type applicantJSON struct {
	DateOfBirth string `json:"date_of_birth"`
	*applicantAlias
}

// MarshalJSON writes date_of_birth as a calendar date.
func (r ApplicantRecord) MarshalJSON() ([]byte, error) {
	alias := applicantAlias(r)
	out := applicantJSON{applicantAlias: &alias}
	if !r.DateOfBirth.IsZero() {
		out.DateOfBirth = r.DateOfBirth.Format(DateLayout)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts date_of_birth as YYYY-MM-DD or RFC 3339. An RFC 3339
// instant keeps its own offset so the calendar date is not shifted.
func (r *ApplicantRecord) UnmarshalJSON(data []byte) error {
	in := applicantJSON{applicantAlias: (*applicantAlias)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.DateOfBirth == "" {
		r.DateOfBirth = time.Time{}
		return nil
	}
	t, err := ParseDate(in.DateOfBirth)
	if err != nil {
		return err
	}
	r.DateOfBirth = t
	return nil
}

// ParseDate parses YYYY-MM-DD (as UTC midnight) or an RFC 3339 instant.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// EncodedRequest is the body posted to the prediction service.
type EncodedRequest struct {
	DateOfBirth     string  `json:"date_of_birth"`
	Gender          string  `json:"gender"`
	MaritalStatus   string  `json:"marital_status"`
	DependentCount  int     `json:"dependent_count"`
	Nationality     string  `json:"nationality"`
	Profession      string  `json:"profession"`
	CurrentJobYrs   int     `json:"current_job_yrs"`
	Income          float64 `json:"income"`
	LoanAmount      float64 `json:"loan_amount"`
	PurposeOfLoan   string  `json:"purpose_of_loan"`
	TotalMonthlyEMI float64 `json:"total_monthly_emi"`
	HouseOwnership  string  `json:"house_ownership"`
	CarOwnership    int     `json:"car_ownership"`
	Education       string  `json:"education"`
	DeviceType      string  `json:"device_type"`
}
