package applicant

import "credisense/internal/models"

// Encode maps a record to the prediction service wire shape. The date is read
// in the instant's own location, never converted.
func Encode(r models.ApplicantRecord) models.EncodedRequest {
	car := 0
	if r.CarOwnership {
		car = 1
	}
	return models.EncodedRequest{
		DateOfBirth:     r.DateOfBirth.Format(models.DateLayout),
		Gender:          r.Gender,
		MaritalStatus:   r.MaritalStatus,
		DependentCount:  r.DependentCount,
		Nationality:     r.Nationality,
		Profession:      r.Profession,
		CurrentJobYrs:   r.CurrentJobYrs,
		Income:          r.Income,
		LoanAmount:      r.LoanAmount,
		PurposeOfLoan:   r.PurposeOfLoan,
		TotalMonthlyEMI: r.TotalMonthlyEMI,
		HouseOwnership:  r.HouseOwnership,
		CarOwnership:    car,
		Education:       r.Education,
		DeviceType:      r.DeviceType,
	}
}
