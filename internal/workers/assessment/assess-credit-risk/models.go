package assesscreditrisk

import (
	"time"

	"credisense/internal/models"
)

type Input struct {
	Applicant     *models.ApplicantRecord `json:"applicant"`
	ApplicationID string                  `json:"applicationId,omitempty"`
}

type Output struct {
	Assessment Summary `json:"assessment"`
}

// Summary is the slice of an assessment a process needs for routing.
type Summary struct {
	ApplicationID      string    `json:"applicationId,omitempty"`
	DefaultProbability float64   `json:"defaultProbability"`
	ProbabilityText    string    `json:"probabilityText"`
	RiskTier           string    `json:"riskTier"`
	Classification     string    `json:"classification"`
	ConfidenceScore    float64   `json:"confidenceScore"`
	ExplanationCard    string    `json:"explanationCard"`
	TopRiskFactors     []string  `json:"topRiskFactors"`
	AssessedAt         time.Time `json:"assessedAt"`
}
