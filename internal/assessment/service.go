// Package assessment runs the validate, encode, predict and present pipeline
// shared by the console, the JSON API and the BPMN worker.
package assessment

import (
	"context"

	"credisense/internal/applicant"
	"credisense/internal/common/errors"
	"credisense/internal/common/logger"
	"credisense/internal/common/metrics"
	"credisense/internal/common/predictor"
	"credisense/internal/common/validation"
	"credisense/internal/models"
	"credisense/internal/presentation"
)

// Outcome is a successful assessment together with its display model.
type Outcome struct {
	Request  models.EncodedRequest     `json:"request"`
	Response models.AssessmentResponse `json:"response"`
	Display  presentation.DisplayModel `json:"display"`
}

type Service struct {
	validator *applicant.Validator
	predictor predictor.Predictor
	logger    logger.Logger
}

func NewService(v *applicant.Validator, p predictor.Predictor, log logger.Logger) *Service {
	if v == nil {
		v = applicant.NewValidator()
	}
	return &Service{
		validator: v,
		predictor: p,
		logger:    log.WithFields(map[string]interface{}{"component": "assessment"}),
	}
}

// Validator exposes the constraint table for per-field checks.
func (s *Service) Validator() *applicant.Validator {
	return s.validator
}

// Validate returns nil when the record is submittable.
func (s *Service) Validate(record models.ApplicantRecord) *validation.ValidationResult {
	result := s.validator.Validate(record)
	if result.Valid {
		return nil
	}
	return result
}

// Assess validates the record and, only when it is valid, scores it. A
// validation failure is returned as an APPLICANT_VALIDATION_FAILED error
// carrying the first message per field.
func (s *Service) Assess(ctx context.Context, record models.ApplicantRecord) (*Outcome, error) {
	if result := s.Validate(record); result != nil {
		return nil, errors.NewApplicantValidationError(result.ByField())
	}

	req := applicant.Encode(record)
	resp, err := s.predictor.Predict(ctx, req)
	if err != nil {
		s.logger.Warn("assessment failed", map[string]interface{}{
			"code":  errors.CodeOf(err),
			"error": err.Error(),
		})
		return nil, err
	}

	display := presentation.Present(*resp)
	metrics.RiskClassifications.WithLabelValues(string(display.Classification)).Inc()

	s.logger.Debug("assessment presented", map[string]interface{}{
		"classification": display.Classification,
		"serverTier":     resp.RiskTier,
		"models":         len(display.ModelCards),
	})

	return &Outcome{Request: req, Response: *resp, Display: display}, nil
}
