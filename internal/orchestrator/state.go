// Package orchestrator drives the per-session assessment lifecycle:
// Idle, Submitting, then Result or Failed (which falls back to Idle).
package orchestrator

import (
	"time"

	"credisense/internal/models"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseResult     Phase = "result"
	// PhaseFailed is transient; a failed submission is stored as Idle.
	PhaseFailed Phase = "failed"
)

// State is the view state of one browser session.
type State struct {
	SessionID string `json:"sessionId"`
	Phase     Phase  `json:"phase"`

	// Draft holds the values of the submission in flight. It is cleared when
	// the submission fails. Nil means a fresh form.
	Draft *models.ApplicantRecord `json:"draft,omitempty"`

	// Response is non-nil only in PhaseResult.
	Response *models.AssessmentResponse `json:"response,omitempty"`

	LastError     string                `json:"lastError,omitempty"`
	Notifications []models.Notification `json:"notifications,omitempty"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// NewState is the Idle state of a fresh session.
func NewState(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		Phase:     PhaseIdle,
		UpdatedAt: time.Now().UTC(),
	}
}

// Form is the record the form should render.
func (s *State) Form() models.ApplicantRecord {
	if s.Draft != nil {
		return *s.Draft
	}
	return models.DefaultApplicant()
}

func (s *State) reset() {
	s.Phase = PhaseIdle
	s.Draft = nil
	s.Response = nil
	s.LastError = ""
}
