package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"credisense/internal/assessment"
	"credisense/internal/common/errors"
	"credisense/internal/common/logger"
	"credisense/internal/common/metrics"
	"credisense/internal/models"
	"credisense/internal/presentation"
)

// Snapshot is what a page render needs. Notifications are drained by the
// call that produced the snapshot.
type Snapshot struct {
	SessionID     string
	Phase         Phase
	Form          models.ApplicantRecord
	FreshForm     bool
	Response      *models.AssessmentResponse
	Display       *presentation.DisplayModel
	LastError     string
	Notifications []models.Notification
}

type Orchestrator struct {
	service   *assessment.Service
	store     Store
	notifier  Notifier
	logger    logger.Logger
	channel   string
	heartbeat time.Duration
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier adds external delivery next to the session flash.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithHeartbeat sets how often a running submission refreshes its in-flight
// flag. It must stay well below the store's flag TTL.
func WithHeartbeat(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.heartbeat = d
		}
	}
}

// WithChannel labels submission metrics; defaults to metrics.ChannelWeb.
func WithChannel(channel string) Option {
	return func(o *Orchestrator) { o.channel = channel }
}

func New(service *assessment.Service, store Store, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		service:   service,
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		channel:   metrics.ChannelWeb,
		heartbeat: DefaultInFlightTTL / 3,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit runs one assessment for the session.
//
// An invalid record returns an APPLICANT_VALIDATION_FAILED error and leaves
// the session Idle without any network call. A submission while another is in
// flight returns SUBMISSION_IN_PROGRESS; one from Result returns
// INVALID_STATE_TRANSITION. Once started, the call runs detached from ctx
// cancellation and always leaves Submitting: to Result on success, through
// Failed back to Idle otherwise. The returned error is the prediction error
// in the latter case.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, record models.ApplicantRecord) (*State, error) {
	metrics.AssessmentsSubmitted.WithLabelValues(o.channel).Inc()

	st, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch st.Phase {
	case PhaseSubmitting:
		if o.now().Sub(st.UpdatedAt) <= DefaultInFlightTTL {
			o.outcome("rejected")
			return st, errors.NewSubmissionInProgressError(sessionID)
		}
		o.logger.Warn("recovering stale submission", map[string]interface{}{
			"sessionId": sessionID,
			"updatedAt": st.UpdatedAt,
		})
		st.Phase = PhaseIdle
	case PhaseResult:
		o.outcome("rejected")
		return st, errors.NewInvalidTransitionError(string(st.Phase), "submit")
	}

	if result := o.service.Validate(record); result != nil {
		o.outcome("invalid")
		return st, errors.NewApplicantValidationError(result.ByField())
	}

	token, acquired, err := o.store.Acquire(ctx, sessionID)
	if err != nil {
		return st, errors.NewSessionStoreError("acquire", err)
	}
	if !acquired {
		o.outcome("rejected")
		return st, errors.NewSubmissionInProgressError(sessionID)
	}

	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := o.store.Release(bg, sessionID, token); err != nil {
			o.logger.Error("failed to release submission flag", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
		}
	}()

	// A submission that finished between load and Acquire left a Result.
	if st, err = o.load(bg, sessionID); err != nil {
		return nil, err
	}
	if st.Phase == PhaseResult {
		o.outcome("rejected")
		return st, errors.NewInvalidTransitionError(string(st.Phase), "submit")
	}

	metrics.SubmissionsInFlight.Inc()
	defer metrics.SubmissionsInFlight.Dec()

	draft := record
	st.Phase = PhaseSubmitting
	st.Draft = &draft
	st.LastError = ""
	if err := o.store.Save(bg, st); err != nil {
		return st, errors.NewSessionStoreError("save", err)
	}

	o.logger.Info("submission started", map[string]interface{}{"sessionId": sessionID})

	stop := o.keepAlive(bg, sessionID, token)
	outcome, assessErr := o.service.Assess(bg, record)
	stop()

	if assessErr != nil {
		o.fail(bg, st, assessErr)
	} else {
		o.succeed(bg, st, outcome)
	}

	if err := o.store.Save(bg, st); err != nil {
		o.logger.Error("failed to save session state", map[string]interface{}{
			"sessionId": sessionID,
			"phase":     st.Phase,
			"error":     err.Error(),
		})
		if assessErr == nil {
			return st, errors.NewSessionStoreError("save", err)
		}
	}
	return st, assessErr
}

func (o *Orchestrator) succeed(ctx context.Context, st *State, outcome *assessment.Outcome) {
	resp := outcome.Response
	st.Phase = PhaseResult
	st.Response = &resp
	st.LastError = ""

	title, description, severity := presentation.NotificationFor(resp)
	o.notify(ctx, st, title, description, severity)
	o.outcome("result")

	o.logger.Info("submission completed", map[string]interface{}{
		"sessionId":      st.SessionID,
		"classification": outcome.Display.Classification,
		"riskTier":       resp.RiskTier,
	})
}

func (o *Orchestrator) fail(ctx context.Context, st *State, err error) {
	st.Phase = PhaseFailed
	o.logger.Warn("submission failed", map[string]interface{}{
		"sessionId": st.SessionID,
		"code":      errors.CodeOf(err),
		"error":     err.Error(),
	})

	message := errors.UserMessage(err)
	o.notify(ctx, st, "Assessment Failed", message, models.SeverityDestructive)
	o.outcome("failed")

	// The user re-enters the form after a failure.
	st.Phase = PhaseIdle
	st.Draft = nil
	st.Response = nil
	st.LastError = message
}

// keepAlive refreshes the in-flight flag until stop is called.
func (o *Orchestrator) keepAlive(ctx context.Context, sessionID, token string) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(o.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				held, err := o.store.Refresh(ctx, sessionID, token)
				if err != nil {
					o.logger.Warn("failed to refresh submission flag", map[string]interface{}{
						"sessionId": sessionID,
						"error":     err.Error(),
					})
					continue
				}
				if !held {
					o.logger.Error("submission flag lost", map[string]interface{}{"sessionId": sessionID})
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (o *Orchestrator) notify(ctx context.Context, st *State, title, description, severity string) {
	note := models.Notification{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Severity:    severity,
		CreatedAt:   o.now().UTC(),
	}
	st.Notifications = append(st.Notifications, note)

	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, st.SessionID, note); err != nil {
		o.logger.Warn("notification delivery failed", map[string]interface{}{
			"sessionId": st.SessionID,
			"error":     err.Error(),
		})
	}
}

func (o *Orchestrator) outcome(name string) {
	metrics.AssessmentOutcomes.WithLabelValues(o.channel, name).Inc()
}

// NewAssessment discards the result and returns the session to an empty
// form. It is rejected while a submission is in flight.
func (o *Orchestrator) NewAssessment(ctx context.Context, sessionID string) (*State, error) {
	st, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.Phase == PhaseSubmitting {
		return st, errors.NewSubmissionInProgressError(sessionID)
	}

	st.reset()
	if err := o.store.Save(ctx, st); err != nil {
		return st, errors.NewSessionStoreError("save", err)
	}
	return st, nil
}

// View loads the session for rendering and drains its pending notifications.
func (o *Orchestrator) View(ctx context.Context, sessionID string) (*Snapshot, error) {
	st, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		SessionID:     st.SessionID,
		Phase:         st.Phase,
		Form:          st.Form(),
		FreshForm:     st.Draft == nil,
		Response:      st.Response,
		LastError:     st.LastError,
		Notifications: st.Notifications,
	}
	if st.Phase == PhaseResult && st.Response != nil {
		display := presentation.Present(*st.Response)
		snap.Display = &display
	}

	if len(st.Notifications) > 0 {
		st.Notifications = nil
		if err := o.store.Save(ctx, st); err != nil {
			return snap, errors.NewSessionStoreError("save", err)
		}
	}
	return snap, nil
}

func (o *Orchestrator) load(ctx context.Context, sessionID string) (*State, error) {
	st, err := o.store.Load(ctx, sessionID)
	if err != nil {
		o.logger.Error("failed to load session state", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return nil, errors.NewSessionStoreError("load", err)
	}
	return st, nil
}
