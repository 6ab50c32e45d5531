package orchestrator

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credisense/internal/applicant"
	"credisense/internal/assessment"
	"credisense/internal/common/errors"
	httpclient "credisense/internal/common/http"
	"credisense/internal/common/logger"
	"credisense/internal/common/predictor"
	"credisense/internal/models"
)

type fakePredictor struct {
	mu      sync.Mutex
	calls   int
	resp    *models.AssessmentResponse
	err     error
	block   chan struct{}
	started chan struct{}
	ctxErr  error
}

func (f *fakePredictor) Predict(ctx context.Context, _ models.EncodedRequest) (*models.AssessmentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.ctxErr = ctx.Err()
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	return f.resp, f.err
}

func (f *fakePredictor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	notes []models.Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, _ string, n models.Notification) error {
	r.notes = append(r.notes, n)
	return r.err
}

func createTestRecord() models.ApplicantRecord {
	return models.ApplicantRecord{
		DateOfBirth:     time.Date(1990, 5, 14, 0, 0, 0, 0, time.UTC),
		Gender:          models.GenderMale,
		MaritalStatus:   models.MaritalSingle,
		DependentCount:  1,
		Nationality:     "Indian",
		Profession:      models.ProfessionBusiness,
		CurrentJobYrs:   4,
		Income:          1500000,
		LoanAmount:      300000,
		PurposeOfLoan:   "Business Loan",
		TotalMonthlyEMI: 5000,
		HouseOwnership:  models.HouseMortgaged,
		CarOwnership:    false,
		Education:       "Post Graduate",
		DeviceType:      models.DeviceOther,
	}
}

func lowRisk() *models.AssessmentResponse {
	return &models.AssessmentResponse{
		DefaultProbability: 0.15,
		RiskTier:           "Low Risk",
		ConfidenceScore:    0.9,
		ExplanationCard:    "Stable.",
	}
}

func newTestOrchestrator(t *testing.T, p predictor.Predictor, opts ...Option) (*Orchestrator, *MemoryStore) {
	t.Helper()
	log := logger.NewTestLogger(t)
	v := applicant.NewValidatorAt(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	store := NewMemoryStore(time.Hour)
	return New(assessment.NewService(v, p, log), store, log, opts...), store
}

func TestOrchestrator_Submit_Success(t *testing.T) {
	tests := []struct {
		name         string
		resp         *models.AssessmentResponse
		wantSeverity string
	}{
		{"low risk is default severity", lowRisk(), models.SeverityDefault},
		{"medium risk is destructive", &models.AssessmentResponse{DefaultProbability: 0.30, RiskTier: "Medium Risk"}, models.SeverityDestructive},
		{"high risk is destructive", &models.AssessmentResponse{DefaultProbability: 0.8, RiskTier: "High Risk"}, models.SeverityDestructive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			o, _ := newTestOrchestrator(t, &fakePredictor{resp: tt.resp}, WithNotifier(notifier))

			st, err := o.Submit(context.Background(), "s1", createTestRecord())

			require.NoError(t, err)
			assert.Equal(t, PhaseResult, st.Phase)
			require.NotNil(t, st.Response)
			assert.Equal(t, tt.resp.RiskTier, st.Response.RiskTier)

			require.Len(t, st.Notifications, 1)
			note := st.Notifications[0]
			assert.Equal(t, "Assessment Complete", note.Title)
			assert.Equal(t, "Risk Level: "+tt.resp.RiskTier, note.Description)
			assert.Equal(t, tt.wantSeverity, note.Severity)
			assert.NotEmpty(t, note.ID)

			require.Len(t, notifier.notes, 1)
			assert.Equal(t, note.ID, notifier.notes[0].ID)
		})
	}
}

func TestOrchestrator_Submit_ServerErrorReturnsToIdle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := predictor.NewClientWithHTTP(server.URL, "/predict", httpclient.NewClientFrom(server.Client()), logger.NewTestLogger(t), nil)
	o, store := newTestOrchestrator(t, client)

	st, err := o.Submit(context.Background(), "s1", createTestRecord())

	require.Error(t, err)
	assert.True(t, errors.IsServer(err))
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Nil(t, st.Response)
	assert.Equal(t, "HTTP error! status: 500", st.LastError)

	require.Len(t, st.Notifications, 1)
	assert.Equal(t, "Assessment Failed", st.Notifications[0].Title)
	assert.Equal(t, "HTTP error! status: 500", st.Notifications[0].Description)
	assert.True(t, st.Notifications[0].IsDestructive())

	stored, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, stored.Phase)
	assert.Nil(t, stored.Draft)

	view, err := o.View(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, view.FreshForm)
	assert.Equal(t, models.DefaultApplicant(), view.Form)
	assert.Equal(t, "HTTP error! status: 500", view.LastError)
}

func TestOrchestrator_Submit_EmptyErrorUsesDefaultMessage(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakePredictor{err: stderrors.New("")})

	st, err := o.Submit(context.Background(), "s1", createTestRecord())

	require.Error(t, err)
	require.Len(t, st.Notifications, 1)
	assert.Equal(t, errors.DefaultFailureMessage, st.Notifications[0].Description)
}

func TestOrchestrator_Submit_InvalidRecordStaysIdle(t *testing.T) {
	fake := &fakePredictor{resp: lowRisk()}
	o, store := newTestOrchestrator(t, fake)
	record := createTestRecord()
	record.Gender = ""

	st, err := o.Submit(context.Background(), "s1", record)

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, st.Notifications)
	assert.Equal(t, 0, fake.Calls())
	assert.Equal(t, 0, store.Len())
}

func TestOrchestrator_Submit_FromResultRejected(t *testing.T) {
	fake := &fakePredictor{resp: lowRisk()}
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	_, err := o.Submit(ctx, "s1", createTestRecord())
	require.NoError(t, err)

	st, err := o.Submit(ctx, "s1", createTestRecord())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidStateTransition, errors.CodeOf(err))
	assert.Equal(t, PhaseResult, st.Phase)
	assert.Equal(t, 1, fake.Calls())
}

func TestOrchestrator_Submit_WhileSubmittingRejected(t *testing.T) {
	fake := &fakePredictor{resp: lowRisk(), block: make(chan struct{}), started: make(chan struct{})}
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, "s1", createTestRecord())
		done <- err
	}()
	<-fake.started

	view, err := o.View(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseSubmitting, view.Phase)

	_, err = o.Submit(ctx, "s1", createTestRecord())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSubmissionInProgress, errors.CodeOf(err))

	_, err = o.NewAssessment(ctx, "s1")
	assert.Equal(t, errors.ErrCodeSubmissionInProgress, errors.CodeOf(err))

	close(fake.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fake.Calls())

	view, err = o.View(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseResult, view.Phase)
}

func TestOrchestrator_Submit_DetachedFromCancellation(t *testing.T) {
	fake := &fakePredictor{resp: lowRisk()}
	o, _ := newTestOrchestrator(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := o.Submit(ctx, "s1", createTestRecord())

	require.NoError(t, err)
	assert.NoError(t, fake.ctxErr)
	assert.Equal(t, PhaseResult, st.Phase)
}

func TestOrchestrator_Submit_NotifierFailureIgnored(t *testing.T) {
	notifier := &recordingNotifier{err: stderrors.New("sns down")}
	o, _ := newTestOrchestrator(t, &fakePredictor{resp: lowRisk()}, WithNotifier(notifier))

	st, err := o.Submit(context.Background(), "s1", createTestRecord())

	require.NoError(t, err)
	assert.Equal(t, PhaseResult, st.Phase)
	assert.Len(t, notifier.notes, 1)
}

func TestOrchestrator_Submit_RecoversStaleSubmitting(t *testing.T) {
	fake := &fakePredictor{resp: lowRisk()}
	o, store := newTestOrchestrator(t, fake)
	ctx := context.Background()

	stale := NewState("s1")
	stale.Phase = PhaseSubmitting
	require.NoError(t, store.Save(ctx, stale))
	store.now = func() time.Time { return time.Now().Add(-10 * time.Minute) }
	require.NoError(t, store.Save(ctx, stale))
	store.now = time.Now

	st, err := o.Submit(ctx, "s1", createTestRecord())

	require.NoError(t, err)
	assert.Equal(t, PhaseResult, st.Phase)
}

// resultOnAcquire completes a competing submission just before the flag is
// handed out.
type resultOnAcquire struct {
	*MemoryStore
}

func (r resultOnAcquire) Acquire(ctx context.Context, sessionID string) (string, bool, error) {
	done := NewState(sessionID)
	done.Phase = PhaseResult
	done.Response = lowRisk()
	if err := r.MemoryStore.Save(ctx, done); err != nil {
		return "", false, err
	}
	return r.MemoryStore.Acquire(ctx, sessionID)
}

func TestOrchestrator_Submit_RechecksPhaseAfterAcquire(t *testing.T) {
	fake := &fakePredictor{resp: &models.AssessmentResponse{DefaultProbability: 0.8, RiskTier: "High Risk"}}
	log := logger.NewTestLogger(t)
	v := applicant.NewValidatorAt(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	mem := NewMemoryStore(time.Hour)
	o := New(assessment.NewService(v, fake, log), resultOnAcquire{mem}, log)
	ctx := context.Background()

	st, err := o.Submit(ctx, "s1", createTestRecord())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidStateTransition, errors.CodeOf(err))
	assert.Equal(t, PhaseResult, st.Phase)
	assert.Equal(t, 0, fake.Calls())

	stored, err := mem.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Low Risk", stored.Response.RiskTier)

	_, ok, err := mem.Acquire(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok, "flag must be released after the rejection")
}

func TestOrchestrator_NewAssessment(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakePredictor{resp: lowRisk()})
	ctx := context.Background()

	_, err := o.Submit(ctx, "s1", createTestRecord())
	require.NoError(t, err)

	st, err := o.NewAssessment(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Nil(t, st.Response)

	view, err := o.View(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, view.Phase)
	assert.Nil(t, view.Display)
	assert.Equal(t, models.DefaultApplicant(), view.Form)
}

func TestOrchestrator_View_DrainsNotifications(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakePredictor{resp: lowRisk()})
	ctx := context.Background()

	_, err := o.Submit(ctx, "s1", createTestRecord())
	require.NoError(t, err)

	first, err := o.View(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, first.Notifications, 1)
	require.NotNil(t, first.Display)
	assert.Equal(t, "15.0%", first.Display.ProbabilityText)

	second, err := o.View(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, second.Notifications)
	assert.Equal(t, PhaseResult, second.Phase)
}

func TestOrchestrator_View_FreshSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakePredictor{})

	view, err := o.View(context.Background(), "new")

	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, view.Phase)
	assert.Equal(t, "Indian", view.Form.Nationality)
	assert.Nil(t, view.Response)
}
