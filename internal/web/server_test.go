package web

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credisense/internal/applicant"
	"credisense/internal/assessment"
	httpclient "credisense/internal/common/http"
	"credisense/internal/common/logger"
	"credisense/internal/common/predictor"
	"credisense/internal/models"
	"credisense/internal/orchestrator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const lowRiskBody = `{
	"default_probability": 0.15,
	"risk_tier": "Low Risk",
	"confidence_score": 0.92,
	"explanation_card": "Stable income relative to the requested amount.",
	"structured_explanation": {
		"meta_model": {"formula": "logit(p) = b0 + sum(w_i * p_i)", "intercept": -0.2, "coefficients": {"xgboost": 0.6, "lightgbm": -0.1}},
		"base_models": [{
			"model_name": "xgboost",
			"base_value": 0.2,
			"final_prediction": 0.14,
			"positive_contributors": [{"feature": "loan_amount", "value": 300000, "shap_value": 0.05}],
			"negative_contributors": [{"feature": "current_job_yrs", "value": 4, "shap_value": -0.08}]
		}]
	}
}`

type testEnv struct {
	server    *Server
	predictor *httptest.Server
	calls     *int32
}

func newTestEnv(t *testing.T, status int, body string) *testEnv {
	t.Helper()
	var calls int32
	ps := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ps.Close)

	log := logger.NewTestLogger(t)
	client := predictor.NewClientWithHTTP(ps.URL, "/predict", httpclient.NewClientFrom(ps.Client()), log, nil)
	svc := assessment.NewService(applicant.NewValidator(), client, log)
	orch := orchestrator.New(svc, orchestrator.NewMemoryStore(time.Hour), log)

	srv, err := NewServer(Options{
		Orchestrator: orch,
		Service:      svc,
		Logger:       log,
		Checks: map[string]ReadinessCheck{
			"predictor": func(context.Context) error { return nil },
		},
	})
	require.NoError(t, err)
	return &testEnv{server: srv, predictor: ps, calls: &calls}
}

func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(path string, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookie)
}

func (e *testEnv) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", DefaultCookieName)
	return nil
}

func validForm() url.Values {
	return applicant.ToForm(models.ApplicantRecord{
		DateOfBirth:     time.Date(1990, 5, 14, 0, 0, 0, 0, time.UTC),
		Gender:          models.GenderFemale,
		MaritalStatus:   models.MaritalMarried,
		DependentCount:  2,
		Nationality:     "Indian",
		Profession:      models.ProfessionSelfEmployed,
		CurrentJobYrs:   4,
		Income:          1800000,
		LoanAmount:      300000,
		PurposeOfLoan:   "Home Loan",
		TotalMonthlyEMI: 12000,
		HouseOwnership:  models.HouseOwned,
		CarOwnership:    true,
		Education:       "Graduate",
		DeviceType:      models.DeviceAndroid,
	})
}

func TestIndex_FreshSession(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, lowRiskBody)

	rec := env.get("/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.NoError(t, uuid.Validate(cookie.Value))
	assert.True(t, cookie.HttpOnly)

	body := rec.Body.String()
	assert.Contains(t, body, `action="/assessments"`)
	assert.Contains(t, body, `name="nationality" value="Indian"`)
	assert.Contains(t, body, `name="income" value=""`)
	assert.Contains(t, body, "Assess Credit Risk")
}

func TestIndex_KeepsValidCookie(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, lowRiskBody)
	id := uuid.NewString()

	rec := env.get("/", &http.Cookie{Name: DefaultCookieName, Value: id})

	assert.Equal(t, id, sessionCookie(t, rec).Value)
}

func TestSubmit_InvalidFormRerendersWithErrors(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, lowRiskBody)
	form := validForm()
	form.Del("gender")
	form.Set("income", "lots")

	rec := env.postForm("/assessments", form, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Please select a gender.")
	assert.Contains(t, body, "Expected number")
	assert.Contains(t, body, `value="lots"`)
	assert.Equal(t, int32(0), atomic.LoadInt32(env.calls))
}

func TestSubmit_SuccessFlowAndNewAssessment(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, lowRiskBody)
	cookie := sessionCookie(t, env.get("/", nil))

	rec := env.postForm("/assessments", validForm(), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, int32(1), atomic.LoadInt32(env.calls))

	page := env.get("/", cookie).Body.String()
	assert.Contains(t, page, "Assessment Complete")
	assert.Contains(t, page, "Risk Level: Low Risk")
	assert.Contains(t, page, "15.0%")
	assert.Contains(t, page, "Low Risk")
	assert.Contains(t, page, "Loan Amount")
	assert.Contains(t, page, "+0.050")
	assert.Contains(t, page, "-0.080")
	assert.Contains(t, page, "data-meta-model")
	assert.Contains(t, page, "New Assessment")

	again := env.get("/", cookie).Body.String()
	assert.NotContains(t, again, "Assessment Complete")
	assert.Contains(t, again, "15.0%")

	rec = env.postForm("/assessments", validForm(), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(env.calls))

	rec = env.postForm("/assessments/new", url.Values{}, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	fresh := env.get("/", cookie).Body.String()
	assert.Contains(t, fresh, "Assess Credit Risk")
	assert.NotContains(t, fresh, "15.0%")
	assert.Contains(t, fresh, `name="income" value=""`)
}

func TestSubmit_ServerErrorFlashesFailure(t *testing.T) {
	env := newTestEnv(t, http.StatusInternalServerError, `{"detail":"boom"}`)
	cookie := sessionCookie(t, env.get("/", nil))

	rec := env.postForm("/assessments", validForm(), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	page := env.get("/", cookie).Body.String()
	assert.Contains(t, page, "Assessment Failed")
	assert.Contains(t, page, "HTTP error! status: 500")
	assert.Contains(t, page, `name="income" value=""`)
	assert.NotContains(t, page, `value="1800000"`)
	assert.Contains(t, page, "Assess Credit Risk")
}

func TestAPI_Assess(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		request    string
		wantStatus int
		check      func(t *testing.T, resp map[string]interface{})
	}{
		{
			name:       "success",
			status:     http.StatusOK,
			body:       lowRiskBody,
			request:    `{"date_of_birth":"1990-05-14","gender":"Male","marital_status":"Single","dependent_count":0,"nationality":"Indian","profession":"Salaried","current_job_yrs":3,"income":900000,"loan_amount":100000,"purpose_of_loan":"Car Loan","total_monthly_emi":0,"house_ownership":"Rented","car_ownership":false,"education":"Graduate","device_type":"iOS"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp map[string]interface{}) {
				display := resp["display"].(map[string]interface{})
				assert.Equal(t, "15.0%", display["probabilityText"])
				assert.Equal(t, "Low", display["classification"])
				response := resp["response"].(map[string]interface{})
				assert.Equal(t, "Low Risk", response["risk_tier"])
			},
		},
		{
			name:       "validation failure",
			status:     http.StatusOK,
			body:       lowRiskBody,
			request:    `{"date_of_birth":"1990-05-14","gender":"","income":0}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "APPLICANT_VALIDATION_FAILED", resp["code"])
				fields := resp["fields"].(map[string]interface{})
				assert.Equal(t, "Please select a gender.", fields["gender"])
				assert.Equal(t, "Income must be greater than 0", fields["income"])
				assert.Equal(t, "Expected number", fields["dependent_count"])
				assert.Equal(t, "Expected boolean", fields["car_ownership"])
			},
		},
		{
			name:       "omitted zero-valued fields",
			status:     http.StatusOK,
			body:       lowRiskBody,
			request:    `{"date_of_birth":"1990-05-14","gender":"Male","marital_status":"Single","nationality":"Indian","profession":"Salaried","income":900000,"loan_amount":100000,"purpose_of_loan":"Car Loan","total_monthly_emi":null,"house_ownership":"Rented","education":"Graduate","device_type":"iOS"}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "APPLICANT_VALIDATION_FAILED", resp["code"])
				assert.Equal(t, map[string]interface{}{
					"dependent_count":   "Expected number",
					"current_job_yrs":   "Expected number",
					"total_monthly_emi": "Expected number",
					"car_ownership":     "Expected boolean",
				}, resp["fields"])
			},
		},
		{
			name:       "server error",
			status:     http.StatusServiceUnavailable,
			body:       `{}`,
			request:    `{"date_of_birth":"1990-05-14","gender":"Male","marital_status":"Single","dependent_count":0,"nationality":"Indian","profession":"Salaried","current_job_yrs":3,"income":900000,"loan_amount":100000,"purpose_of_loan":"Car Loan","total_monthly_emi":0,"house_ownership":"Rented","car_ownership":false,"education":"Graduate","device_type":"iOS"}`,
			wantStatus: http.StatusBadGateway,
			check: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "PREDICTION_SERVER_ERROR", resp["code"])
				assert.Equal(t, "HTTP error! status: 503", resp["message"])
			},
		},
		{
			name:       "bad json",
			status:     http.StatusOK,
			body:       lowRiskBody,
			request:    `{"date_of_birth":`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "INVALID_REQUEST_BODY", resp["code"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.status, tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(tt.request))
			req.Header.Set("Content-Type", "application/json")

			rec := env.do(req, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			tt.check(t, resp)
		})
	}
}

func TestAPI_Assess_OmittedFieldsSkipPrediction(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, lowRiskBody)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(`{"gender":"Male"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := env.do(req, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(env.calls))
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, lowRiskBody)

	rec := env.get("/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = env.get("/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.server.checks["redis"] = func(context.Context) error { return stderrors.New("dial tcp: connection refused") }
	rec = env.get("/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = env.get("/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "credisense_")
}
