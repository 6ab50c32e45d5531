package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"credisense/internal/applicant"
	"credisense/internal/common/errors"
	"credisense/internal/common/metrics"
	"credisense/internal/models"
	"credisense/internal/orchestrator"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	failed := gin.H{}
	for name, check := range s.checks {
		if err := check(c.Request.Context()); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleIndex(c *gin.Context) {
	snap, err := s.orch.View(c.Request.Context(), sessionID(c))
	if err != nil && snap == nil {
		s.storeUnavailable(c, err)
		return
	}

	data := newPageData(snap.Phase, formValues(snap.Form, snap.FreshForm))
	data.Display = snap.Display
	data.Notifications = snap.Notifications
	s.render(c, http.StatusOK, data)
}

func (s *Server) handleSubmit(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "invalid form body")
		return
	}

	record, result := applicant.Decode(s.service.Validator(), c.Request.PostForm)
	if !result.Valid {
		data := newPageData(orchestrator.PhaseIdle, c.Request.PostForm)
		data.Errors = result.ByField()
		s.render(c, http.StatusUnprocessableEntity, data)
		return
	}

	_, err := s.orch.Submit(c.Request.Context(), sessionID(c), record)
	switch {
	case err == nil, errors.IsPrediction(err):
		// The outcome is flashed on the next render.
	case errors.IsValidation(err):
		data := newPageData(orchestrator.PhaseIdle, c.Request.PostForm)
		if stdErr, ok := errors.AsStandard(err); ok {
			data.Errors = fieldMessages(stdErr)
		}
		s.render(c, http.StatusUnprocessableEntity, data)
		return
	case errors.CodeOf(err) == errors.ErrCodeSessionStoreFailed:
		s.storeUnavailable(c, err)
		return
	default:
		s.logger.Info("submission rejected", map[string]interface{}{
			"sessionId": sessionID(c),
			"code":      errors.CodeOf(err),
		})
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleNewAssessment(c *gin.Context) {
	_, err := s.orch.NewAssessment(c.Request.Context(), sessionID(c))
	if errors.CodeOf(err) == errors.ErrCodeSessionStoreFailed {
		s.storeUnavailable(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleAPIAssess is the stateless JSON surface: no session, no
// notifications.
func (s *Server) handleAPIAssess(c *gin.Context) {
	metrics.AssessmentsSubmitted.WithLabelValues(metrics.ChannelAPI).Inc()

	var record models.ApplicantRecord
	if err := c.ShouldBindBodyWith(&record, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_REQUEST_BODY",
			"message": err.Error(),
		})
		return
	}

	var keys map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&keys, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_REQUEST_BODY",
			"message": err.Error(),
		})
		return
	}
	if missing := applicant.CheckJSONFields(keys); !missing.Valid {
		missing.Merge(s.service.Validate(record))
		metrics.AssessmentOutcomes.WithLabelValues(metrics.ChannelAPI, "invalid").Inc()
		err := errors.NewApplicantValidationError(missing.ByField())
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    errors.CodeOf(err),
			"message": errors.UserMessage(err),
			"fields":  missing.ByField(),
		})
		return
	}

	outcome, err := s.service.Assess(c.Request.Context(), record)
	if err != nil {
		stdErr, _ := errors.AsStandard(err)
		status := http.StatusInternalServerError
		label := "failed"
		switch {
		case errors.IsValidation(err):
			status, label = http.StatusUnprocessableEntity, "invalid"
		case errors.IsPrediction(err):
			status = http.StatusBadGateway
		}
		metrics.AssessmentOutcomes.WithLabelValues(metrics.ChannelAPI, label).Inc()

		body := gin.H{"code": errors.CodeOf(err), "message": errors.UserMessage(err)}
		if stdErr != nil && errors.IsValidation(err) {
			body["fields"] = fieldMessages(stdErr)
		}
		c.JSON(status, body)
		return
	}

	metrics.AssessmentOutcomes.WithLabelValues(metrics.ChannelAPI, "result").Inc()
	c.JSON(http.StatusOK, gin.H{
		"response": outcome.Response,
		"display":  outcome.Display,
	})
}

func (s *Server) storeUnavailable(c *gin.Context, err error) {
	s.logger.Error("session store unavailable", map[string]interface{}{
		"sessionId": sessionID(c),
		"error":     err.Error(),
	})
	c.String(http.StatusServiceUnavailable, errors.UserMessage(err))
}

func fieldMessages(stdErr *errors.StandardError) map[string]string {
	out := map[string]string{}
	fields, _ := stdErr.Metadata["fields"].(map[string]interface{})
	for k, v := range fields {
		if msg, ok := v.(string); ok {
			out[k] = msg
		}
	}
	return out
}
