// Package predictor is the client of the external prediction service.
package predictor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"credisense/internal/common/config"
	"credisense/internal/common/errors"
	httpclient "credisense/internal/common/http"
	"credisense/internal/common/logger"
	"credisense/internal/common/metrics"
	"credisense/internal/common/observability"
	"credisense/internal/models"
)

// Prediction call results used as metric labels.
const (
	StatusOK             = "ok"
	StatusTransportError = "transport_error"
	StatusServerError    = "server_error"
	StatusMalformed      = "malformed"
)

// Predictor scores an encoded applicant.
type Predictor interface {
	Predict(ctx context.Context, req models.EncodedRequest) (*models.AssessmentResponse, error)
}

type Client struct {
	http   *httpclient.Client
	url    string
	logger logger.Logger
	obs    *observability.Observability
	tracer trace.Tracer
}

// NewClient builds a client from config. obs may be nil.
func NewClient(cfg config.PredictorConfig, log logger.Logger, obs *observability.Observability) *Client {
	return NewClientWithHTTP(cfg.BaseURL, cfg.PredictPath, httpclient.NewClient(config.GetDuration(cfg.Timeout)), log, obs)
}

func NewClientWithHTTP(baseURL, path string, hc *httpclient.Client, log logger.Logger, obs *observability.Observability) *Client {
	if path == "" {
		path = "/predict"
	}
	return &Client{
		http:   hc,
		url:    strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		logger: log.WithFields(map[string]interface{}{"component": "predictor"}),
		obs:    obs,
		tracer: otel.Tracer("credisense/predictor"),
	}
}

// URL is the resolved predict endpoint.
func (c *Client) URL() string {
	return c.url
}

// Predict posts the request. Non-2xx statuses become ServerErrors, network
// failures and unusable bodies become TransportErrors.
func (c *Client) Predict(ctx context.Context, req models.EncodedRequest) (out *models.AssessmentResponse, err error) {
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "predictor.Predict", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", c.url)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("error.code", string(errors.CodeOf(err))))
		} else {
			span.SetAttributes(
				attribute.Float64("prediction.default_probability", out.DefaultProbability),
				attribute.String("prediction.risk_tier", out.RiskTier),
			)
		}
		span.End()
	}()

	resp, err := c.http.PostJSON(ctx, c.url, req)
	if err != nil {
		c.record(ctx, StatusTransportError, start)
		c.logger.Error("prediction request failed", map[string]interface{}{
			"url":   c.url,
			"error": err,
		})
		return nil, errors.NewTransportError(err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if !resp.IsSuccess() {
		c.record(ctx, StatusServerError, start)
		c.logger.Warn("prediction service returned error status", map[string]interface{}{
			"url":    c.url,
			"status": resp.StatusCode,
		})
		return nil, errors.NewServerError(resp.StatusCode, truncate(string(resp.Body), 512))
	}

	if err := ValidateResponseBody(resp.Body); err != nil {
		c.record(ctx, StatusMalformed, start)
		c.logger.Error("malformed prediction response", map[string]interface{}{
			"url":   c.url,
			"error": err,
		})
		return nil, errors.NewMalformedResponseError(err.Error())
	}

	var parsed models.AssessmentResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		c.record(ctx, StatusMalformed, start)
		return nil, errors.NewMalformedResponseError(err.Error())
	}

	c.record(ctx, StatusOK, start)
	c.logger.Info("prediction received", map[string]interface{}{
		"defaultProbability": parsed.DefaultProbability,
		"riskTier":           parsed.RiskTier,
		"structured":         parsed.StructuredExplanation.IsPresent(),
		"durationMs":         time.Since(start).Milliseconds(),
	})
	return &parsed, nil
}

func (c *Client) record(ctx context.Context, status string, start time.Time) {
	elapsed := time.Since(start)
	metrics.PredictionRequests.WithLabelValues(status).Inc()
	metrics.PredictionDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	c.obs.RecordPrediction(ctx, status, elapsed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
