package assesscreditrisk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"credisense/internal/assessment"
	"credisense/internal/common/errors"
	"credisense/internal/common/logger"
	"credisense/internal/common/metrics"
	"credisense/internal/common/observability"
	"credisense/internal/models"
)

const (
	TaskType = "assess-credit-risk"

	// commandTimeout bounds the complete, fail and throw commands. They run
	// outside the job's execution deadline.
	commandTimeout = 5 * time.Second
)

// Assessor is satisfied by *assessment.Service.
type Assessor interface {
	Assess(ctx context.Context, record models.ApplicantRecord) (*assessment.Outcome, error)
}

type Handler struct {
	config       *Config
	assessor     Assessor
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
	tracer       trace.Tracer
	now          func() time.Time
}

func NewHandler(config *Config, assessor Assessor, log logger.Logger, obs *observability.Observability) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		assessor:     assessor,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
		obs:          obs,
		tracer:       otel.Tracer("credisense/worker/" + TaskType),
		now:          time.Now,
	}
}

// Handle completes the job with an assessment summary. Validation failures
// are thrown as BPMN errors; prediction failures fail the job so the engine
// retries it.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := h.now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
	metrics.AssessmentsSubmitted.WithLabelValues(metrics.ChannelWorker).Inc()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.tracer.Start(ctx, TaskType, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.Int64("zeebe.job.key", job.Key),
			attribute.Int64("zeebe.process_instance.key", job.ProcessInstanceKey),
			attribute.String("zeebe.bpmn_process_id", job.BpmnProcessId),
		))
	defer span.End()

	input, err := h.parseInput(job)
	if err != nil {
		markSpan(span, err)
		h.reportFailure(ctx, client, job, err, start)
		return err
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		markSpan(span, err)
		h.reportFailure(ctx, client, job, err, start)
		return err
	}
	span.SetAttributes(attribute.String("assessment.classification", output.Assessment.Classification))

	cmdCtx, cmdCancel := commandContext(ctx)
	defer cmdCancel()
	if err := h.completeJob(cmdCtx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		markSpan(span, err)
		return err
	}

	elapsed := time.Since(start)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	metrics.AssessmentOutcomes.WithLabelValues(metrics.ChannelWorker, "result").Inc()
	h.obs.RecordJobProcessed(ctx, "completed")
	h.obs.RecordJobDuration(ctx, elapsed, "completed")

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":         job.Key,
		"classification": output.Assessment.Classification,
		"durationMs":     elapsed.Milliseconds(),
	})
	return nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewApplicantValidationError(map[string]string{
			"applicant": fmt.Sprintf("invalid job variables: %v", err),
		})
	}
	if input.Applicant == nil {
		return nil, errors.NewApplicantValidationError(map[string]string{
			"applicant": "applicant is required",
		})
	}
	return &input, nil
}

// Execute runs the assessment pipeline and summarises the outcome.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	outcome, err := h.assessor.Assess(ctx, *input.Applicant)
	if err != nil {
		return nil, err
	}

	summary := Summary{
		ApplicationID:      input.ApplicationID,
		DefaultProbability: outcome.Response.DefaultProbability,
		ProbabilityText:    outcome.Display.ProbabilityText,
		RiskTier:           outcome.Response.RiskTier,
		Classification:     string(outcome.Display.Classification),
		ConfidenceScore:    outcome.Response.ConfidenceScore,
		ExplanationCard:    outcome.Response.ExplanationCard,
		TopRiskFactors:     []string{},
		AssessedAt:         h.now().UTC(),
	}
	if len(outcome.Display.ModelCards) > 0 {
		for _, c := range outcome.Display.ModelCards[0].RiskIncreasing {
			summary.TopRiskFactors = append(summary.TopRiskFactors, c.Label)
		}
	}
	return &Output{Assessment: summary}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("failed to create complete job command: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("failed to send complete job command: %w", err)
	}
	return nil
}

func markSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.code", string(errors.CodeOf(err))))
}

func commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
}

// reportFailure runs on a fresh context so a job whose execution deadline
// expired is still failed promptly.
func (h *Handler) reportFailure(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	ctx, cancel := commandContext(ctx)
	defer cancel()

	code := string(errors.CodeOf(err))
	elapsed := time.Since(start)

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	outcome := "failed"
	if errors.IsValidation(err) {
		outcome = "invalid"
	}
	metrics.AssessmentOutcomes.WithLabelValues(metrics.ChannelWorker, outcome).Inc()
	h.obs.RecordJobProcessed(ctx, "failed")
	h.obs.RecordJobDuration(ctx, elapsed, "failed")

	h.errorHandler.HandleJobError(ctx, client, job, err)
}
