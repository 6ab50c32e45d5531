// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Channels an assessment can arrive through.
const (
	ChannelWeb    = "web"
	ChannelAPI    = "api"
	ChannelWorker = "worker"
)

var (
	AssessmentsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credisense_assessments_submitted_total",
			Help: "Total number of assessment submissions",
		},
		[]string{"channel"},
	)

	// outcome is one of result, failed, invalid or rejected.
	AssessmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credisense_assessment_outcomes_total",
			Help: "Assessment submissions by outcome",
		},
		[]string{"channel", "outcome"},
	)

	RiskClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credisense_risk_classifications_total",
			Help: "Successful assessments by locally derived risk class",
		},
		[]string{"class"},
	)

	PredictionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credisense_prediction_requests_total",
			Help: "Calls to the prediction service by result",
		},
		[]string{"status"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credisense_prediction_duration_seconds",
			Help:    "Latency of prediction service calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	SubmissionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credisense_submissions_in_flight",
			Help: "Sessions currently in the Submitting phase",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
