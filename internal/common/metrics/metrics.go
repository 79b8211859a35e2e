// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"personal-color-workers/internal/ensemble"
)

var (
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

var (
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemble_model_calls_total",
			Help: "Model calls by provider, role and outcome",
		},
		[]string{"provider", "role", "status", "failure_kind"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ensemble_model_call_duration_seconds",
			Help:    "Latency of model calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"provider", "role"},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemble_decisions_total",
			Help: "Ensemble requests by mode, method and outcome",
		},
		[]string{"mode", "method", "outcome"},
	)

	AgreementRatio = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ensemble_agreement_ratio",
			Help:    "Agreement ratio of successful decisions",
			Buckets: []float64{0, 0.34, 0.5, 0.67, 1},
		},
		[]string{"mode", "method"},
	)

	JudgeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemble_judge_fallbacks_total",
			Help: "Hybrid requests answered by the best candidate after the judge failed",
		},
		[]string{"judge"},
	)

	ProviderCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_cache_lookups_total",
			Help: "Provider reply cache lookups by result",
		},
		[]string{"provider", "result"},
	)
)

// ObserveJob records the outcome of one worker job. errorCode is empty on
// success.
func ObserveJob(taskType string, started time.Time, errorCode string) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}

// EnsembleRecorder feeds orchestrator measurements into the prometheus series.
type EnsembleRecorder struct{}

// NewEnsembleRecorder returns a recorder for ensemble.WithRecorder.
func NewEnsembleRecorder() *EnsembleRecorder {
	return &EnsembleRecorder{}
}

func (EnsembleRecorder) RecordModelCall(provider ensemble.ProviderID, role ensemble.ParticipantRole, status ensemble.OutcomeStatus, failureKind string, latency time.Duration) {
	ModelCalls.WithLabelValues(string(provider), string(role), string(status), failureKind).Inc()
	ModelCallDuration.WithLabelValues(string(provider), string(role)).Observe(latency.Seconds())
}

func (EnsembleRecorder) RecordDecision(mode ensemble.Mode, method ensemble.AggregationMethod, outcome string, agreement float64) {
	Decisions.WithLabelValues(string(mode), string(method), outcome).Inc()
	if outcome == "success" {
		AgreementRatio.WithLabelValues(string(mode), string(method)).Observe(agreement)
	}
}

func (EnsembleRecorder) RecordJudgeFallback(judge ensemble.ProviderID) {
	JudgeFallbacks.WithLabelValues(string(judge)).Inc()
}

// RecordCacheLookup counts a provider reply cache hit or miss.
func RecordCacheLookup(provider ensemble.ProviderID, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	ProviderCacheLookups.WithLabelValues(string(provider), result).Inc()
}
