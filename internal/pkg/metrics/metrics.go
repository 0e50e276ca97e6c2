package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookOutcomes counts processed notifications by gateway and outcome
	// (applied, duplicate, bad_payload, missing_signature, invalid_signature,
	// unknown_order, retry).
	WebhookOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursepass_webhook_outcomes_total",
		Help: "Webhook notifications processed, by gateway and outcome.",
	}, []string{"gateway", "outcome"})

	// WebhookDuration tracks end-to-end processing time per gateway.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coursepass_webhook_processing_seconds",
		Help:    "Time spent processing one webhook notification.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})

	// SweepRuns counts completed reconciliation sweeps.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursepass_sweep_runs_total",
		Help: "Completed access reconciliation sweeps.",
	})

	// SweepRecords counts per-record sweep results (revoked, failed, expired).
	SweepRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursepass_sweep_records_total",
		Help: "Expired subscription records handled by sweeps, by result.",
	}, []string{"result"})

	// SweepDuration tracks how long a full sweep takes.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coursepass_sweep_duration_seconds",
		Help:    "Duration of one full reconciliation sweep.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})
)
