// Package metrics holds the prometheus collectors of the workflow engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipworkflow_requests_validated_total",
			Help: "Total number of registration requests validated",
		},
		[]string{"outcome"},
	)

	BucketsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipworkflow_buckets_executed_total",
			Help: "Total number of buckets executed",
		},
		[]string{"strategy", "outcome"},
	)

	BucketSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipworkflow_bucket_size",
			Help:    "Number of requests per submitted bucket",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"strategy"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ipworkflow_stage_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
		},
		[]string{"stage"},
	)

	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipworkflow_transactions_sent_total",
			Help: "Total number of transactions submitted",
		},
		[]string{"kind"},
	)

	FollowUps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipworkflow_follow_ups_total",
			Help: "Total number of follow-up calls per kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
