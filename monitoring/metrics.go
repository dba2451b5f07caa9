package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DepositsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposits_reviewed_total",
			Help: "Deposit review decisions applied",
		},
		[]string{"decision"},
	)

	ReferralsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_completed_total",
			Help: "Referrals moved from pending to completed",
		},
	)

	BalanceAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_adjustments_total",
			Help: "Ledger writes by kind",
		},
		[]string{"kind"},
	)

	SettlementConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_conflicts_total",
			Help: "Writes refused because of a stale version",
		},
		[]string{"entity"},
	)

	SubmissionsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_reviewed_total",
			Help: "Task submission and participation review decisions",
		},
		[]string{"kind", "decision"},
	)
)
