// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Graded case and exam submissions
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms485_submissions_total",
			Help: "Total number of graded submissions",
		},
		[]string{"policy", "outcome"}, // outcome: passed/failed/forfeited
	)

	// Completion report deliveries per channel
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms485_report_deliveries_total",
			Help: "Completion report delivery attempts by channel",
		},
		[]string{"channel", "status"}, // status: ok/failed/skipped
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cms485_report_delivery_duration_seconds",
			Help:    "Time spent delivering one completion report over all channels",
			Buckets: prometheus.DefBuckets,
		},
	)

	SuspendWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cms485_suspend_buffer_warnings_total",
			Help: "Writes that landed near the suspend buffer capacity",
		},
	)

	ChallengeEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms485_challenge_emails_total",
			Help: "Challenge-result emails by status",
		},
		[]string{"status"},
	)
)

func Handler() http.Handler { return promhttp.Handler() }
