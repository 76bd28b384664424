package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsTotal,
		jobPollAttempts,
		jobDurationSeconds,
		providerSubmitLatencyMs,
	)
}

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_total",
			Help: "Generation jobs resolved, labeled by provider and terminal outcome.",
		},
		[]string{"provider", "outcome"}, // 'succeeded', 'failed', 'timed_out'
	)

	jobPollAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_job_poll_attempts",
			Help:    "Poll iterations needed to reach a terminal state.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40, 80, 120},
		},
		[]string{"provider"},
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_job_duration_seconds",
			Help:    "Wall-clock time from submission to terminal state.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 240, 300},
		},
		[]string{"provider"},
	)

	providerSubmitLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_submit_latency_ms",
			Help:    "Provider submit call latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "success"},
	)
)

func ObserveJob(provider, outcome string, attempts int, durationSec float64) {
	jobsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
	jobPollAttempts.WithLabelValues(norm(provider)).Observe(float64(attempts))
	jobDurationSeconds.WithLabelValues(norm(provider)).Observe(durationSec)
}

func ObserveSubmit(provider string, latencyMs int, success bool) {
	providerSubmitLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
