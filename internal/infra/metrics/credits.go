package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		creditsCharged,
		creditsRefunded,
		creditBlocks,
		creditBypasses,
	)
}

var (
	creditsCharged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_charged_total",
			Help: "Sum of credit units debited per job type.",
		},
		[]string{"job_type"},
	)

	creditsRefunded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_refunded_total",
			Help: "Sum of credit units returned by compensation per job type.",
		},
		[]string{"job_type"},
	)

	creditBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_blocks_total",
			Help: "Count of requests rejected for insufficient credits per job type.",
		},
		[]string{"job_type"},
	)

	creditBypasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_bypasses_total",
			Help: "Count of reservations skipped for admin/unlimited accounts.",
		},
		[]string{"job_type"},
	)
)

func CreditCharged(jobType string, units int64) {
	creditsCharged.WithLabelValues(norm(jobType)).Add(float64(units))
}

func CreditRefunded(jobType string, units int64) {
	creditsRefunded.WithLabelValues(norm(jobType)).Add(float64(units))
}

func CreditBlocked(jobType string) {
	creditBlocks.WithLabelValues(norm(jobType)).Inc()
}

func CreditBypassed(jobType string) {
	creditBypasses.WithLabelValues(norm(jobType)).Inc()
}
