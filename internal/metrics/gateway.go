package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Admission outcomes.
const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Gateway Prometheus metrics.
var (
	AdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeforge",
			Name:      "admissions_total",
			Help:      "Quota admission decisions",
		},
		[]string{"tier", "outcome"},
	)

	RunnerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeforge",
			Name:      "runner_requests_total",
			Help:      "Total number of runner invocations",
		},
		[]string{"language", "status"}, // "ok" / "program_error" / "error"
	)

	RunnerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codeforge",
			Name:      "runner_duration_seconds",
			Help:      "Runner invocation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"language"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeforge",
			Name:      "tokens_issued_total",
			Help:      "Total number of issued credentials",
		},
		[]string{"tier"},
	)
)

var registerOnce sync.Once

// RegisterGatewayMetrics registers the gateway metrics with the default registry.
func RegisterGatewayMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(AdmissionsTotal)
		prometheus.MustRegister(RunnerRequestsTotal)
		prometheus.MustRegister(RunnerDuration)
		prometheus.MustRegister(TokensIssuedTotal)
	})
}
