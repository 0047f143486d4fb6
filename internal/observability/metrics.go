package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	gradingOutcomesTotal  *prometheus.CounterVec
	gradingDurationSecond *prometheus.HistogramVec
	gradingQueueDepth     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assess_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_grading_outcomes_total",
			Help: "Grading passes by terminal outcome.",
		}, []string{"outcome"})

		gradingDurationSecond = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assess_grading_duration_seconds",
			Help:    "Duration of grading passes by complexity tier.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"tier"})

		gradingQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assess_grading_queue_depth",
			Help: "Number of grading jobs waiting in the local queue.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradingOutcomesTotal,
			gradingDurationSecond,
			gradingQueueDepth,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradingOutcomes exposes the counter for grading terminal outcomes.
func GradingOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOutcomesTotal
}

// GradingDuration exposes the grading pass duration histogram.
func GradingDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingDurationSecond
}

// GradingQueueDepth exposes the local queue depth gauge.
func GradingQueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return gradingQueueDepth
}
