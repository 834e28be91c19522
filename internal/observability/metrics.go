package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpInFlight         prometheus.Gauge
	evaluationsTotal     *prometheus.CounterVec
	evaluationLatency    prometheus.Histogram
	lessonCacheTotal     *prometheus.CounterVec
	chatRequestsTotal    *prometheus.CounterVec
	eventPublishFailures *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the tutoring API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xilo",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xilo",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 30.0, 120.0},
		}, []string{"method", "route"})

		httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xilo",
			Name:      "http_in_flight_requests",
			Help:      "API requests currently being served, including open streams.",
		})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xilo",
			Name:      "evaluations_total",
			Help:      "Evaluated answers by method and outcome.",
		}, []string{"method", "outcome"})

		evaluationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "xilo",
			Name:      "evaluation_duration_seconds",
			Help:      "End to end duration of answer evaluations.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		})

		lessonCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xilo",
			Name:      "lesson_cache_total",
			Help:      "Lesson cache lookups by result.",
		}, []string{"result"})

		chatRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xilo",
			Name:      "chat_requests_total",
			Help:      "Doubt chat requests by transport and status.",
		}, []string{"transport", "status"})

		eventPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xilo",
			Name:      "event_publish_failures_total",
			Help:      "Evaluation events that could not be published.",
		}, []string{"sink"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpInFlight,
			evaluationsTotal,
			evaluationLatency,
			lessonCacheTotal,
			chatRequestsTotal,
			eventPublishFailures,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPInFlight tracks requests that have not completed yet.
func HTTPInFlight() prometheus.Gauge {
	RegisterMetrics()
	return httpInFlight
}

// Evaluations counts evaluated answers.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationLatency observes evaluation durations.
func EvaluationLatency() prometheus.Histogram {
	RegisterMetrics()
	return evaluationLatency
}

// LessonCache counts lesson cache hits and misses.
func LessonCache() *prometheus.CounterVec {
	RegisterMetrics()
	return lessonCacheTotal
}

// ChatRequests counts doubt chat requests.
func ChatRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return chatRequestsTotal
}

// EventPublishFailures counts failed event publications.
func EventPublishFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return eventPublishFailures
}
