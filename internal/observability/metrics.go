package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	evaluationsTotal   *prometheus.CounterVec
	evaluationLatency  prometheus.Histogram
	interventionsTotal prometheus.Counter
)

// Evaluation outcome labels.
const (
	OutcomePassed            = "passed"
	OutcomeGateFailed        = "gate_failed"
	OutcomeInsufficientVotes = "insufficient_votes"
	OutcomeIncomplete        = "incomplete"
	OutcomeError             = "error"
)

// RegisterMetrics initialises the Prometheus collectors used by the
// evaluation pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodylens_evaluations_total",
			Help: "Total number of image evaluations by outcome.",
		}, []string{"outcome"})

		evaluationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bodylens_evaluation_latency_seconds",
			Help:    "End-to-end latency of one image evaluation.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		interventionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bodylens_interventions_total",
			Help: "Number of pushes that crossed the intervention threshold.",
		})

		prometheus.MustRegister(evaluationsTotal, evaluationLatency, interventionsTotal)
	})
}

// Evaluations exposes the evaluation outcome counter.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationLatency exposes the evaluation latency histogram.
func EvaluationLatency() prometheus.Histogram {
	RegisterMetrics()
	return evaluationLatency
}

// Interventions exposes the intervention counter.
func Interventions() prometheus.Counter {
	RegisterMetrics()
	return interventionsTotal
}
