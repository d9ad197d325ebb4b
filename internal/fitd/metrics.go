package fitd

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the fitting service.
type Metrics struct {
	Evaluations       prometheus.Counter
	PenaltyScores     prometheus.Counter
	GenerationSeconds prometheus.Histogram
	ActiveRuns        prometheus.Gauge
}

// NewMetrics creates and registers the service collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinfit_objective_evaluations_total",
			Help: "Total number of objective evaluations across all runs.",
		}),
		PenaltyScores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinfit_penalty_evaluations_total",
			Help: "Objective evaluations that scored the integration-failure penalty.",
		}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kinfit_generation_duration_seconds",
			Help:    "Wall time per optimizer generation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kinfit_active_runs",
			Help: "Number of optimization runs currently executing.",
		}),
	}
	reg.MustRegister(m.Evaluations, m.PenaltyScores, m.GenerationSeconds, m.ActiveRuns)
	return m
}

// instrumentedEvaluator wraps an evaluator with evaluation and penalty
// counters. Counting is the only side effect; scores pass through untouched.
type instrumentedEvaluator struct {
	inner   evaluator
	penalty float64
	metrics *Metrics
}

type evaluator interface {
	Evaluate(x []float64) float64
}

func (e *instrumentedEvaluator) Evaluate(x []float64) float64 {
	score := e.inner.Evaluate(x)
	if e.metrics != nil {
		e.metrics.Evaluations.Inc()
		if score >= e.penalty {
			e.metrics.PenaltyScores.Inc()
		}
	}
	return score
}
