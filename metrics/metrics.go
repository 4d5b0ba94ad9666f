// Package metrics exposes Prometheus collectors for scenario runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scenario_runner"

// Metrics holds the run collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsActive   prometheus.Gauge
	steps        *prometheus.CounterVec
	strategies   *prometheus.CounterVec
	retries      *prometheus.CounterVec
	modelTokens  *prometheus.CounterVec
	estimateCost prometheus.Counter
}

// New registers the collectors on reg. Registration errors panic, like the
// promauto helpers.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scenario runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of scenario runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"status"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Scenario runs currently executing.",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps by action and status.",
		}, []string{"action", "status"}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_strategy_total",
			Help:      "Selector resolutions by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_retries_total",
			Help:      "Step attempts that failed and were retried.",
		}, []string{"action"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Model tokens consumed by runs.",
		}, []string{"kind"}),
		estimateCost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cost_usd_total",
			Help:      "Estimated model cost of runs in USD.",
		}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.runsActive, m.steps, m.strategies, m.retries, m.modelTokens, m.estimateCost)
	return m
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// RunFinished records a run's final status and duration.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) StepFinished(action, status string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(action, status).Inc()
}

// StrategyOutcome counts one strategy attempt. outcome is "hit" or "miss".
func (m *Metrics) StrategyOutcome(strategy, outcome string) {
	if m == nil {
		return
	}
	m.strategies.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) Retry(action string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(action).Inc()
}

// ModelUsage adds a run's token totals and estimated cost.
func (m *Metrics) ModelUsage(prompt, completion, image int, cost float64) {
	if m == nil {
		return
	}
	m.modelTokens.WithLabelValues("prompt").Add(float64(prompt))
	m.modelTokens.WithLabelValues("completion").Add(float64(completion))
	m.modelTokens.WithLabelValues("image").Add(float64(image))
	m.estimateCost.Add(cost)
}
