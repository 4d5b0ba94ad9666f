package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RunLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RunStarted()
	m.RunStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.runsActive))

	m.RunFinished("success", 3*time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.runs.WithLabelValues("error")))
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StepFinished("Click Element", "success")
	m.StrategyOutcome("vision", "miss")
	m.StrategyOutcome("vision", "miss")
	m.StrategyOutcome("observe", "hit")
	m.Retry("Fill Input")
	m.ModelUsage(100, 10, 85, 0.25)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.steps.WithLabelValues("Click Element", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.strategies.WithLabelValues("vision", "miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.strategies.WithLabelValues("observe", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.retries.WithLabelValues("Fill Input")))
	assert.Equal(t, float64(85), testutil.ToFloat64(m.modelTokens.WithLabelValues("image")))
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.estimateCost), 1e-9)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.RunFinished("error", time.Second)
		m.StepFinished("Delay", "success")
		m.StrategyOutcome("agent", "hit")
		m.Retry("Click Element")
		m.ModelUsage(1, 1, 1, 1)
	})
}
