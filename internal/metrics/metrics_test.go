package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionFansOut(t *testing.T) {
	ctx := context.Background()
	a := NewLogMetrics(nil)
	b := NewLogMetrics(nil)
	c := NewCollection(a, NewNoopMetrics())
	c.Add(b)
	require.Equal(t, 3, c.Len())

	require.NoError(t, c.Initialize(ctx))
	require.NoError(t, c.IncrementCounter(ctx, MetricInstructionsReceived, 2))
	require.NoError(t, c.IncrementCounter(ctx, MetricInstructionsReceived, 1))
	require.NoError(t, c.UpdateGauge(ctx, MetricPoolShareSupply, 42))
	require.NoError(t, c.RecordHistogram(ctx, MetricInstructionTimeMilliseconds, 1.5))
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Shutdown(ctx))

	for _, m := range []*LogMetrics{a, b} {
		assert.Equal(t, uint64(3), m.Counter(MetricInstructionsReceived))
		assert.Equal(t, float64(42), m.Gauge(MetricPoolShareSupply))
	}
}

func TestCounterNames(t *testing.T) {
	assert.Equal(t, "instructions_swap", KindCounter("swap"))
	assert.Equal(t, "instructions_failed_stale_price", FailureCounter("STALE_PRICE"))
	assert.Equal(t, "instructions_failed_unknown", FailureCounter(""))
}

func TestPrometheusMetrics(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheusMetrics("")

	require.NoError(t, p.IncrementCounter(ctx, MetricInstructionsSuccessful, 2))
	require.NoError(t, p.IncrementCounter(ctx, MetricInstructionsSuccessful, 3))
	require.NoError(t, p.UpdateGauge(ctx, MetricPoolShareSupply, 7))
	require.NoError(t, p.RecordHistogram(ctx, MetricInstructionTimeMilliseconds, 0.2))

	families, err := p.Registry().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			values[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
		}
	}
	assert.Equal(t, float64(5), values["zion_instructions_successful_total"])
	assert.Equal(t, float64(7), values["zion_pool_share_supply"])
	assert.Equal(t, float64(1), values["zion_instruction_time_milliseconds"])

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "zion_instructions_successful_total 5"))
}
