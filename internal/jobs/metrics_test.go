package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("audit:retention").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("audit:retention").End(boom), boom)

	assert.Equal(t, 1.0, counterValue(t, reg, "workforce_jobs_total", map[string]string{"job": "audit:retention", "status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "workforce_jobs_total", map[string]string{"job": "audit:retention", "status": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "workforce_jobs_failures_total", map[string]string{"job": "audit:retention"}))
}

func TestAddPurgedIgnoresEmptyRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddPurged("idempotency:cleanup", 0)
	m.AddPurged("idempotency:cleanup", 4)
	assert.Equal(t, 4.0, counterValue(t, reg, "workforce_jobs_purged_rows_total", map[string]string{"job": "idempotency:cleanup"}))

	var nilMetrics *Metrics
	nilMetrics.AddPurged("x", 1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
