package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymlog/internal/telemetry/metrics"
)

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	require.Failf(t, "metric family not found", "name: %s", name)
	return nil
}

func TestManager_CacheLookups(t *testing.T) {
	m, reg := metrics.NewTestManagerAndRegistry()

	m.CounterCacheLookups.WithLabelValues("exercises", "hit").Inc()
	m.CounterCacheLookups.WithLabelValues("exercises", "hit").Inc()
	m.CounterCacheLookups.WithLabelValues("exercises", "miss").Inc()
	m.CounterSetsSaved.Add(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	lookups := findFamily(t, families, "gymlog_test_server_cache_lookups")
	assert.Equal(t, dto.MetricType_COUNTER, lookups.GetType())
	require.Len(t, lookups.GetMetric(), 2)

	byResult := map[string]float64{}
	for _, metric := range lookups.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "result" {
				byResult[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"hit": 2, "miss": 1}, byResult)

	setsSaved := findFamily(t, families, "gymlog_test_server_sets_saved")
	require.Len(t, setsSaved.GetMetric(), 1)
	assert.Equal(t, float64(3), setsSaved.GetMetric()[0].GetCounter().GetValue())
}

func TestSetupPrometheus_ExtraCollectors(t *testing.T) {
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_counter", Help: "extra"})
	reg := metrics.SetupPrometheus(extra)
	extra.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	findFamily(t, families, "extra_counter")
	findFamily(t, families, "go_goroutines")
}
