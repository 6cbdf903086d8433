package metrics_test

import (
	"testing"
	"time"

	"classattendance/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveResolution(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveResolution("success", "present", "", 2*time.Second)
	m.ObserveResolution("success", "undetermined", "timeout", 15*time.Second)
	m.ObserveResolution("retry", "", "", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("present", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("undetermined", "timeout")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Statuses.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Statuses.WithLabelValues("retry")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Outcomes))
}

func TestObserveDispatchAndFix(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.ObserveDispatch(-time.Second)
	m.ObserveDispatch(300 * time.Millisecond)
	m.ObserveFix()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dispatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FixesReceived))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch(time.Second)
		m.ObserveResolution("success", "present", "", time.Second)
		m.ObserveFix()
	})
}
