package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors shared by the worker and the API.
type Metrics struct {
	Outcomes      *prometheus.CounterVec
	Statuses      *prometheus.CounterVec
	FixWait       prometheus.Histogram
	DispatchLag   prometheus.Histogram
	Dispatched    prometheus.Counter
	FixesReceived prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "resolutions_total",
			Help:      "Slot resolutions by outcome and cause.",
		}, []string{"outcome", "cause"}),
		Statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "job_status_total",
			Help:      "Resolution job results by status.",
		}, []string{"status"}),
		FixWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "fix_wait_seconds",
			Help:      "Time spent waiting for a usable fix.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15},
		}),
		DispatchLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "dispatch_lag_seconds",
			Help:      "Delay between an alarm's fire time and its dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "alarms_dispatched_total",
			Help:      "Alarms published to the fire queue.",
		}),
		FixesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "fixes_received_total",
			Help:      "Position fixes accepted by the API.",
		}),
	}
	reg.MustRegister(m.Outcomes, m.Statuses, m.FixWait, m.DispatchLag, m.Dispatched, m.FixesReceived)
	return m
}

// ObserveDispatch records one published alarm.
func (m *Metrics) ObserveDispatch(lag time.Duration) {
	if m == nil {
		return
	}
	m.Dispatched.Inc()
	if lag < 0 {
		lag = 0
	}
	m.DispatchLag.Observe(lag.Seconds())
}

// ObserveResolution records a finished job run. Outcome and cause are empty
// for runs rejected before resolution.
func (m *Metrics) ObserveResolution(status, outcome, cause string, fixWait time.Duration) {
	if m == nil {
		return
	}
	m.Statuses.WithLabelValues(status).Inc()
	if outcome == "" {
		return
	}
	if cause == "" {
		cause = "none"
	}
	m.Outcomes.WithLabelValues(outcome, cause).Inc()
	if fixWait > 0 {
		m.FixWait.Observe(fixWait.Seconds())
	}
}

// ObserveFix records one accepted fix.
func (m *Metrics) ObserveFix() {
	if m == nil {
		return
	}
	m.FixesReceived.Inc()
}
