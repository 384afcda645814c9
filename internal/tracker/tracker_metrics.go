package tracker

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the device registry.
type Metrics struct {
	TrackedDevices prometheus.Gauge
	UpdatesTotal   *prometheus.CounterVec
	EvictionsTotal prometheus.Counter
}

// NewMetrics registers and returns tracker metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TrackedDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devwatch_tracked_devices",
			Help: "Devices currently held in the tracker registry.",
		}),
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devwatch_tracker_updates_total",
			Help: "Tracker updates by kind (insert, merge, touch).",
		}, []string{"kind"}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devwatch_tracker_evictions_total",
			Help: "Devices evicted from the tracker registry.",
		}),
	}

	reg.MustRegister(
		m.TrackedDevices,
		m.UpdatesTotal,
		m.EvictionsTotal,
	)

	return m
}

// Hooks returns Tracker hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnInsert: func() {
			m.TrackedDevices.Inc()
			m.UpdatesTotal.WithLabelValues("insert").Inc()
		},
		OnMerge: func(empty bool) {
			kind := "merge"
			if empty {
				// timestamp refresh only
				kind = "touch"
			}
			m.UpdatesTotal.WithLabelValues(kind).Inc()
		},
		OnEvict: func(n int) {
			m.TrackedDevices.Sub(float64(n))
			m.EvictionsTotal.Add(float64(n))
		},
	}
}
