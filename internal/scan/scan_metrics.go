package scan

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/devwatch/internal/evidence"
)

// Metrics holds Prometheus metrics for scan processing. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ScansTotal         *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	ScanDevices        prometheus.Histogram
	DossiersTotal      *prometheus.CounterVec
	NewDevicesTotal    prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns scan metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devwatch_scans_total",
			Help: "Scans submitted by result.",
		}, []string{"result"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "devwatch_scan_duration_seconds",
			Help:    "Time to classify and track one scan.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us .. ~1.6s
		}),
		ScanDevices: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "devwatch_scan_devices",
			Help:    "Device records per accepted scan.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11), // 1 .. 1024
		}),
		DossiersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devwatch_dossiers_total",
			Help: "Dossiers produced by correlation badge.",
		}, []string{"badge"}),
		NewDevicesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devwatch_new_devices_total",
			Help: "Devices registered in the tracker for the first time.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devwatch_notifications_total",
			Help: "New device notifications by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.ScanDevices,
		m.DossiersTotal,
		m.NewDevicesTotal,
		m.NotificationsTotal,
	)

	return m
}

func (m *Metrics) observe(r *Report) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues("accepted").Inc()
	m.ScanDuration.Observe(r.Duration)
	m.ScanDevices.Observe(float64(r.Summary.Total))
	counts := map[evidence.Badge]int{}
	for i := range r.Dossiers {
		counts[r.Dossiers[i].CorrelationBadge]++
	}
	for badge, n := range counts {
		m.DossiersTotal.WithLabelValues(string(badge)).Add(float64(n))
	}
	m.NewDevicesTotal.Add(float64(len(r.NewDevices)))
}

func (m *Metrics) observeRejected(reason string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues("rejected_" + reason).Inc()
}

func (m *Metrics) observeNotify(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.NotificationsTotal.WithLabelValues(status).Inc()
}
