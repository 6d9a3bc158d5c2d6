package governor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes governor state to Prometheus.
type Metrics struct {
	usage  *prometheus.GaugeVec
	limit  *prometheus.GaugeVec
	denied *prometheus.CounterVec
}

// NewMetrics creates and registers the governor's metrics on the given
// registerer. Pass prometheus.DefaultRegisterer for the process-wide
// registry or a fresh one in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		usage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "governor_resource_usage",
			Help: "Current usage per governed resource",
		}, []string{"resource"}),
		limit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "governor_resource_limit",
			Help: "Configured limit per governed resource",
		}, []string{"resource"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governor_admissions_denied_total",
			Help: "Total admissions denied per resource",
		}, []string{"resource"}),
	}
	reg.MustRegister(m.usage, m.limit, m.denied)
	return m
}

// SetUsage records the current usage of a resource.
func (m *Metrics) SetUsage(resource string, value int64) {
	m.usage.WithLabelValues(resource).Set(float64(value))
}

// SetLimit records the configured limit of a resource.
func (m *Metrics) SetLimit(resource string, value int64) {
	m.limit.WithLabelValues(resource).Set(float64(value))
}

// IncDenied counts a refused admission on a resource.
func (m *Metrics) IncDenied(resource string) {
	m.denied.WithLabelValues(resource).Inc()
}
