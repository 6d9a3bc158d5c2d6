package perf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirrors the tracker's counters into Prometheus.
type Metrics struct {
	started       prometheus.Counter
	dataProcessed prometheus.Counter
	finished      *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewMetrics creates and registers the performance metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipelines_started_total",
			Help: "Total pipeline runs started",
		}),
		dataProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_data_processed_bytes_total",
			Help: "Total payload bytes processed",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipelines_finished_total",
			Help: "Total pipeline runs finished per status",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Pipeline run duration distribution",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.started, m.dataProcessed, m.finished, m.duration)
	return m
}

// IncStarted counts a started pipeline.
func (m *Metrics) IncStarted() {
	m.started.Inc()
}

// AddDataProcessed counts processed payload bytes.
func (m *Metrics) AddDataProcessed(bytes int64) {
	m.dataProcessed.Add(float64(bytes))
}

// ObserveDuration counts a finished pipeline and records its duration.
func (m *Metrics) ObserveDuration(status string, d time.Duration) {
	m.finished.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}
