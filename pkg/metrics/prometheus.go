package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal    *prometheus.CounterVec
	rowsTotal    prometheus.Counter
	anomalies    prometheus.Counter
	lastFraction prometheus.Gauge
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscan_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"result"},
		),
		rowsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "finscan_rows_scored_total",
				Help: "Rows scored across all runs",
			},
		),
		anomalies: f.NewCounter(
			prometheus.CounterOpts{
				Name: "finscan_anomalies_total",
				Help: "Rows labeled anomalous across all runs",
			},
		),
		lastFraction: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "finscan_last_anomaly_fraction",
				Help: "Anomaly fraction of the most recent run",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscan_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordRun counts a finished run; result is "ok" or "error".
func (r *Recorder) RecordRun(result string) {
	r.runsTotal.WithLabelValues(result).Inc()
}

// RecordRows adds scored and flagged row counts. Source names are unbounded
// and stay out of labels.
func (r *Recorder) RecordRows(rows, anomalies int) {
	r.rowsTotal.Add(float64(rows))
	r.anomalies.Add(float64(anomalies))
}

// RecordFraction sets the anomaly fraction gauge.
func (r *Recorder) RecordFraction(fraction float64) {
	r.lastFraction.Set(fraction)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records stage latency in seconds.
func (r *Recorder) RecordLatency(stage string, seconds float64) {
	r.latency.WithLabelValues(stage).Observe(seconds)
}
