package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	signals     *prometheus.CounterVec
	corrections *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the backtest metrics on reg. A nil reg means the default
// registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvr_runs_total",
				Help: "Backtest runs by instrument, variant and outcome",
			},
			[]string{"instrument", "variant", "status"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvr_signals_total",
				Help: "Executed signals by instrument and side",
			},
			[]string{"instrument", "side"},
		),
		corrections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvr_signal_corrections_total",
				Help: "Silent signal corrections applied by the sanitizer",
			},
			[]string{"kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvr_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pvr_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(instrument, variant, status string) {
	r.runsTotal.WithLabelValues(instrument, variant, status).Inc()
}

// RecordSignals adds n executed signals of one side.
func (r *Recorder) RecordSignals(instrument, side string, n int) {
	if n > 0 {
		r.signals.WithLabelValues(instrument, side).Add(float64(n))
	}
}

// RecordCorrection adds n corrections of one kind.
func (r *Recorder) RecordCorrection(kind string, n int) {
	if n > 0 {
		r.corrections.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
