// Package metrics records run metrics on a private Prometheus registry.
//
// A Recorder is nil-safe: every method on a nil *Recorder is a no-op, so
// components can take one without checking.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "closeout_"

	ResultSuccess   = "success"
	ResultError     = "error"
	ResultRetryable = "retryable"
	ResultAuth      = "auth"

	KindMonthly  = "monthly"
	KindCombined = "combined"
)

// Recorder groups the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	fetchRequests *prometheus.CounterVec
	fetchRetries  prometheus.Counter
	fetchLatency  *prometheus.HistogramVec
	malformed     prometheus.Counter
	dropped       prometheus.Counter
	reports       *prometheus.CounterVec
	failedMonths  prometheus.Counter
	lastRun       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_requests_total",
				Help: "Batch API requests by result",
			},
			[]string{"result"},
		),
		fetchRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_retries_total",
				Help: "Batch API requests retried after a transient failure",
			},
		),
		fetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Batch API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		malformed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "malformed_records_total",
				Help: "Batch records skipped because they could not be normalized",
			},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "out_of_range_records_total",
				Help: "Normalized records dropped because their date is outside the month",
			},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reports_generated_total",
				Help: "Reports generated by kind",
			},
			[]string{"kind"},
		),
		failedMonths: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "failed_months_total",
				Help: "Requested months whose report could not be generated",
			},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),
	}
	r.registry.MustRegister(
		r.fetchRequests,
		r.fetchRetries,
		r.fetchLatency,
		r.malformed,
		r.dropped,
		r.reports,
		r.failedMonths,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveFetch records one HTTP attempt against the batch API.
func (r *Recorder) ObserveFetch(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.fetchRequests.WithLabelValues(result).Inc()
	r.fetchLatency.WithLabelValues(result).Observe(d.Seconds())
}

// IncRetry counts a retried request.
func (r *Recorder) IncRetry() {
	if r == nil {
		return
	}
	r.fetchRetries.Inc()
}

// AddMalformed counts skipped records.
func (r *Recorder) AddMalformed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.malformed.Add(float64(n))
}

// AddDropped counts records outside their month.
func (r *Recorder) AddDropped(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.dropped.Add(float64(n))
}

// IncReport counts a generated report of the given kind.
func (r *Recorder) IncReport(kind string) {
	if r == nil {
		return
	}
	r.reports.WithLabelValues(kind).Inc()
}

// IncFailedMonth counts a month whose pipeline failed.
func (r *Recorder) IncFailedMonth() {
	if r == nil {
		return
	}
	r.failedMonths.Inc()
}

// MarkRun stamps the completion time of a run.
func (r *Recorder) MarkRun(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
