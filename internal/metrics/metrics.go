// Package metrics exposes run outcomes as Prometheus series.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dugout_pulse"

// Recorder owns a private registry so tests and multiple apps in one
// process never collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	results     *prometheus.GaugeVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
	alerts      *prometheus.CounterVec
}

// New registers every series on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Aggregation runs by outcome.",
		}, []string{"outcome"}),
		results: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_results",
			Help:      "Results in the last feed by window and data status.",
		}, []string{"window", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one aggregation run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last run finished without error.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Digest deliveries by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.runs, r.results, r.duration, r.lastSuccess, r.alerts)
	return r
}

// RunFinished records the outcome of one run. A nil err is a success.
func (r *Recorder) RunFinished(started, finished time.Time, err error) {
	r.duration.Observe(finished.Sub(started).Seconds())
	if err != nil {
		r.runs.WithLabelValues("failure").Inc()
		return
	}
	r.runs.WithLabelValues("success").Inc()
	r.lastSuccess.Set(float64(finished.Unix()))
}

// RunSkipped counts a run that lost the lock to another instance.
func (r *Recorder) RunSkipped() {
	r.runs.WithLabelValues("skipped").Inc()
}

// SetResults replaces the per-window status gauge with the latest counts.
func (r *Recorder) SetResults(window, status string, n int) {
	r.results.WithLabelValues(window, status).Set(float64(n))
}

// AlertSent counts a digest delivery.
func (r *Recorder) AlertSent(err error) {
	if err != nil {
		r.alerts.WithLabelValues("failure").Inc()
		return
	}
	r.alerts.WithLabelValues("success").Inc()
}

// Registry exposes the underlying gatherer.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
// Cron-driven one-shot runs use this since nothing scrapes them.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
