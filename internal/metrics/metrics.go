// Package metrics exposes change-log build counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/ordertrail/internal/changelog"
)

// Registry owns a private Prometheus registry and implements
// changelog.Recorder.
type Registry struct {
	reg *prometheus.Registry

	RowsBuilt         *prometheus.CounterVec
	RowsSkipped       *prometheus.CounterVec
	ChangeLines       prometheus.Counter
	Anomalies         prometheus.Counter
	EntriesPublished  prometheus.Counter
	PublishFailures   prometheus.Counter
	ChangeLogRequests *prometheus.CounterVec
}

var _ changelog.Recorder = (*Registry)(nil)

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	built := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordertrail_rows_built_total",
		Help: "Log rows rendered into entries, by action.",
	}, []string{"action"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordertrail_rows_skipped_total",
		Help: "Log rows skipped, by error code.",
	}, []string{"code"})
	lines := prometheus.NewCounter(prometheus.CounterOpts{Name: "ordertrail_change_lines_total"})
	anomalies := prometheus.NewCounter(prometheus.CounterOpts{Name: "ordertrail_legacy_anomalies_total"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "ordertrail_entries_published_total"})
	publishFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "ordertrail_publish_failures_total"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordertrail_changelog_requests_total",
		Help: "Change-log requests served over HTTP, by status class.",
	}, []string{"status"})

	r.MustRegister(built, skipped, lines, anomalies, published, publishFailed, requests)
	return &Registry{
		reg:               r,
		RowsBuilt:         built,
		RowsSkipped:       skipped,
		ChangeLines:       lines,
		Anomalies:         anomalies,
		EntriesPublished:  published,
		PublishFailures:   publishFailed,
		ChangeLogRequests: requests,
	}
}

// RowBuilt implements changelog.Recorder.
func (r *Registry) RowBuilt(action changelog.Action, changes int) {
	r.RowsBuilt.WithLabelValues(string(action)).Inc()
	r.ChangeLines.Add(float64(changes))
}

// RowSkipped implements changelog.Recorder.
func (r *Registry) RowSkipped(code changelog.RowErrorCode) {
	r.RowsSkipped.WithLabelValues(string(code)).Inc()
}

// AnomalyDetected implements changelog.Recorder.
func (r *Registry) AnomalyDetected() { r.Anomalies.Inc() }

// Gatherer exposes the registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
