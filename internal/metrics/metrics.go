// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal         *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	runDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors on the default registry. It is safe to call
// multiple times; the Record helpers call it themselves.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesnap_pages_total",
				Help: "Total number of pages fetched, labeled by outcome.",
			},
			[]string{"status"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesnap_runs_total",
				Help: "Total number of completed crawl runs, labeled by mode.",
			},
			[]string{"mode"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitesnap_run_duration_seconds",
				Help:    "Histogram of whole-run crawl durations, labeled by mode.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"mode"},
		)
	})
}

// RecordPage counts one fetched page by outcome ("success" or "error").
func RecordPage(status string) {
	Init()
	pagesTotal.WithLabelValues(status).Inc()
}

// RecordRun counts one completed run ("site" or "list") and its duration.
func RecordRun(mode string, d time.Duration) {
	Init()
	runsTotal.WithLabelValues(mode).Inc()
	runDurationSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
