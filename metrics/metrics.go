// Package metrics exposes Prometheus instrumentation for loads and searches.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes.
const (
	OutcomeMatched = "matched"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Recorder holds every collector registered for one engine.
type Recorder struct {
	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	rowsScanned    prometheus.Counter
	matches        prometheus.Histogram
	loads          *prometheus.CounterVec
	loadDuration   prometheus.Histogram
	loadedSources  prometheus.Gauge
	loadedRows     prometheus.Gauge
}

// NewRecorder registers collectors with reg. A nil reg uses a private registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		searches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowseek_searches_total",
				Help: "Total number of searches by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		searchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rowseek_search_duration_seconds",
				Help:    "Search latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		rowsScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "rowseek_rows_scanned_total",
			Help: "Rows examined by searches",
		}),
		matches: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rowseek_search_matches",
			Help:    "Matches returned per search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		loads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowseek_source_loads_total",
				Help: "Source loads by status",
			},
			[]string{"status"},
		),
		loadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rowseek_source_load_duration_seconds",
			Help:    "Time to read and publish one source",
			Buckets: prometheus.DefBuckets,
		}),
		loadedSources: f.NewGauge(prometheus.GaugeOpts{
			Name: "rowseek_loaded_sources",
			Help: "Sources currently published",
		}),
		loadedRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "rowseek_loaded_rows",
			Help: "Rows currently published across all sources",
		}),
	}
}

// ObserveSearch records one finished search.
func (r *Recorder) ObserveSearch(mode, outcome string, elapsed time.Duration, scanned, matched int) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(mode, outcome).Inc()
	if outcome == OutcomeInvalid {
		return
	}
	r.searchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	r.rowsScanned.Add(float64(scanned))
	r.matches.Observe(float64(matched))
}

// ObserveLoad records one source load attempt.
func (r *Recorder) ObserveLoad(err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	r.loads.WithLabelValues(status).Inc()
	r.loadDuration.Observe(elapsed.Seconds())
}

// SetLoaded reports the current catalog size.
func (r *Recorder) SetLoaded(sources, rows int) {
	if r == nil {
		return
	}
	r.loadedSources.Set(float64(sources))
	r.loadedRows.Set(float64(rows))
}

// Handler returns the Prometheus HTTP handler for /metrics over g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
