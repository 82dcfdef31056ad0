// Package metrics exposes import telemetry as prometheus instruments.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/recipebox/backend/internal/domain"
)

const namespace = "recipebox"

// Recorder implements usecase.ImportRecorder
type Recorder struct {
	imports        *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	fetchFailures  *prometheus.CounterVec
	matches        *prometheus.CounterVec
	unmatched      prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
}

// New registers the import instruments with reg; nil means the default registry
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Total number of recipe imports by extraction source and confidence",
			},
			[]string{"source", "confidence"},
		),
		importDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Duration of recipe imports in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		fetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Total number of failed page fetches by status (0 for transport errors)",
			},
			[]string{"status"},
		),
		matches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingredient_matches_total",
				Help:      "Total number of matched ingredient lines by rule",
			},
			[]string{"match_type"},
		),
		unmatched: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingredient_unmatched_total",
				Help:      "Total number of ingredient lines no rule matched",
			},
		),
		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_cache_hits_total",
				Help:      "Total number of URL imports served from cache",
			},
		),
		cacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_cache_misses_total",
				Help:      "Total number of URL import cache misses",
			},
		),
	}
}

// RecordImport counts one finished import
func (r *Recorder) RecordImport(source string, confidence domain.Confidence, elapsed time.Duration) {
	if source == "" {
		source = "none"
	}
	r.imports.WithLabelValues(source, string(confidence)).Inc()
	r.importDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// RecordFetchFailure counts a fetch that did not produce a 2xx page
func (r *Recorder) RecordFetchFailure(statusCode int) {
	r.fetchFailures.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordMatches counts matched lines by rule and unmatched lines
func (r *Recorder) RecordMatches(report domain.MatchReport) {
	for _, m := range report.Matched {
		r.matches.WithLabelValues(string(m.MatchType)).Inc()
	}
	r.unmatched.Add(float64(len(report.UnmatchedLines)))
}

// RecordCacheLookup counts a URL cache hit or miss
func (r *Recorder) RecordCacheLookup(hit bool) {
	if hit {
		r.cacheHits.Inc()
		return
	}
	r.cacheMisses.Inc()
}
