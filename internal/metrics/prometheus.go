package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder on a dedicated registry.
type PrometheusRecorder struct {
	registry      *prom.Registry
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	pagesRendered prom.Counter
	watchRebuilds prom.Counter
}

// NewPrometheusRecorder constructs a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{registry: prom.NewRegistry()}

	r.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Name:    "glacier_build_duration_seconds",
		Help:    "Wall-clock duration of site builds.",
		Buckets: prom.DefBuckets,
	})
	r.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Name: "glacier_build_outcome_total",
		Help: "Finished builds by outcome.",
	}, []string{"outcome"})
	r.pagesRendered = prom.NewCounter(prom.CounterOpts{
		Name: "glacier_pages_rendered_total",
		Help: "Total rendered pages across builds.",
	})
	r.watchRebuilds = prom.NewCounter(prom.CounterOpts{
		Name: "glacier_watch_rebuilds_total",
		Help: "Rebuilds triggered by the watch daemon.",
	})

	r.registry.MustRegister(r.buildDuration, r.buildOutcome, r.pagesRendered, r.watchRebuilds)
	return r
}

func (r *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	r.buildDuration.Observe(d.Seconds())
}

func (r *PrometheusRecorder) IncBuildOutcome(outcome OutcomeLabel) {
	r.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (r *PrometheusRecorder) AddPagesRendered(n int) {
	r.pagesRendered.Add(float64(n))
}

func (r *PrometheusRecorder) IncWatchRebuild() {
	r.watchRebuilds.Inc()
}

// Handler returns the /metrics HTTP handler for this recorder's registry.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
