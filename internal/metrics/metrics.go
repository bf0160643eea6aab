// Package metrics holds the Prometheus instruments for the scoring engine:
// per-score latency, band and guardrail counters, batch outcomes, and the
// cache hit ratio in front of the scores repository.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// Registry holds all Prometheus metrics for the scoring engine.
type Registry struct {
	reg *prometheus.Registry

	// Scoring latency and outcomes
	ScoreDuration *prometheus.HistogramVec
	ScoresTotal   *prometheus.CounterVec
	ScoreErrors   *prometheus.CounterVec

	// Guardrail trips by flag
	GuardrailTrips *prometheus.CounterVec

	// Batch runs
	BatchDuration prometheus.Histogram
	BatchFailures prometheus.Counter
	ActiveBatches prometheus.Gauge

	// Cache performance in front of the scores repository
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheHitRatio prometheus.Gauge

	// HTTP surface
	RequestDuration *prometheus.HistogramVec
}

// New creates a registry with all engine metrics registered against its own
// Prometheus registry, so multiple instances never collide.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ScoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "greyoak_score_duration_seconds",
				Help:    "Duration of a single ticker scoring pass in seconds",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"mode", "result"},
		),

		ScoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greyoak_scores_total",
				Help: "Scores produced by mode and recommendation band",
			},
			[]string{"mode", "band"},
		),

		ScoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greyoak_score_errors_total",
				Help: "Scoring failures by error type",
			},
			[]string{"error_type"},
		),

		GuardrailTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greyoak_guardrail_trips_total",
				Help: "Guardrail activations by flag",
			},
			[]string{"flag"},
		),

		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "greyoak_batch_duration_seconds",
				Help:    "Duration of universe batch scoring runs in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		BatchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "greyoak_batch_failures_total",
				Help: "Tickers that failed to score during batch runs",
			},
		),

		ActiveBatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "greyoak_active_batches",
				Help: "Number of batch scoring runs currently in flight",
			},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "greyoak_cache_hits_total",
				Help: "Score cache hits",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "greyoak_cache_misses_total",
				Help: "Score cache misses",
			},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "greyoak_cache_hit_ratio",
				Help: "Current score cache hit ratio (0.0 to 1.0)",
			},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "greyoak_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"route", "method", "status"},
		),
	}

	r.reg.MustRegister(
		r.ScoreDuration,
		r.ScoresTotal,
		r.ScoreErrors,
		r.GuardrailTrips,
		r.BatchDuration,
		r.BatchFailures,
		r.ActiveBatches,
		r.CacheHits,
		r.CacheMisses,
		r.CacheHitRatio,
		r.RequestDuration,
	)

	return r
}

// ScoreTimer tracks the latency of one scoring pass.
type ScoreTimer struct {
	metrics *Registry
	mode    string
	start   time.Time
}

// StartScoreTimer begins timing a single ticker score.
func (r *Registry) StartScoreTimer(mode string) *ScoreTimer {
	return &ScoreTimer{metrics: r, mode: mode, start: time.Now()}
}

// Stop records the elapsed time with the given result label.
func (t *ScoreTimer) Stop(result string) {
	t.metrics.ScoreDuration.WithLabelValues(t.mode, result).Observe(time.Since(t.start).Seconds())
}

// RecordScore counts a completed score and its guardrail flags.
func (r *Registry) RecordScore(mode, band string, flags []string) {
	r.ScoresTotal.WithLabelValues(mode, band).Inc()
	for _, f := range flags {
		r.GuardrailTrips.WithLabelValues(f).Inc()
	}
}

// RecordScoreError counts a scoring failure by error type.
func (r *Registry) RecordScoreError(errorType string) {
	r.ScoreErrors.WithLabelValues(errorType).Inc()
}

// RecordCacheHit records a score cache hit.
func (r *Registry) RecordCacheHit() {
	r.CacheHits.Inc()
	r.updateCacheHitRatio()
}

// RecordCacheMiss records a score cache miss.
func (r *Registry) RecordCacheMiss() {
	r.CacheMisses.Inc()
	r.updateCacheHitRatio()
}

func (r *Registry) updateCacheHitRatio() {
	hits := counterValue(r.CacheHits)
	misses := counterValue(r.CacheMisses)
	if total := hits + misses; total > 0 {
		r.CacheHitRatio.Set(hits / total)
	}
}

func counterValue(c prometheus.Counter) float64 {
	m := &io_prometheus_client.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Handler exposes this registry over HTTP for Prometheus scrapes.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and custom exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
