package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics replaces the teacher's metrics.go timing stack (a hand-rolled
// push/pop stack of time.Duration accumulators) with real Prometheus
// instrumentation, registered once per Engine the way the teacher's
// metrics struct was once per solver run.
type Metrics struct {
	ResolverDuration prometheus.Histogram
	FetchDuration    *prometheus.HistogramVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	TransactionSteps *prometheus.CounterVec
}

// NewMetrics constructs and registers a Metrics set against reg. Passing
// a fresh prometheus.NewRegistry() per Engine instance (rather than the
// global DefaultRegisterer) keeps engines independently testable, the
// same "per-Engine, not module-level" discipline spec.md's Design Notes
// call for.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResolverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "condacore_resolver_duration_seconds",
			Help:    "Wall-clock duration of a single resolver run.",
			Buckets: prometheus.DefBuckets,
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "condacore_repodata_fetch_duration_seconds",
			Help:    "Duration of a single (channel, subdir) repodata fetch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel", "subdir", "outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condacore_repodata_cache_hits_total",
			Help: "Repodata cache entries served without a network round trip.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condacore_repodata_cache_misses_total",
			Help: "Repodata cache entries that required revalidation or a full fetch.",
		}),
		TransactionSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condacore_transaction_steps_total",
			Help: "Transaction plan steps executed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.ResolverDuration, m.FetchDuration, m.CacheHits, m.CacheMisses, m.TransactionSteps)
	return m
}

// Timer starts a wall-clock measurement; call the returned function with
// h to observe the elapsed seconds into it.
func Timer() func(h prometheus.Histogram) {
	start := time.Now()
	return func(h prometheus.Histogram) {
		h.Observe(time.Since(start).Seconds())
	}
}
