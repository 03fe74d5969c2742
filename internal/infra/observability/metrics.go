package observability

import (
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the balance service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	rateSource      *prometheus.CounterVec
	missingRates    *prometheus.CounterVec
	skippedAccounts prometheus.Counter
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "balances_request_duration_seconds",
				Help:    "Duration of operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balances_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		rateSource: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balances_rate_source_total",
				Help: "Rate snapshots handed out, by source (live, cache, static).",
			},
			[]string{"source"},
		),
		missingRates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balances_missing_rate_total",
				Help: "Transactions that contributed zero because no rate was known.",
			},
			[]string{"currency"},
		),
		skippedAccounts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "balances_skipped_accounts_total",
				Help: "Accounts left out of a run for lack of a usable opening balance date.",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balances_rate_cache_hits_total",
				Help: "Total rate cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balances_rate_cache_misses_total",
				Help: "Total rate cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrRateSource counts a snapshot handed out from source.
func (m *Metrics) IncrRateSource(source domain.RateSource) {
	m.rateSource.WithLabelValues(string(source)).Inc()
}

// IncrMissingRate counts a transaction whose currency could not be converted.
func (m *Metrics) IncrMissingRate(currency string) {
	m.missingRates.WithLabelValues(currency).Inc()
}

// IncrSkippedAccount counts an account dropped from a run.
func (m *Metrics) IncrSkippedAccount() {
	m.skippedAccounts.Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetRateSnapshot returns a snapshot of rate-related counters for
// GET /v1/metrics/rates.
func (m *Metrics) GetRateSnapshot() *domain.RateMetrics {
	live := getCounterValue(m.rateSource, string(domain.RateSourceLive))
	cached := getCounterValue(m.rateSource, string(domain.RateSourceCache))
	static := getCounterValue(m.rateSource, string(domain.RateSourceStatic))
	hits := getCounterValue(m.cacheHits, "rates")
	misses := getCounterValue(m.cacheMisses, "rates")

	fallbackRate := float64(0)
	if total := live + cached + static; total > 0 {
		fallbackRate = (cached + static) / total
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.RateMetrics{
		LiveSnapshots:    int64(live),
		CachedSnapshots:  int64(cached),
		StaticSnapshots:  int64(static),
		FallbackRate:     fallbackRate,
		MissingRates:     int64(sumCounterVec(m.missingRates)),
		SkippedAccounts:  int64(readCounter(m.skippedAccounts)),
		RateCacheHitRate: hitRate,
		ProviderErrors:   int64(getCounterValue(m.externalErrors, "rates")),
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
