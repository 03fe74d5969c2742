package rates

import (
	"context"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/observability"
	"github.com/boddenberg/pf-balances-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultFreshness is how long a cached snapshot stays usable as a fallback.
const DefaultFreshness = time.Hour

// Acquirer hands out a snapshot for a base currency, in order of preference:
// live provider, fresh cached snapshot, static table. It never fails.
type Acquirer struct {
	provider  port.RateProvider
	cache     port.RateCache
	freshness time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAcquirer wires the fallback chain. A nil cache disables the cache step.
func NewAcquirer(provider port.RateProvider, cache port.RateCache, freshness time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Acquirer {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Acquirer{
		provider:  provider,
		cache:     cache,
		freshness: freshness,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Acquire implements port.RateSource.
func (a *Acquirer) Acquire(ctx context.Context, base string) domain.RateSnapshot {
	ctx, span := tracer.Start(ctx, "Acquirer.Acquire")
	defer span.End()
	base = domain.NormalizeCurrency(base)

	snap := a.acquire(ctx, base)
	span.SetAttributes(
		attribute.String("rates.base", base),
		attribute.String("rates.source", string(snap.Source)),
	)
	a.metrics.IncrRateSource(snap.Source)
	return snap
}

func (a *Acquirer) acquire(ctx context.Context, base string) domain.RateSnapshot {
	if a.provider != nil {
		snap, err := a.provider.Latest(ctx, base)
		if err == nil {
			a.store(ctx, snap)
			return snap.WithSource(domain.RateSourceLive)
		}
		a.metrics.IncrExternalError("rates")
		a.logger.Warn("rates: live fetch failed, falling back",
			zap.String("base", base),
			zap.Error(err),
		)
	}

	if snap, ok := a.cached(ctx, base); ok {
		return snap.WithSource(domain.RateSourceCache)
	}

	a.logger.Warn("rates: using static approximate rates", zap.String("base", base))
	return Static(base)
}

// store writes a fresh snapshot to the cache. Failures are logged only.
func (a *Acquirer) store(ctx context.Context, snap domain.RateSnapshot) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Put(ctx, snap); err != nil {
		a.logger.Warn("rates: cache write failed",
			zap.String("base", snap.Base),
			zap.Error(err),
		)
	}
}

func (a *Acquirer) cached(ctx context.Context, base string) (domain.RateSnapshot, bool) {
	if a.cache == nil {
		return domain.RateSnapshot{}, false
	}
	snap, ok, err := a.cache.Get(ctx, base)
	if err != nil {
		a.logger.Warn("rates: cache read failed", zap.String("base", base), zap.Error(err))
		a.metrics.IncrCacheMiss("rates")
		return domain.RateSnapshot{}, false
	}
	if !ok || !snap.FreshAt(a.now(), a.freshness) {
		a.metrics.IncrCacheMiss("rates")
		if ok {
			a.logger.Debug("rates: cached snapshot is stale",
				zap.String("base", base),
				zap.Time("fetched_at", snap.FetchedAt),
			)
		}
		return domain.RateSnapshot{}, false
	}
	a.metrics.IncrCacheHit("rates")
	return snap, true
}
