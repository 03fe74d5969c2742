package observability_test

import (
	"testing"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/observability"
)

func TestGetRateSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrRateSource(domain.RateSourceLive)
	m.IncrRateSource(domain.RateSourceCache)
	m.IncrRateSource(domain.RateSourceStatic)
	m.IncrRateSource(domain.RateSourceStatic)
	m.IncrMissingRate("XYZ")
	m.IncrMissingRate("ABC")
	m.IncrSkippedAccount()
	m.IncrCacheHit("rates")
	m.IncrCacheMiss("rates")
	m.IncrCacheMiss("rates")
	m.IncrCacheMiss("rates")
	m.IncrExternalError("rates")
	m.IncrExternalError("supabase")

	s := m.GetRateSnapshot()

	if s.LiveSnapshots != 1 || s.CachedSnapshots != 1 || s.StaticSnapshots != 2 {
		t.Errorf("unexpected source counters: %+v", s)
	}
	if s.FallbackRate != 0.75 {
		t.Errorf("expected fallback rate 0.75, got %v", s.FallbackRate)
	}
	if s.RateCacheHitRate != 0.25 {
		t.Errorf("expected hit rate 0.25, got %v", s.RateCacheHitRate)
	}
	if s.MissingRates != 2 || s.SkippedAccounts != 1 {
		t.Errorf("unexpected data-quality counters: %+v", s)
	}
	if s.ProviderErrors != 1 {
		t.Errorf("expected only rate provider errors, got %d", s.ProviderErrors)
	}
}

func TestGetRateSnapshot_Empty(t *testing.T) {
	s := observability.NewMetrics().GetRateSnapshot()
	if s.FallbackRate != 0 || s.RateCacheHitRate != 0 || s.Period != "all_time" {
		t.Errorf("unexpected empty snapshot: %+v", s)
	}
}
