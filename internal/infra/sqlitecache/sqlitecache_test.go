package sqlitecache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/sqlitecache"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func openStore(t *testing.T, path string) *sqlitecache.Store {
	t.Helper()
	s, err := sqlitecache.Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTripSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.db")
	ctx := context.Background()
	fetched := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	first := openStore(t, path)
	err := first.Put(ctx, domain.RateSnapshot{
		Base:      "usd",
		Rates:     map[string]decimal.Decimal{"AUD": decimal.RequireFromString("1.5123")},
		FetchedAt: fetched,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	first.Close()

	second := openStore(t, path)
	got, ok, err := second.Get(ctx, "USD")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !got.Rates["AUD"].Equal(decimal.RequireFromString("1.5123")) {
		t.Errorf("unexpected rate %s", got.Rates["AUD"])
	}
	if !got.FetchedAt.Equal(fetched) {
		t.Errorf("expected fetched_at %s, got %s", fetched, got.FetchedAt)
	}
	if got.Source != domain.RateSourceCache {
		t.Errorf("expected cache source, got %s", got.Source)
	}
}

func TestStore_Miss(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "rates.db"))

	_, ok, err := s.Get(context.Background(), "EUR")
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestStore_Upsert(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "rates.db"))
	ctx := context.Background()

	for _, r := range []string{"1.4", "1.6"} {
		err := s.Put(ctx, domain.RateSnapshot{
			Base:      "USD",
			Rates:     map[string]decimal.Decimal{"AUD": decimal.RequireFromString(r)},
			FetchedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("put %s: %v", r, err)
		}
	}

	got, _, _ := s.Get(ctx, "USD")
	if !got.Rates["AUD"].Equal(decimal.RequireFromString("1.6")) {
		t.Errorf("expected last write 1.6, got %s", got.Rates["AUD"])
	}
}
