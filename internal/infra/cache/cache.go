// Package cache provides an in-memory rate cache on top of go-cache.
// Entries do not expire on their own: freshness is judged by the reader from
// the snapshot's FetchedAt, so a stale snapshot stays visible until replaced.
package cache

import (
	"context"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// InMemory is a thread-safe RateCache keyed by base currency.
type InMemory struct {
	items *gocache.Cache
}

// New creates an in-memory rate cache. retention bounds how long an entry is
// kept at all (0 keeps entries forever).
func New(retention time.Duration) *InMemory {
	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if retention > 0 {
		expiration = retention
		cleanup = retention
	}
	return &InMemory{items: gocache.New(expiration, cleanup)}
}

// Get returns the snapshot stored for base.
func (c *InMemory) Get(_ context.Context, base string) (domain.RateSnapshot, bool, error) {
	v, ok := c.items.Get(key(base))
	if !ok {
		return domain.RateSnapshot{}, false, nil
	}
	snap, ok := v.(domain.RateSnapshot)
	if !ok {
		return domain.RateSnapshot{}, false, nil
	}
	return clone(snap), true, nil
}

// Put stores snap under its base currency, replacing any previous entry.
func (c *InMemory) Put(_ context.Context, snap domain.RateSnapshot) error {
	c.items.SetDefault(key(snap.Base), clone(snap))
	return nil
}

func key(base string) string {
	return "rates:" + domain.NormalizeCurrency(base)
}

// clone copies the rates map so callers cannot mutate the cached entry.
func clone(s domain.RateSnapshot) domain.RateSnapshot {
	rates := make(map[string]decimal.Decimal, len(s.Rates))
	for k, v := range s.Rates {
		rates[k] = v
	}
	s.Rates = rates
	return s
}
