// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
)

// RateProvider fetches a live exchange-rate snapshot for a base currency.
// Implementations make a single attempt; any failure is returned as an error.
type RateProvider interface {
	Latest(ctx context.Context, base string) (domain.RateSnapshot, error)
}

// RateCache stores the last good snapshot per base currency.
// Writes are best-effort and last-write-wins.
type RateCache interface {
	Get(ctx context.Context, base string) (domain.RateSnapshot, bool, error)
	Put(ctx context.Context, snapshot domain.RateSnapshot) error
}

// RateSource hands out a usable snapshot for a base currency. It never fails.
type RateSource interface {
	Acquire(ctx context.Context, base string) domain.RateSnapshot
}
