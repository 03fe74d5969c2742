package port

import (
	"context"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
)

// LedgerStore reads a user's accounts and transactions from persistence.
type LedgerStore interface {
	ListAssets(ctx context.Context, userID string) ([]domain.Account, error)
	ListLiabilities(ctx context.Context, userID string) ([]domain.Account, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	Ping(ctx context.Context) error
}
