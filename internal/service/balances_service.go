// Package service provides the business logic layer (use cases).
// BalanceService runs balance calculations over a user's ledger: it acquires
// a rate snapshot, feeds the pure engine and reports data-quality warnings.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/balance"
	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/observability"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/resilience"
	"github.com/boddenberg/pf-balances-bfa/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/balances")

// BalanceService orchestrates rate acquisition, the engine and the ledger store.
type BalanceService struct {
	store           port.LedgerStore
	rates           port.RateSource
	bulkhead        *resilience.Bulkhead
	defaultCurrency string
	metrics         *observability.Metrics
	logger          *zap.Logger
	now             func() time.Time
}

// NewBalanceService creates the balance service with all dependencies injected.
// store may be nil when only the stateless operations are used.
func NewBalanceService(
	store port.LedgerStore,
	rates port.RateSource,
	bulkhead *resilience.Bulkhead,
	defaultCurrency string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *BalanceService {
	if bulkhead == nil {
		bulkhead = resilience.NewBulkhead(10)
	}
	defaultCurrency = domain.NormalizeCurrency(defaultCurrency)
	if !domain.IsCurrencyCode(defaultCurrency) {
		defaultCurrency = "USD"
	}
	return &BalanceService{
		store:           store,
		rates:           rates,
		bulkhead:        bulkhead,
		defaultCurrency: defaultCurrency,
		metrics:         metrics,
		logger:          logger,
		now:             time.Now,
	}
}

// ResolveBase normalizes a requested base currency. Empty means the default.
func (s *BalanceService) ResolveBase(base string) (string, error) {
	if base == "" {
		return s.defaultCurrency, nil
	}
	code := domain.NormalizeCurrency(base)
	if !domain.IsCurrencyCode(code) {
		return "", &domain.ErrValidation{Field: "base", Message: fmt.Sprintf("%q is not a 3-letter currency code", base)}
	}
	return code, nil
}

// ============================================================
// Stateless calculations
// ============================================================

// Calculate runs the engine over caller-supplied records and returns a full report.
func (s *BalanceService) Calculate(ctx context.Context, accounts []domain.Account, transactions []domain.Transaction, base string) *domain.BalanceReport {
	ctx, span := tracer.Start(ctx, "BalanceService.Calculate")
	defer span.End()

	base = s.baseOrDefault(base)

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("calculate", time.Since(start))
	}()

	snap := s.rates.Acquire(ctx, base)
	res := balance.Calculate(accounts, transactions, snap, base)
	s.reportWarnings(res.Warnings)

	span.SetAttributes(
		attribute.String("rates.source", string(snap.Source)),
		attribute.Int("accounts.count", len(accounts)),
		attribute.Int("warnings.count", len(res.Warnings)),
	)

	warnings := res.Warnings
	if warnings == nil {
		warnings = []domain.BalanceWarning{}
	}
	return &domain.BalanceReport{
		RunID:          uuid.New().String(),
		BaseCurrency:   base,
		RateSource:     snap.Source,
		RatesFetchedAt: snap.FetchedAt,
		Balances:       res.Balances,
		NetWorth:       balance.NetWorth(res.Balances, base),
		Warnings:       warnings,
		CalculatedAt:   s.now().UTC(),
	}
}

// CalculateAllBalances returns the balance of every usable account.
// An empty base means the configured default currency.
func (s *BalanceService) CalculateAllBalances(ctx context.Context, accounts []domain.Account, transactions []domain.Transaction, base string) []domain.AccountBalance {
	return s.Calculate(ctx, accounts, transactions, base).Balances
}

// GetBalance returns the calculated balance of one account, zero when unknown.
func (s *BalanceService) GetBalance(ctx context.Context, accountID string, accounts []domain.Account, transactions []domain.Transaction, base string) decimal.Decimal {
	b, _ := balance.Find(s.CalculateAllBalances(ctx, accounts, transactions, base), accountID)
	return b.CalculatedBalance
}

// GetOpeningBalance returns the recorded opening balance of one account, zero when unknown.
func (s *BalanceService) GetOpeningBalance(ctx context.Context, accountID string, accounts []domain.Account, transactions []domain.Transaction, base string) decimal.Decimal {
	b, _ := balance.Find(s.CalculateAllBalances(ctx, accounts, transactions, base), accountID)
	return b.OpeningBalance
}

// GetClosingBalance returns the closing (calculated) balance of one account, zero when unknown.
func (s *BalanceService) GetClosingBalance(ctx context.Context, accountID string, accounts []domain.Account, transactions []domain.Transaction, base string) decimal.Decimal {
	b, _ := balance.Find(s.CalculateAllBalances(ctx, accounts, transactions, base), accountID)
	return b.ClosingBalance()
}

// NetWorth summarizes already computed balances.
func (s *BalanceService) NetWorth(balances []domain.AccountBalance, base string) domain.NetWorth {
	return balance.NetWorth(balances, base)
}

// Rates returns the snapshot a run in base would use right now.
func (s *BalanceService) Rates(ctx context.Context, base string) domain.RateSnapshot {
	ctx, span := tracer.Start(ctx, "BalanceService.Rates")
	defer span.End()
	base = s.baseOrDefault(base)
	span.SetAttributes(attribute.String("rates.base", base))

	return s.rates.Acquire(ctx, base)
}

// ============================================================
// Store-backed use cases
// ============================================================

// UserBalances loads the user's ledger and computes every balance.
// Store failures are the only errors returned.
func (s *BalanceService) UserBalances(ctx context.Context, userID, base string) (*domain.BalanceReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "BalanceService.UserBalances")
	defer span.End()
	base = s.baseOrDefault(base)
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("rates.base", base),
	)

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("user_balances", time.Since(start))
	}()

	if s.store == nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: errors.New("ledger store not configured")}
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	var (
		assets       []domain.Account
		liabilities  []domain.Account
		transactions []domain.Transaction
		snap         domain.RateSnapshot
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a, err := s.store.ListAssets(gCtx, userID)
		if err != nil {
			return s.storeFailure("assets", userID, err)
		}
		assets = a
		return nil
	})

	g.Go(func() error {
		l, err := s.store.ListLiabilities(gCtx, userID)
		if err != nil {
			return s.storeFailure("liabilities", userID, err)
		}
		liabilities = l
		return nil
	})

	g.Go(func() error {
		t, err := s.store.ListTransactions(gCtx, userID)
		if err != nil {
			return s.storeFailure("transactions", userID, err)
		}
		transactions = t
		return nil
	})

	g.Go(func() error {
		snap = s.rates.Acquire(gCtx, base)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(assets)+len(liabilities))
	accounts = append(accounts, assets...)
	accounts = append(accounts, liabilities...)

	res := balance.Calculate(accounts, transactions, snap, base)
	s.reportWarnings(res.Warnings)

	s.logger.Info("balance run completed",
		zap.String("user_id", userID),
		zap.String("base", base),
		zap.String("rate_source", string(snap.Source)),
		zap.Int("accounts", len(accounts)),
		zap.Int("transactions", len(transactions)),
		zap.Int("warnings", len(res.Warnings)),
	)

	warnings := res.Warnings
	if warnings == nil {
		warnings = []domain.BalanceWarning{}
	}
	return &domain.BalanceReport{
		RunID:          uuid.New().String(),
		UserID:         userID,
		BaseCurrency:   base,
		RateSource:     snap.Source,
		RatesFetchedAt: snap.FetchedAt,
		Balances:       res.Balances,
		NetWorth:       balance.NetWorth(res.Balances, base),
		Warnings:       warnings,
		CalculatedAt:   s.now().UTC(),
	}, nil
}

// UserAccountBalance returns one account's balance. An unknown account yields
// a zero-valued balance carrying the requested id, not an error.
func (s *BalanceService) UserAccountBalance(ctx context.Context, userID, accountID, base string) (domain.AccountBalance, error) {
	ctx, span := tracer.Start(ctx, "BalanceService.UserAccountBalance")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	report, err := s.UserBalances(ctx, userID, base)
	if err != nil {
		return domain.AccountBalance{}, err
	}
	b, ok := balance.Find(report.Balances, accountID)
	if !ok {
		s.logger.Debug("account not in balance run",
			zap.String("user_id", userID),
			zap.String("account_id", accountID),
		)
		return domain.AccountBalance{AccountID: accountID}, nil
	}
	return b, nil
}

// UserNetWorth returns the user's net worth in base.
func (s *BalanceService) UserNetWorth(ctx context.Context, userID, base string) (domain.NetWorth, error) {
	report, err := s.UserBalances(ctx, userID, base)
	if err != nil {
		return domain.NetWorth{}, err
	}
	return report.NetWorth, nil
}

// CheckStore pings the ledger store. Used by /healthz.
func (s *BalanceService) CheckStore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping(ctx)
}

// --- helpers ---

// baseOrDefault normalizes base and falls back to the configured default
// currency when it is empty.
func (s *BalanceService) baseOrDefault(base string) string {
	if code := domain.NormalizeCurrency(base); code != "" {
		return code
	}
	return s.defaultCurrency
}

func (s *BalanceService) storeFailure(what, userID string, err error) error {
	s.logger.Error("failed to load ledger",
		zap.String("collection", what),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	s.metrics.IncrExternalError("supabase")
	return fmt.Errorf("%s fetch: %w", what, err)
}

func (s *BalanceService) reportWarnings(warnings []domain.BalanceWarning) {
	for _, w := range warnings {
		switch w.Kind {
		case domain.WarningMissingRate:
			s.metrics.IncrMissingRate(w.Currency)
			s.logger.Warn("balance: missing exchange rate, transaction counted as zero",
				zap.String("account_id", w.AccountID),
				zap.String("transaction_id", w.TransactionID),
				zap.String("currency", w.Currency),
			)
		case domain.WarningSkippedAccount:
			s.metrics.IncrSkippedAccount()
			s.logger.Warn("balance: account skipped",
				zap.String("account_id", w.AccountID),
				zap.String("reason", w.Message),
			)
		}
	}
}
