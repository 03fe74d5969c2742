// Package balance derives point-in-time account balances from opening balances
// and a currency-normalized aggregation of ledger transactions.
//
// Everything here is pure: given the same accounts, transactions and rate
// snapshot, Calculate returns the same result and touches no shared state.
package balance

import (
	"fmt"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// Result is the outcome of one balance run.
type Result struct {
	Balances []domain.AccountBalance
	Warnings []domain.BalanceWarning
}

// Calculate computes the balance of every account. Accounts without a usable
// opening balance date are left out of Balances and reported in Warnings.
// Balances keep the input order of accounts.
func Calculate(accounts []domain.Account, transactions []domain.Transaction, rates domain.RateSnapshot, base string) Result {
	base = domain.NormalizeCurrency(base)
	byAccount := groupByAccount(transactions)

	res := Result{Balances: make([]domain.AccountBalance, 0, len(accounts))}
	for _, acct := range accounts {
		if !acct.HasOpeningDate() {
			res.Warnings = append(res.Warnings, domain.BalanceWarning{
				Kind:      domain.WarningSkippedAccount,
				AccountID: acct.ID,
				Message:   "missing or malformed opening balance date",
			})
			continue
		}

		openDay := domain.Day(acct.OpeningBalanceDate)
		sum := decimal.Zero
		count := 0
		for _, t := range byAccount[refKey{acct.Type, acct.ID}] {
			if t.Date.IsZero() || domain.Day(t.Date).Before(openDay) {
				continue
			}
			amount, ok := Convert(t.Amount, t.CurrencyOr(base), base, rates)
			if !ok {
				res.Warnings = append(res.Warnings, domain.BalanceWarning{
					Kind:          domain.WarningMissingRate,
					AccountID:     acct.ID,
					TransactionID: t.ID,
					Currency:      t.CurrencyOr(base),
					Message:       fmt.Sprintf("no rate to convert %s into %s", t.CurrencyOr(base), base),
				})
			}
			sum = sum.Add(amount)
			count++
		}

		calculated, err := acct.Combine(acct.OpeningBalance, sum)
		if err != nil {
			res.Warnings = append(res.Warnings, domain.BalanceWarning{
				Kind:      domain.WarningSkippedAccount,
				AccountID: acct.ID,
				Message:   err.Error(),
			})
			continue
		}

		res.Balances = append(res.Balances, domain.AccountBalance{
			AccountID:         acct.ID,
			AccountName:       acct.Name,
			EntityName:        acct.EntityName,
			AccountType:       acct.Type,
			LiabilityKind:     acct.LiabilityKind,
			OpeningBalance:    acct.OpeningBalance,
			TransactionSum:    sum,
			CalculatedBalance: calculated,
			TransactionCount:  count,
		})
	}
	return res
}

// Convert turns amount in currency from into currency to using rates:
// amount / rate(from) * rate(to). Same-currency amounts are returned untouched.
// When either rate is unknown it returns zero and ok=false.
func Convert(amount decimal.Decimal, from, to string, rates domain.RateSnapshot) (decimal.Decimal, bool) {
	from = domain.NormalizeCurrency(from)
	to = domain.NormalizeCurrency(to)
	if from == to {
		return amount, true
	}
	fromRate, ok := rates.Rate(from)
	if !ok {
		return decimal.Zero, false
	}
	toRate, ok := rates.Rate(to)
	if !ok {
		return decimal.Zero, false
	}
	return amount.Div(fromRate).Mul(toRate), true
}

// Find returns the balance for accountID, if present.
func Find(balances []domain.AccountBalance, accountID string) (domain.AccountBalance, bool) {
	for _, b := range balances {
		if b.AccountID == accountID {
			return b, true
		}
	}
	return domain.AccountBalance{}, false
}

// NetWorth sums asset balances and subtracts liability balances.
func NetWorth(balances []domain.AccountBalance, currency string) domain.NetWorth {
	assets := decimal.Zero
	liabilities := decimal.Zero
	for _, b := range balances {
		switch b.AccountType {
		case domain.AccountTypeAsset:
			assets = assets.Add(b.CalculatedBalance)
		case domain.AccountTypeLiability:
			liabilities = liabilities.Add(b.CalculatedBalance)
		}
	}
	return domain.NetWorth{
		TotalAssets:      assets,
		TotalLiabilities: liabilities,
		NetWorth:         assets.Sub(liabilities),
		Currency:         domain.NormalizeCurrency(currency),
	}
}

type refKey struct {
	accountType domain.AccountType
	accountID   string
}

// groupByAccount indexes transactions by their single owning account.
// Unassigned and doubly-assigned transactions are dropped.
func groupByAccount(transactions []domain.Transaction) map[refKey][]domain.Transaction {
	out := make(map[refKey][]domain.Transaction)
	for _, t := range transactions {
		typ, id, ok := t.AccountRef()
		if !ok {
			continue
		}
		k := refKey{typ, id}
		out[k] = append(out[k], t)
	}
	return out
}
