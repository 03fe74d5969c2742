package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Computed balances (never persisted)
// ============================================================

// AccountBalance is the derived balance of one account for one run.
type AccountBalance struct {
	AccountID         string          `json:"account_id"`
	AccountName       string          `json:"account_name"`
	EntityName        string          `json:"entity_name"`
	AccountType       AccountType     `json:"account_type"`
	LiabilityKind     LiabilityKind   `json:"liability_kind,omitempty"`
	OpeningBalance    decimal.Decimal `json:"opening_balance"`
	TransactionSum    decimal.Decimal `json:"transaction_sum"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	TransactionCount  int             `json:"transaction_count"`
}

// ClosingBalance is always the calculated balance.
func (b AccountBalance) ClosingBalance() decimal.Decimal {
	return b.CalculatedBalance
}

// NetWorth aggregates a balance sheet.
type NetWorth struct {
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetWorth         decimal.Decimal `json:"net_worth"`
	Currency         string          `json:"currency"`
}

// WarningKind classifies a non-fatal data-quality condition.
type WarningKind string

const (
	WarningMissingRate    WarningKind = "missing_rate"
	WarningSkippedAccount WarningKind = "skipped_account"
)

// BalanceWarning describes one record that did not contribute normally.
type BalanceWarning struct {
	Kind          WarningKind `json:"kind"`
	AccountID     string      `json:"account_id,omitempty"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Currency      string      `json:"currency,omitempty"`
	Message       string      `json:"message"`
}

// BalanceReport is the response of a full balance run for one user.
type BalanceReport struct {
	RunID          string           `json:"run_id"`
	UserID         string           `json:"user_id,omitempty"`
	BaseCurrency   string           `json:"base_currency"`
	RateSource     RateSource       `json:"rate_source"`
	RatesFetchedAt time.Time        `json:"rates_fetched_at"`
	Balances       []AccountBalance `json:"balances"`
	NetWorth       NetWorth         `json:"net_worth"`
	Warnings       []BalanceWarning `json:"warnings"`
	CalculatedAt   time.Time        `json:"calculated_at"`
}
