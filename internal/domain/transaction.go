package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions (ledger)
// ============================================================

// Transaction is a single ledger entry. Amount is signed in the transaction's own
// currency (positive = inflow, negative = outflow). A transaction belongs to at
// most one account: either AssetAccountID or LiabilityAccountID.
type Transaction struct {
	ID                 string          `json:"id"`
	Date               time.Time       `json:"date"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency,omitempty"`
	AssetAccountID     string          `json:"asset_account_id,omitempty"`
	LiabilityAccountID string          `json:"liability_account_id,omitempty"`
}

// AccountRef returns the owning account reference. ok is false when the
// transaction is unassigned or references both an asset and a liability.
func (t Transaction) AccountRef() (accountType AccountType, accountID string, ok bool) {
	hasAsset := t.AssetAccountID != ""
	hasLiability := t.LiabilityAccountID != ""
	switch {
	case hasAsset && !hasLiability:
		return AccountTypeAsset, t.AssetAccountID, true
	case hasLiability && !hasAsset:
		return AccountTypeLiability, t.LiabilityAccountID, true
	}
	return "", "", false
}

// CurrencyOr returns the normalized transaction currency, or fallback when unset.
func (t Transaction) CurrencyOr(fallback string) string {
	if c := NormalizeCurrency(t.Currency); c != "" {
		return c
	}
	return NormalizeCurrency(fallback)
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsCurrencyCode reports whether code looks like an ISO-4217 alpha code.
func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
