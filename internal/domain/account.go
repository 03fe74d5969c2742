package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Accounts (assets & liabilities)
// ============================================================

// AccountType discriminates asset records from liability records.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
)

// LiabilityKind sub-classifies a liability. It decides whether ledger
// transactions add to or subtract from the outstanding balance.
type LiabilityKind string

const (
	LiabilityCredit   LiabilityKind = "credit"
	LiabilityLoan     LiabilityKind = "loan"
	LiabilityMortgage LiabilityKind = "mortgage"
	LiabilityOther    LiabilityKind = "other"
)

// ParseLiabilityKind maps a stored liability type to a kind.
// Unknown values fall back to LiabilityOther and ok is false.
func ParseLiabilityKind(s string) (kind LiabilityKind, ok bool) {
	switch LiabilityKind(strings.ToLower(strings.TrimSpace(s))) {
	case LiabilityCredit:
		return LiabilityCredit, true
	case LiabilityLoan:
		return LiabilityLoan, true
	case LiabilityMortgage:
		return LiabilityMortgage, true
	case LiabilityOther:
		return LiabilityOther, true
	}
	return LiabilityOther, false
}

// Account is a financial account owned by an entity (individual, business, trust...).
// OpeningBalance is assumed to be expressed in the run's base currency.
type Account struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	EntityName    string        `json:"entity_name"`
	Category      string        `json:"category,omitempty"`
	Type          AccountType   `json:"account_type"`
	LiabilityKind LiabilityKind `json:"liability_kind,omitempty"` // liabilities only

	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceDate time.Time       `json:"opening_balance_date"` // zero when missing or malformed

	// CurrentValue is the record's stored value/amount column. Display only.
	CurrentValue decimal.Decimal `json:"current_value"`
}

// NewAsset builds an asset account.
func NewAsset(id, name, entity string, opening decimal.Decimal, openingDate time.Time) Account {
	return Account{
		ID:                 id,
		Name:               name,
		EntityName:         entity,
		Type:               AccountTypeAsset,
		OpeningBalance:     opening,
		OpeningBalanceDate: Day(openingDate),
	}
}

// NewLiability builds a liability account of the given kind.
func NewLiability(id, name, entity string, kind LiabilityKind, opening decimal.Decimal, openingDate time.Time) Account {
	return Account{
		ID:                 id,
		Name:               name,
		EntityName:         entity,
		Type:               AccountTypeLiability,
		LiabilityKind:      kind,
		OpeningBalance:     opening,
		OpeningBalanceDate: Day(openingDate),
	}
}

// HasOpeningDate reports whether the account carries a usable opening balance date.
func (a Account) HasOpeningDate() bool {
	return !a.OpeningBalanceDate.IsZero()
}

// Combine applies the account's sign convention to an opening balance and
// a net transaction sum.
//
//	asset:                  opening + sum
//	liability/credit:       opening + sum (purchases add to the debt)
//	liability/loan|mortgage|other: opening - sum (payments reduce the debt)
func (a Account) Combine(opening, sum decimal.Decimal) (decimal.Decimal, error) {
	switch a.Type {
	case AccountTypeAsset:
		return opening.Add(sum), nil
	case AccountTypeLiability:
		switch a.LiabilityKind {
		case LiabilityCredit:
			return opening.Add(sum), nil
		case LiabilityLoan, LiabilityMortgage, LiabilityOther:
			return opening.Sub(sum), nil
		}
		return decimal.Zero, fmt.Errorf("account %s: unknown liability kind %q", a.ID, a.LiabilityKind)
	}
	return decimal.Zero, fmt.Errorf("account %s: unknown account type %q", a.ID, a.Type)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts "2006-01-02" or RFC3339 and returns the UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Day(t), nil
}
